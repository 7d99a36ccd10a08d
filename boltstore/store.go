// Package boltstore keeps the checkpoint history of training runs in a
// BoltDB file.
//
// Every run gets its own bucket, named by a random UUID, holding one
// snapshot per iteration and, if the run failed, the failure snapshot.
package boltstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/davecao/tappm-cli/hmmlib"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"
)

var (
	// all runs are nested below this bucket, keyed by run id
	bucketRuns = []byte("runs")

	// per-run buckets and keys
	bucketIters = []byte("iterations")
	keyFailure  = []byte("failure")
)

// ErrNotFound is returned when a run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Config holds Store configuration options.
type Config struct {
	Path string

	// Run to append to; a new one is started if nil
	RunID *uuid.UUID

	Logger hclog.Logger
}

// Store is an hmmlib.Checkpointer that keeps every snapshot of a run.
type Store struct {
	db     *bolt.DB
	run    uuid.UUID
	logger hclog.Logger
}

// Open opens or creates the database at cfg.Path.
func Open(cfg Config) (*Store, error) {

	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	db, err := bolt.Open(cfg.Path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}

	run := uuid.New()
	if cfg.RunID != nil {
		run = *cfg.RunID
	}

	err = db.Update(func(tx *bolt.Tx) error {
		runs, err := tx.CreateBucketIfNotExists(bucketRuns)
		if err != nil {
			return err
		}
		rb, err := runs.CreateBucketIfNotExists(run[:])
		if err != nil {
			return err
		}
		_, err = rb.CreateBucketIfNotExists(bucketIters)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	s := &Store{
		db:     db,
		run:    run,
		logger: cfg.Logger.Named("boltstore"),
	}
	s.logger.Debug("opened checkpoint store", "path", cfg.Path, "run", run)

	return s, nil
}

// RunID returns the id of the run that Save and Failure write to.
func (s *Store) RunID() uuid.UUID {
	return s.run
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func iterKey(iter int) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(iter))
	return k
}

func encode(snap *hmmlib.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := hmmlib.EncodeSnapshot(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) put(key []byte, snap *hmmlib.Snapshot, iters bool) error {

	data, err := encode(snap)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns).Bucket(s.run[:])
		if iters {
			b = b.Bucket(bucketIters)
		}
		return b.Put(key, data)
	})
}

// Save stores the parameters of one iteration.
func (s *Store) Save(iter int, m *hmmlib.Model, loglike float64) error {
	return s.put(iterKey(iter), hmmlib.NewSnapshot(m, iter, loglike), true)
}

// Failure stores the parameters and transition counts of a failed
// iteration.
func (s *Store) Failure(iter int, m *hmmlib.Model, xisums [][]float64, cause error) error {
	snap := hmmlib.NewSnapshot(m, iter, 0)
	snap.XiSums = xisums
	if cause != nil {
		snap.Cause = cause.Error()
	}
	s.logger.Warn("storing failed model", "run", s.run, "iter", iter)
	return s.put(keyFailure, snap, false)
}

// view runs fn on the bucket of run, or returns ErrNotFound.
func (s *Store) view(run uuid.UUID, fn func(b *bolt.Bucket) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns).Bucket(run[:])
		if b == nil {
			return fmt.Errorf("run %s: %w", run, ErrNotFound)
		}
		return fn(b)
	})
}

// Latest returns the snapshot of the last saved iteration of run.
func (s *Store) Latest(run uuid.UUID) (*hmmlib.Snapshot, error) {
	var snap *hmmlib.Snapshot
	err := s.view(run, func(b *bolt.Bucket) error {
		k, v := b.Bucket(bucketIters).Cursor().Last()
		if k == nil {
			return fmt.Errorf("run %s has no iterations: %w", run, ErrNotFound)
		}
		var err error
		snap, err = hmmlib.DecodeSnapshot(bytes.NewReader(v))
		return err
	})
	return snap, err
}

// FailureSnapshot returns the failure snapshot of run.
func (s *Store) FailureSnapshot(run uuid.UUID) (*hmmlib.Snapshot, error) {
	var snap *hmmlib.Snapshot
	err := s.view(run, func(b *bolt.Bucket) error {
		v := b.Get(keyFailure)
		if v == nil {
			return fmt.Errorf("run %s did not fail: %w", run, ErrNotFound)
		}
		var err error
		snap, err = hmmlib.DecodeSnapshot(bytes.NewReader(v))
		return err
	})
	return snap, err
}

// History returns the log-likelihood of each saved iteration of run, in
// iteration order.
func (s *Store) History(run uuid.UUID) ([]float64, error) {
	var llf []float64
	err := s.view(run, func(b *bolt.Bucket) error {
		return b.Bucket(bucketIters).ForEach(func(k, v []byte) error {
			snap, err := hmmlib.DecodeSnapshot(bytes.NewReader(v))
			if err != nil {
				return fmt.Errorf("iteration %d: %w", binary.BigEndian.Uint32(k), err)
			}
			llf = append(llf, snap.LogLike)
			return nil
		})
	})
	return llf, err
}

// Runs returns the ids of all runs in the database.
func (s *Store) Runs() ([]uuid.UUID, error) {
	var runs []uuid.UUID
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, _ []byte) error {
			id, err := uuid.FromBytes(k)
			if err != nil {
				return err
			}
			runs = append(runs, id)
			return nil
		})
	})
	return runs, err
}

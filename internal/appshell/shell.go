// Package appshell holds the process plumbing shared by the commands.
package appshell

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
)

// Main runs run with a context that is cancelled on SIGINT or SIGTERM and
// exits with its return code.
func Main(run func(context.Context, []string, io.Writer, io.Writer) int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := exitCode(ctx, run(ctx, os.Args[1:], os.Stdout, os.Stderr))

	stop()
	os.Exit(code)
}

// exitCode maps any run that was interrupted to 130, whatever it returned.
func exitCode(ctx context.Context, code int) int {
	if ctx.Err() != nil {
		return 130
	}
	return code
}

// LogConfig selects where and how much a command logs.
type LogConfig struct {
	Name  string
	Level string

	// If set, messages are also written to Prefix + ".log"
	Prefix string
}

// NewLogger returns a logger writing to stderr and, if configured, a log
// file.  The returned function closes the log file.
func NewLogger(cfg LogConfig, stderr io.Writer) (hclog.Logger, func() error, error) {

	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		return nil, nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	out := stderr
	closer := func() error { return nil }
	if cfg.Prefix != "" {
		fid, err := os.OpenFile(cfg.Prefix+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(stderr, fid)
		closer = fid.Close
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   cfg.Name,
		Level:  level,
		Output: out,
	})
	return logger, closer, nil
}

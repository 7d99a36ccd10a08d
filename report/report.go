// Package report writes prediction results as tabular text, plain text or
// JSON.
//
// A Renderer is built once for an output format and is read-only
// afterwards, so one Renderer can be shared by any number of writers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/davecao/tappm-cli/classify"
	"github.com/davecao/tappm-cli/internal/errutil"
	"github.com/davecao/tappm-cli/predictor"
)

// Version is reported in the header of every report.
const Version = "1.0.0"

// DefaultBackups is the number of earlier reports kept by Rollover.
const DefaultBackups = 5

// Item is the report entry of one protein.
type Item struct {
	Identifier     string             `json:"identifier"`
	Description    string             `json:"description"`
	Sequence       string             `json:"sequence"`
	Path           string             `json:"path"`
	Likelihood     float64            `json:"likelihood"`
	LikelihoodRef  float64            `json:"likelihood_mp"`
	Score          float64            `json:"score"`
	AboveThreshold bool               `json:"is_ta"`
	Helices        []classify.Segment `json:"tmd_position"`
	CTermHelices   []classify.Segment `json:"cter_tmd_position"`
	TailAnchored   bool               `json:"ta_protein"`
}

// NewItem combines the decodings of the two models and their
// classification.  The identifier is the first word of id.
func NewItem(id, description string, seq []byte, ta, ref *predictor.Record, res *classify.Result) Item {
	ident := id
	if i := strings.IndexAny(ident, " \t"); i >= 0 {
		ident = ident[:i]
	}
	return Item{
		Identifier:     ident,
		Description:    description,
		Sequence:       string(seq),
		Path:           ta.Path,
		Likelihood:     ta.Likelihood,
		LikelihoodRef:  ref.Likelihood,
		Score:          res.Score,
		AboveThreshold: res.AboveThreshold,
		Helices:        res.Helices,
		CTermHelices:   res.CTermHelices,
		TailAnchored:   res.TailAnchored,
	}
}

// Summary is the report header.
type Summary struct {
	Package   string    `json:"package"`
	Version   string    `json:"version"`
	Time      time.Time `json:"time"`
	Threshold float64   `json:"threshold"`
	Workers   int       `json:"ncpu"`
	Total     int       `json:"total"`
	Positive  int       `json:"positive"`
}

// NewSummary fills in a Summary for items.
func NewSummary(items []Item, threshold float64, workers int) Summary {
	s := Summary{
		Package:   "TAPPM ver. " + Version,
		Version:   Version,
		Time:      time.Now(),
		Threshold: threshold,
		Workers:   workers,
		Total:     len(items),
	}
	for _, it := range items {
		if it.TailAnchored {
			s.Positive++
		}
	}
	return s
}

const tabularTemplate = `# {{.Summary.Package}}
# date: {{.Summary.Time.Format "02 Jan 2006 15:04:05"}}
# threshold: {{printf "%.10f" .Summary.Threshold}}
# sequences: {{.Summary.Total}}  tail-anchored: {{.Summary.Positive}}
#identifier	length	score	likelihood_ta	likelihood_mp	is_ta	num_tmd	tmd_position	cter_tmd	ta_protein
{{range .Items}}{{.Identifier}}	{{len .Sequence}}	{{printf "%.6f" .Score}}	{{printf "%.4f" .Likelihood}}	{{printf "%.4f" .LikelihoodRef}}	{{.AboveThreshold}}	{{len .Helices}}	{{segments .Helices ";"}}	{{segments .CTermHelices ","}}	{{.TailAnchored}}
{{end}}`

const textTemplate = `{{.Summary.Package}}
Date:       {{.Summary.Time.Format "02 Jan 2006 15:04:05"}}
Threshold:  {{printf "%.10f" .Summary.Threshold}}
CPUs:       {{.Summary.Workers}}
Sequences:  {{.Summary.Total}}
Positive:   {{.Summary.Positive}}
{{range .Items}}
>{{.Description}}
Identifier:   {{.Identifier}}
Length:       {{len .Sequence}}
Score:        {{printf "%.6f" .Score}}
Likelihood:   {{printf "%.4f" .Likelihood}} (TA)  {{printf "%.4f" .LikelihoodRef}} (MP)
TMD:          {{segments .Helices ", "}}
C-term TMD:   {{segments .CTermHelices ", "}}
Tail-anchored: {{if .TailAnchored}}yes{{else}}no{{end}}
{{range wrap .Sequence .Path 60}}{{.}}
{{end}}{{end}}`

// Renderer renders reports in one format.
type Renderer struct {
	format string
	tmpl   *template.Template
}

// Formats lists the supported output formats.
var Formats = []string{"tabular", "text", "json"}

// NewRenderer returns a renderer for format.
func NewRenderer(format string) (*Renderer, error) {

	funcs := template.FuncMap{
		"segments": classify.FormatSegments,
		"wrap":     wrapPair,
	}

	var src string
	switch format {
	case "tabular":
		src = tabularTemplate
	case "text":
		src = textTemplate
	case "json":
		return &Renderer{format: format}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q, expected one of %s", format, strings.Join(Formats, ", "))
	}

	tmpl, err := template.New(format).Funcs(funcs).Parse(src)
	if err != nil {
		return nil, err
	}
	return &Renderer{format: format, tmpl: tmpl}, nil
}

// Format returns the output format of the renderer.
func (r *Renderer) Format() string {
	return r.format
}

// Render writes the report.  Items are sorted by identifier.
func (r *Renderer) Render(w io.Writer, sum Summary, items []Item) error {

	sorted := append([]Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Identifier < sorted[j].Identifier })

	data := struct {
		Summary Summary `json:"summary"`
		Items   []Item  `json:"items"`
	}{sum, sorted}

	if r.tmpl == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	return r.tmpl.Execute(w, data)
}

// wrapPair interleaves two equally long strings in blocks of width
// characters.
func wrapPair(a, b string, width int) []string {
	var out []string
	for i := 0; i < len(a); i += width {
		j := i + width
		if j > len(a) {
			j = len(a)
		}
		out = append(out, a[i:j])
		if j <= len(b) {
			out = append(out, b[i:j])
		} else if i < len(b) {
			out = append(out, b[i:])
		}
	}
	return out
}

// Rollover renames path to path.1, path.1 to path.2 and so on, keeping at
// most backups earlier files.  Nothing happens if backups is not positive.
func Rollover(path string, backups int) error {
	for i := backups - 1; i >= 0; i-- {
		src := path
		if i > 0 {
			src = fmt.Sprintf("%s.%d", path, i)
		}
		dst := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile rolls over earlier reports and writes a new one to path.
func (r *Renderer) WriteFile(path string, backups int, sum Summary, items []Item) (err error) {

	if err := Rollover(path, backups); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errutil.Combine(err, f.Close())
	}()

	return r.Render(f, sum, items)
}

package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/chojs23/runme/internal/domain"
)

// Document is the single JSON object written for a run
type Document struct {
	Document    string                `json:"document"`
	Sandbox     string                `json:"sandbox"`
	StartedAt   time.Time             `json:"started_at"`
	Blocks      []*domain.Block       `json:"blocks"`
	Results     []*domain.BlockResult `json:"results"`
	Summary     domain.Summary        `json:"summary"`
	Interrupted bool                  `json:"interrupted"`
	ExitCode    int                   `json:"exit_code"`
}

// NewDocument assembles the JSON view of a report
func NewDocument(r *domain.RunReport) Document {
	blocks := r.Blocks
	if blocks == nil {
		blocks = []*domain.Block{}
	}
	results := r.Results
	if results == nil {
		results = []*domain.BlockResult{}
	}
	s := r.Summary()
	return Document{
		Document:    r.Document,
		Sandbox:     r.Sandbox,
		StartedAt:   r.StartedAt,
		Blocks:      blocks,
		Results:     results,
		Summary:     s,
		Interrupted: r.Interrupted,
		ExitCode:    ExitCode(s, r.Interrupted),
	}
}

// JSON ignores live events and writes one document when the run finishes,
// so the output always parses as a whole
type JSON struct {
	out io.Writer
}

// NewJSON creates a JSON reporter
func NewJSON(out io.Writer) *JSON {
	return &JSON{out: out}
}

func (j *JSON) BlockStarted(*domain.Block, string) {}

func (j *JSON) LineCompleted(*domain.Block, domain.LineResult) {}

func (j *JSON) BlockCompleted(*domain.Block, *domain.BlockResult) {}

func (j *JSON) Finish(report *domain.RunReport) error {
	return writeJSON(j.out, NewDocument(report))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

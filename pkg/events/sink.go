// Package events serializes the per-modification event stream: one
// self-contained record per modification, per-host summary, or per-host
// error, in human or JSON form.
package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/kurtbuilds/cook/pkg/rule"
	"github.com/kurtbuilds/cook/pkg/types"
)

var (
	successTag = color.New(color.FgGreen).Sprint("[success]")
	errorTag   = color.New(color.FgRed).Sprint("[error]")
	changeTag  = color.New(color.FgYellow).Sprint("[change]")
)

// Sink is the shared, append-only event writer. Writes are serialized per
// event, so host tasks may interleave events but never bytes. JSON output
// is a stream of JSON values, not an array.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	format types.Format
	run    string
}

// NewSink wraps w. Every record carries the same generated run id.
func NewSink(w io.Writer, format types.Format) *Sink {
	return &Sink{w: w, format: format, run: uuid.NewString()}
}

type modificationRecord struct {
	Run    string            `json:"run"`
	Host   string            `json:"host"`
	Kind   string            `json:"kind"`
	Change rule.Modification `json:"change"`
}

type summaryRecord struct {
	Run           string `json:"run"`
	Host          string `json:"host"`
	Completed     bool   `json:"completed"`
	Modifications int    `json:"modifications"`
}

type errorRecord struct {
	Run   string `json:"run"`
	Host  string `json:"host"`
	Error string `json:"error"`
}

// Modification emits one corrective action before it is applied.
func (s *Sink) Modification(host string, m rule.Modification) error {
	if s.format == types.FormatJSON {
		return s.writeJSON(modificationRecord{Run: s.run, Host: host, Kind: m.Kind(), Change: m})
	}
	return s.writeLine(fmt.Sprintf("%s %s: %s", changeTag, host, m.Human()))
}

// Summary emits the per-host completion record.
func (s *Sink) Summary(host string, modifications int) error {
	if s.format == types.FormatJSON {
		return s.writeJSON(summaryRecord{Run: s.run, Host: host, Completed: true, Modifications: modifications})
	}
	if modifications == 0 {
		return s.writeLine(fmt.Sprintf("%s %s: No modifications to run", successTag, host))
	}
	return s.writeLine(fmt.Sprintf("%s %s: %d modifications applied", successTag, host, modifications))
}

// Error emits the per-host failure record.
func (s *Sink) Error(host string, err error) error {
	if s.format == types.FormatJSON {
		return s.writeJSON(errorRecord{Run: s.run, Host: host, Error: err.Error()})
	}
	return s.writeLine(fmt.Sprintf("%s %s: %v", errorTag, host, err))
}

// writeJSON marshals first, writes once: one event, one write.
func (s *Sink) writeJSON(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.writeLine(string(data))
}

func (s *Sink) writeLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}

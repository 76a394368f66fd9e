package status

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ironsheep/scan2pdf/internal/scan"
)

// Level grades an event for display.
type Level string

const (
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// Event is one progress report from a run.
type Event struct {
	RunID   string     `json:"run_id"`
	Stage   scan.Stage `json:"stage"`
	Page    int        `json:"page,omitempty"`
	Total   int        `json:"total,omitempty"`
	Message string     `json:"message"`
	Level   Level      `json:"level"`
	Time    time.Time  `json:"time"`
}

// Sink receives events in emission order. Implementations must be safe for
// concurrent use; per-page workers report from several goroutines.
type Sink interface {
	Emit(Event)
}

// Func adapts a function to a Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// Multi fans events out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return Func(func(e Event) {
		for _, s := range sinks {
			s.Emit(e)
		}
	})
}

// TextSink writes one human-readable line per event.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink returns a TextSink writing to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Emit writes e as a single line, prefixing warnings and errors.
func (s *TextSink) Emit(e Event) {
	line := e.Message
	switch e.Level {
	case Warn:
		line = "warning: " + line
	case Error:
		line = "error: " + line
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

// JSONSink writes one JSON object per line.
type JSONSink struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONSink returns a JSONSink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{encoder: json.NewEncoder(w)}
}

// Emit encodes e as one JSON line. Write errors are ignored.
func (s *JSONSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A broken status stream must not fail the scan.
	_ = s.encoder.Encode(e)
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e to the recorded events.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Messages returns the recorded messages in order.
func (r *Recorder) Messages() []string {
	events := r.Events()
	msgs := make([]string, len(events))
	for i, e := range events {
		msgs[i] = e.Message
	}
	return msgs
}

// Reporter stamps events for one run before handing them to a sink.
type Reporter struct {
	RunID string
	Sink  Sink
	Now   func() time.Time
}

func (r Reporter) emit(stage scan.Stage, level Level, page, total int, format string, args ...any) {
	if r.Sink == nil {
		return
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	r.Sink.Emit(Event{
		RunID:   r.RunID,
		Stage:   stage,
		Page:    page,
		Total:   total,
		Message: fmt.Sprintf(format, args...),
		Level:   level,
		Time:    now(),
	})
}

// Stage reports a stage-level message.
func (r Reporter) Stage(stage scan.Stage, format string, args ...any) {
	r.emit(stage, Info, 0, 0, format, args...)
}

// Page reports progress on page of total. Total may be 0 while unknown.
func (r Reporter) Page(stage scan.Stage, page, total int, format string, args ...any) {
	r.emit(stage, Info, page, total, format, args...)
}

// Warn reports a non-fatal problem.
func (r Reporter) Warn(stage scan.Stage, format string, args ...any) {
	r.emit(stage, Warn, 0, 0, format, args...)
}

// Fail reports the run's terminal failure.
func (r Reporter) Fail(stage scan.Stage, format string, args ...any) {
	r.emit(stage, Error, 0, 0, format, args...)
}

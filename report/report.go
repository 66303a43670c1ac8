// Package report collects the per-item outcomes of a batch run into an
// ordered, human-readable log.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HughODwyer90/hugh.casa/contentsync"
	"github.com/HughODwyer90/hugh.casa/updater"
)

type Kind string

const (
	KindUpload Kind = "upload"
	KindUpdate Kind = "update"
	KindFetch  Kind = "fetch"
	KindRender Kind = "render"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed out"
)

// Entry is the final outcome of one item.
type Entry struct {
	Time     time.Time `json:"time"`
	Kind     Kind      `json:"kind"`
	Subject  string    `json:"subject"`
	Outcome  Outcome   `json:"outcome"`
	Attempts int       `json:"attempts,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

func (e Entry) String() string {
	s := fmt.Sprintf("%s %-6s %-9s %s", e.Time.Format(time.DateTime), e.Kind, e.Outcome, e.Subject)
	if e.Attempts > 1 {
		s += fmt.Sprintf(" (%d attempts)", e.Attempts)
	}
	if e.Detail != "" {
		s += ": " + e.Detail
	}
	return s
}

// Log is the report of one batch run. It is safe for concurrent use,
// though batches append to it from a single goroutine.
type Log struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Started time.Time `json:"started"`

	mu       sync.Mutex
	finished time.Time
	entries  []Entry
	now      func() time.Time
}

func New(name string) *Log {
	return newLog(name, time.Now)
}

func newLog(name string, now func() time.Time) *Log {
	return &Log{ID: uuid.NewString(), Name: name, Started: now(), now: now}
}

func (l *Log) Add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.entries = append(l.entries, e)
}

// Upload records a contentsync result.
func (l *Log) Upload(r contentsync.Result) {
	e := Entry{Kind: KindUpload, Subject: r.Path, Attempts: r.Attempts}
	switch r.Status {
	case contentsync.StatusSucceeded:
		e.Outcome = OutcomeSucceeded
	case contentsync.StatusSkipped:
		e.Outcome, e.Detail = OutcomeSkipped, r.Reason
	default:
		e.Outcome = OutcomeFailed
	}
	if r.Err != nil {
		e.Detail = r.Err.Error()
	}
	l.Add(e)
}

// Update records an updater result.
func (l *Log) Update(r updater.Result) {
	e := Entry{Time: r.Finished, Kind: KindUpdate, Subject: r.EntityID, Detail: r.Reason}
	switch r.Outcome {
	case updater.OutcomeCompleted:
		e.Outcome = OutcomeSucceeded
		e.Detail = fmt.Sprintf("%d poll(s)", r.Polls)
	case updater.OutcomeSkipped:
		e.Outcome = OutcomeSkipped
	case updater.OutcomeTimedOut:
		e.Outcome = OutcomeTimedOut
	default:
		e.Outcome = OutcomeFailed
	}
	if r.Err != nil {
		e.Detail = r.Err.Error()
	}
	l.Add(e)
}

// Fail records a failure that is not tied to an upload or an update.
func (l *Log) Fail(kind Kind, subject string, err error) {
	l.Add(Entry{Kind: kind, Subject: subject, Outcome: OutcomeFailed, Detail: err.Error()})
}

func (l *Log) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = l.now()
}

// Entries returns a copy of the entries in the order they were added.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns how many entries ended with o.
func (l *Log) Count(o Outcome) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether any entry failed or timed out.
func (l *Log) Failed() bool {
	return l.Count(OutcomeFailed)+l.Count(OutcomeTimedOut) > 0
}

func (l *Log) Lines() []string {
	entries := l.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.String()
	}
	return out
}

func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, line := range l.Lines() {
		m, err := fmt.Fprintln(w, line)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	m, err := fmt.Fprintln(w, l.Tally())
	n += int64(m)
	return n, err
}

// Tally is the one-line count of outcomes closing a report.
func (l *Log) Tally() string {
	return fmt.Sprintf("%s %s: %d succeeded, %d skipped, %d failed, %d timed out", l.Name, l.ID,
		l.Count(OutcomeSucceeded), l.Count(OutcomeSkipped), l.Count(OutcomeFailed), l.Count(OutcomeTimedOut))
}

// Summary is the serialisable view of a Log.
type Summary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Failed   bool      `json:"failed"`
	Entries  []Entry   `json:"entries"`
}

func (l *Log) Summary() Summary {
	entries := l.Entries()
	l.mu.Lock()
	finished := l.finished
	l.mu.Unlock()
	return Summary{
		ID:       l.ID,
		Name:     l.Name,
		Started:  l.Started,
		Finished: finished,
		Failed:   l.Failed(),
		Entries:  entries,
	}
}

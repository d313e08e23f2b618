package agentcore

import (
	"fmt"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

// TraceRecordType identifies what kind of diagnostic event a
// TraceRecord carries.
type TraceRecordType string

const (
	// TraceRecordContextSnapshot captures the Active Context's message
	// text immediately before a filter or compaction pass runs.
	TraceRecordContextSnapshot TraceRecordType = "context_snapshot"

	// TraceRecordCompressionDiff captures a unified diff between the
	// pre- and post-compaction Active Context text.
	TraceRecordCompressionDiff TraceRecordType = "compression_diff"
)

// TraceRecord is one structured diagnostic event. This replaces the
// source implementation's ad hoc debug-file writes (§9 Open Question)
// with a typed record a pluggable sink can consume however it likes —
// drop it, log it, write it to disk, or keep it in memory for tests.
type TraceRecord struct {
	Type      TraceRecordType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Detail    string          `json:"detail"`
}

// TraceSink receives TraceRecords as the Context Manager and
// Compression Pipeline produce them.
type TraceSink interface {
	Record(record TraceRecord)
}

// NoopTraceSink discards every record. Leaving the pipeline's Trace
// option nil has the same effect, so tracing has zero cost unless a
// caller opts in.
type NoopTraceSink struct{}

func (NoopTraceSink) Record(TraceRecord) {}

// MemoryTraceSink keeps every record in memory, in order. Intended for
// tests and short-lived debugging sessions, not long-running
// processes — it never evicts.
type MemoryTraceSink struct {
	mu      sync.Mutex
	records []TraceRecord
}

// NewMemoryTraceSink returns an empty MemoryTraceSink.
func NewMemoryTraceSink() *MemoryTraceSink {
	return &MemoryTraceSink{}
}

func (s *MemoryTraceSink) Record(record TraceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// Records returns a copy of every record seen so far.
func (s *MemoryTraceSink) Records() []TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TraceRecord, len(s.records))
	copy(out, s.records)
	return out
}

// RingBufferTraceSink keeps only the most recent N records, for
// long-running processes where an unbounded MemoryTraceSink would leak.
type RingBufferTraceSink struct {
	mu       sync.Mutex
	capacity int
	records  []TraceRecord
	next     int
	full     bool
}

// NewRingBufferTraceSink returns a sink that retains at most capacity
// records, overwriting the oldest once full.
func NewRingBufferTraceSink(capacity int) *RingBufferTraceSink {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBufferTraceSink{capacity: capacity, records: make([]TraceRecord, capacity)}
}

func (s *RingBufferTraceSink) Record(record TraceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[s.next] = record
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.full = true
	}
}

// Records returns the retained records in chronological order (oldest
// first).
func (s *RingBufferTraceSink) Records() []TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.full {
		out := make([]TraceRecord, s.next)
		copy(out, s.records[:s.next])
		return out
	}
	out := make([]TraceRecord, s.capacity)
	copy(out, s.records[s.next:])
	copy(out[s.capacity-s.next:], s.records[:s.next])
	return out
}

// FileTraceSink appends each record as a single line to an open file.
// Callers own the file's lifecycle (creation, rotation, closing).
type FileTraceSink struct {
	mu sync.Mutex
	w  interface {
		WriteString(string) (int, error)
	}
}

// NewFileTraceSink wraps an already-open writer (e.g. *os.File) as a
// TraceSink.
func NewFileTraceSink(w interface {
	WriteString(string) (int, error)
}) *FileTraceSink {
	return &FileTraceSink{w: w}
}

func (s *FileTraceSink) Record(record TraceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
		record.Timestamp.Format(time.RFC3339Nano), record.Type, record.SessionID, record.Detail)
	_, _ = s.w.WriteString(line)
}

// CompressionDiffRecord builds a TraceRecordCompressionDiff record
// containing a unified diff between the Active Context's text before
// and after a compaction pass, so a trace consumer can see exactly
// what was dropped or summarized without replaying the whole context.
func CompressionDiffRecord(sessionID, before, after string) TraceRecord {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		text = fmt.Sprintf("diff unavailable: %v", err)
	}
	return TraceRecord{
		Type:      TraceRecordCompressionDiff,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Detail:    text,
	}
}

// ContextSnapshotRecord builds a TraceRecordContextSnapshot record
// capturing the Active Context's text immediately before a filter or
// compaction pass runs.
func ContextSnapshotRecord(sessionID, text string) TraceRecord {
	return TraceRecord{
		Type:      TraceRecordContextSnapshot,
		Timestamp: time.Now(),
		SessionID: sessionID,
		Detail:    text,
	}
}

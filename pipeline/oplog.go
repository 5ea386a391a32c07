package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source tags where an execution result came from.
type Source string

const (
	// SourcePrimary means the operation itself produced the result.
	SourcePrimary Source = "primary"
	// SourceFallback means retries were exhausted or the error was
	// permanent, and the fallback supplied the result.
	SourceFallback Source = "fallback"
	// SourceCircuitOpen means the circuit rejected the call without
	// invoking the operation.
	SourceCircuitOpen Source = "circuit_open"
)

// DefaultLogCapacity is the bound on retained operation log entries.
const DefaultLogCapacity = 100

// maxArgsSnapshot bounds the recorded argument string.
const maxArgsSnapshot = 100

// LogEntry is one append-only record of a resilient execution.
type LogEntry struct {
	ID         string
	Operation  string
	Agent      string
	Args       string // truncated snapshot
	ResultType string
	Source     Source
	Time       time.Time
}

// OperationLog is a fixed-capacity ring buffer of execution records.
// Once full, the oldest entry is evicted first.
type OperationLog struct {
	mu      sync.Mutex
	entries []LogEntry
	start   int
	count   int
}

// NewOperationLog creates a log holding at most capacity entries.
// A non-positive capacity uses DefaultLogCapacity.
func NewOperationLog(capacity int) *OperationLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &OperationLog{entries: make([]LogEntry, capacity)}
}

// Record appends an entry for one execution.
func (l *OperationLog) Record(op, agent string, args []any, result any, source Source) {
	entry := LogEntry{
		ID:         uuid.NewString(),
		Operation:  op,
		Agent:      agent,
		Args:       truncateArgs(args),
		ResultType: fmt.Sprintf("%T", result),
		Source:     source,
		Time:       time.Now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := (l.start + l.count) % len(l.entries)
	l.entries[idx] = entry
	if l.count < len(l.entries) {
		l.count++
	} else {
		l.start = (l.start + 1) % len(l.entries)
	}
}

// Entries returns retained records, oldest first.
func (l *OperationLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogEntry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(l.start+i)%len(l.entries)]
	}
	return out
}

// Len returns the number of retained records.
func (l *OperationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Clear discards all records.
func (l *OperationLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.start = 0
	l.count = 0
}

func truncateArgs(args []any) string {
	s := fmt.Sprintf("%v", args)
	if len(s) > maxArgsSnapshot {
		s = s[:maxArgsSnapshot]
	}
	return s
}

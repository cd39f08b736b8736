// Package diag retains a short history of pipeline failures for operator
// diagnostics, independent of per-request correlation ids.
package diag

import (
	"context"
	"sync"
	"time"
)

// RecentLimit bounds the ring of retained error records.
const RecentLimit = 5

type Record struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorLog stores the most recent failure (most-recent wins) plus a bounded
// ring of recent ones.
type ErrorLog interface {
	Record(ctx context.Context, r Record) error
	Last(ctx context.Context) (*Record, error)
	Recent(ctx context.Context) ([]Record, error)
}

// MemoryLog is the in-process ErrorLog used when Redis is not configured,
// and in tests.
type MemoryLog struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Record(ctx context.Context, r Record) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append([]Record{r}, l.records...)
	if len(l.records) > RecentLimit {
		l.records = l.records[:RecentLimit]
	}
	return nil
}

func (l *MemoryLog) Last(ctx context.Context) (*Record, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) == 0 {
		return nil, nil
	}
	r := l.records[0]
	return &r, nil
}

func (l *MemoryLog) Recent(ctx context.Context) ([]Record, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out, nil
}

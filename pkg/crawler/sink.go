package crawler

import (
	"context"
	"sync"

	"igcrawler/pkg/models"
)

// Sink receives every record a job produces.
type Sink interface {
	Emit(ctx context.Context, rec models.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec models.Record) error

func (f SinkFunc) Emit(ctx context.Context, rec models.Record) error {
	return f(ctx, rec)
}

// Collector is an in-memory Sink safe for concurrent jobs.
type Collector struct {
	mu      sync.Mutex
	records []models.Record
}

func (c *Collector) Emit(_ context.Context, rec models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

// Records returns the records emitted so far, in order.
func (c *Collector) Records() []models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Record, len(c.records))
	copy(out, c.records)
	return out
}

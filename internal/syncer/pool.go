package syncer

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent embedding computation, the dominant latency
// cost. Interactive query embeddings and background re-embeddings share
// the same inference capacity, but background work may hold at most
// size-1 slots, so one slot is always available to queries and a burst
// of registrations cannot starve interactive discovery.
type Pool struct {
	total      *semaphore.Weighted
	background *semaphore.Weighted
}

// NewPool creates a pool with the given number of inference slots.
// Sizes below two still reserve a query slot by limiting background
// work to a single in-flight task.
func NewPool(size int) *Pool {
	if size < 2 {
		size = 2
	}
	return &Pool{
		total:      semaphore.NewWeighted(int64(size)),
		background: semaphore.NewWeighted(int64(size - 1)),
	}
}

// AcquireQuery takes a slot for an interactive query embedding.
func (p *Pool) AcquireQuery(ctx context.Context) error {
	return p.total.Acquire(ctx, 1)
}

// ReleaseQuery returns a query slot.
func (p *Pool) ReleaseQuery() {
	p.total.Release(1)
}

// AcquireBackground takes a slot for background re-embedding work.
func (p *Pool) AcquireBackground(ctx context.Context) error {
	if err := p.background.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := p.total.Acquire(ctx, 1); err != nil {
		p.background.Release(1)
		return err
	}
	return nil
}

// ReleaseBackground returns a background slot.
func (p *Pool) ReleaseBackground() {
	p.total.Release(1)
	p.background.Release(1)
}

package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/fibre/mutation"
)

// Router fans out to all configured sinks. One sink error does not block the
// others: errors are logged and the first one is returned.
//
// The router also watches the generation sequence of each container. Commit
// generations grow by one, so a jump means batches were lost upstream and a
// step back means the renderer was replaced; both are logged and counted.
type Router struct {
	sinks  []Sink
	logger *slog.Logger

	mu   sync.Mutex
	last map[string]uint64
	gaps int
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger, last: make(map[string]uint64)}
}

// Add appends a sink.
func (r *Router) Add(s Sink) { r.sinks = append(r.sinks, s) }

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

// Gaps returns how many breaks in the generation sequence Send has seen.
func (r *Router) Gaps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gaps
}

func (r *Router) track(b mutation.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.last[b.Container]
	r.last[b.Container] = b.Generation
	if !seen || b.Generation == prev+1 {
		return
	}
	r.gaps++
	if b.Generation > prev {
		r.logger.Warn("sink: generation gap", "container", b.Container, "want", prev+1, "got", b.Generation, "missing", b.Generation-prev-1)
	} else {
		r.logger.Warn("sink: generation went back", "container", b.Container, "previous", prev, "got", b.Generation)
	}
}

func (r *Router) Send(ctx context.Context, batch mutation.Batch) error {
	r.track(batch)
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, batch); err != nil {
			r.logger.Warn("sink: send batch failed", "generation", batch.Generation, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendSnapshot(ctx context.Context, snap mutation.Snapshot) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.SendSnapshot(ctx, snap); err != nil {
			r.logger.Warn("sink: send snapshot failed", "generation", snap.Generation, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

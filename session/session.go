// Package session runs a fibre renderer against a host and publishes what
// every commit did.
//
// A Session owns the reconciler, the host it renders into (in-memory DOM or
// a live Chrome page) and the idle-time driver whose goroutine does all the
// rendering. On every commit it drains the host's mutation log into a
// mutation.Batch and hands it to the sinks; every few commits it also emits
// a full snapshot of the host tree. With a store configured, batches,
// snapshots and per-commit metrics are persisted in SQLite.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/fiber"
	"github.com/hazyhaar/fibre/host/memdom"
	"github.com/hazyhaar/fibre/idgen"
	"github.com/hazyhaar/fibre/idle"
	"github.com/hazyhaar/fibre/internal/config"
	"github.com/hazyhaar/fibre/internal/sink"
	"github.com/hazyhaar/fibre/mutation"
	"github.com/hazyhaar/fibre/observability"
	"github.com/hazyhaar/fibre/store"
)

var (
	// ErrNotStarted is returned by calls made before Start or after Stop.
	ErrNotStarted = errors.New("session: not started")

	// ErrNoStore is returned by the commit log queries of a session without
	// a store.
	ErrNoStore = errors.New("session: no store configured")
)

// Container is the name batches and snapshots are filed under.
const Container = "body"

// Session is the top-level orchestrator. Create one per rendered surface.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	newID  idgen.Generator

	surf     *surface
	renderer *fiber.Renderer
	driver   *idle.Driver
	sinkR    *sink.Router
	store    *store.Store
	ownStore bool
	metrics  *observability.MetricsManager

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	commits   int
	snapshots int
	lastSnap  string
	last      *mutation.Batch
	lastErr   error
	renderErr error // of the pass started by the latest Render or Unmount
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSinks adds sinks next to the ones of the configuration.
func WithSinks(sinks ...Sink) Option {
	return func(s *Session) {
		for _, sk := range sinks {
			s.sinkR.Add(sk)
		}
	}
}

// WithStore persists the commit log in st instead of the configured path.
// The session does not close it.
func WithStore(st *store.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithIDGenerator sets the generator of batch and snapshot ids.
// Defaults to prefixed UUIDv7.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Session) { s.newID = gen }
}

// WithMemoryHost renders into d instead of a DOM of the session's own.
func WithMemoryHost(d *memdom.DOM) Option {
	return func(s *Session) { s.surf = memorySurface(d) }
}

// New creates a Session. Nothing runs until Start is called. Unset fields of
// cfg take their defaults; cfg itself is not modified.
func New(cfg *Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	} else {
		c := *cfg
		c.Sinks = append([]config.SinkConfig(nil), cfg.Sinks...)
		c.ApplyDefaults()
		cfg = &c
	}
	s := &Session{
		cfg:   cfg,
		newID: idgen.UUIDv7(),
		sinkR: sink.NewRouter(nil),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	for _, sc := range cfg.Sinks {
		s.sinkR.Add(sinkFromConfig(sc, s.logger))
	}
	return s
}

// Start opens the host and the store and starts the render goroutine.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if s.surf == nil {
		surf, err := openSurface(ctx, s.cfg, s.logger)
		if err != nil {
			return err
		}
		s.surf = surf
	}

	if s.store == nil && s.cfg.Store.Path != "" {
		st, err := store.Open(s.cfg.Store.Path)
		if err != nil {
			s.surf.close()
			return fmt.Errorf("session: open store: %w", err)
		}
		s.store, s.ownStore = st, true
	}
	if s.store != nil {
		if err := observability.Init(s.store.DB); err != nil {
			s.closeResources()
			return fmt.Errorf("session: init metrics: %w", err)
		}
		s.metrics = observability.NewMetricsManager(s.store.DB, s.logger, 100, 5*time.Second)
		s.sinkR.Add(sink.NewCallback(
			func(ctx context.Context, b mutation.Batch) error { return s.store.InsertBatch(ctx, &b) },
			func(ctx context.Context, snap mutation.Snapshot) error { return s.store.InsertSnapshot(ctx, &snap) },
		))
	}

	s.renderer = fiber.New(s.surf.adapter,
		fiber.WithLogger(s.logger),
		fiber.WithMinSlice(s.cfg.Scheduler.MinSlice),
		fiber.WithOnCommit(s.onCommit),
	)
	s.driver = idle.NewDriver(s.renderer,
		idle.WithSlice(s.cfg.Scheduler.Slice),
		idle.WithInterval(s.cfg.Scheduler.Interval),
		idle.WithLogger(s.logger),
		idle.WithErrorHandler(s.onError),
	)

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	go s.driver.Run(s.ctx)
	s.started = true

	s.logger.Info("session: started", "host", s.surf.kind, "store", s.store != nil, "sinks", s.sinkR.Len())
	return nil
}

// Stop halts the render goroutine and releases the host, sinks and store.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	<-s.driver.Done()
	s.closeResources()
	s.logger.Info("session: stopped", "commits", s.commits)
}

func (s *Session) closeResources() {
	if s.metrics != nil {
		s.metrics.Close()
	}
	s.sinkR.Close()
	if s.ownStore {
		s.store.Close()
	}
	if s.surf != nil {
		s.surf.close()
	}
}

// do runs fn on the render goroutine.
func (s *Session) do(ctx context.Context, fn func()) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if err := s.driver.Do(ctx, fn); err != nil {
		if errors.Is(err, idle.ErrStopped) {
			return ErrNotStarted
		}
		return err
	}
	return nil
}

// Render schedules el as the new content of the session's container. The
// work happens in idle slices; Settle waits for the commit and reports
// whether it failed.
func (s *Session) Render(ctx context.Context, el *element.Element) error {
	var err error
	if derr := s.do(ctx, func() {
		s.resetRenderErr()
		err = s.renderer.Render(el, s.surf.container)
	}); derr != nil {
		return derr
	}
	if err != nil {
		return fmt.Errorf("session: render: %w", err)
	}
	return nil
}

// Unmount schedules the removal of everything rendered into the container.
func (s *Session) Unmount(ctx context.Context) error {
	var err error
	if derr := s.do(ctx, func() {
		s.resetRenderErr()
		err = s.renderer.Unmount(s.surf.container)
	}); derr != nil {
		return derr
	}
	return err
}

// Settle waits until no render is pending. It returns the error of the
// render pass started by the latest Render or Unmount, if that pass failed to
// build or commit.
func (s *Session) Settle(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if err := s.driver.Settle(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.renderErr
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("session: render: %w", err)
	}
	return nil
}

func (s *Session) resetRenderErr() {
	s.mu.Lock()
	s.renderErr = nil
	s.mu.Unlock()
}

func (s *Session) onError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.renderErr = err
	s.mu.Unlock()
}

package fiber

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
)

// DefaultMinSlice is the budget below which Tick stops taking new units.
const DefaultMinSlice = time.Millisecond

// Renderer owns the committed trees, the work-in-progress tree and its cursor.
// It is not safe for concurrent use: every call must come from the goroutine
// that drives the work loop.
type Renderer struct {
	adapter  host.Adapter
	logger   *slog.Logger
	minSlice time.Duration
	onCommit func(CommitInfo)

	roots     map[host.Node]*tree
	wip       *tree
	next      Ref
	deletions []Ref // refs into wip.base
	started   time.Time

	gen   uint64
	stats Stats
}

// Stats are cumulative counters of a Renderer.
type Stats struct {
	Renders    int    `json:"renders"`
	Commits    int    `json:"commits"`
	Abandoned  int    `json:"abandoned"`
	Failed     int    `json:"failed"`
	Units      int    `json:"units"`
	Yields     int    `json:"yields"`
	Generation uint64 `json:"generation"`
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithMinSlice sets the remaining budget below which Tick yields.
func WithMinSlice(d time.Duration) Option {
	return func(r *Renderer) {
		if d >= 0 {
			r.minSlice = d
		}
	}
}

// WithOnCommit registers a hook called after every commit, on the work loop
// goroutine.
func WithOnCommit(fn func(CommitInfo)) Option {
	return func(r *Renderer) { r.onCommit = fn }
}

// New creates a Renderer that drives adapter.
func New(adapter host.Adapter, opts ...Option) *Renderer {
	r := &Renderer{
		adapter:  adapter,
		minSlice: DefaultMinSlice,
		roots:    make(map[host.Node]*tree),
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Render schedules el to be rendered into container. It validates el, drops
// any render still under construction and returns; the work happens in Tick.
//
// container must be a comparable host handle. It is the root's node: the
// renderer appends into it and never creates or removes it.
func (r *Renderer) Render(el *element.Element, container host.Node) error {
	if err := element.Validate(el); err != nil {
		return err
	}
	if container == nil {
		return ErrNoContainer
	}
	if r.wip != nil {
		r.abandon()
	}

	base := r.roots[container]
	t := newTree(base, container)
	root := Fiber{
		Kind:     KindRoot,
		Children: []*element.Element{el},
		Node:     container,
	}
	if base != nil {
		root.Alternate = rootRef
	}
	t.add(root)
	t.generation = r.gen + 1

	r.wip = t
	r.next = rootRef
	r.deletions = r.deletions[:0]
	r.started = time.Now()
	r.stats.Renders++
	return nil
}

// abandon drops the work-in-progress tree. Host nodes created for its
// placements were never attached; they are handed to the adapter's Disposer.
func (r *Renderer) abandon() {
	t := r.wip
	disposed := 0
	if d, ok := r.adapter.(host.Disposer); ok {
		for i := rootRef + 1; int(i) < len(t.nodes); i++ {
			f := &t.nodes[i]
			if f.Alternate == 0 && f.Node != nil {
				d.Dispose(f.Node)
				disposed++
			}
		}
	}
	r.logger.Debug("fiber: render abandoned", "generation", t.generation, "units", t.units, "disposed", disposed)
	r.wip = nil
	r.next = 0
	r.deletions = r.deletions[:0]
	r.stats.Abandoned++
}

// Pending reports whether a render is under construction.
func (r *Renderer) Pending() bool { return r.wip != nil }

// Current lists the committed tree of container in pre-order, root first.
// It returns nil when nothing was committed there.
func (r *Renderer) Current(container host.Node) []FiberInfo {
	t, ok := r.roots[container]
	if !ok {
		return nil
	}
	return t.walk(rootRef, 0, nil)
}

// Containers returns the containers that hold a committed tree.
func (r *Renderer) Containers() []host.Node {
	out := make([]host.Node, 0, len(r.roots))
	for c := range r.roots {
		out = append(out, c)
	}
	return out
}

// Unmount schedules the removal of everything rendered into container.
func (r *Renderer) Unmount(container host.Node) error {
	if container == nil {
		return ErrNoContainer
	}
	if r.wip != nil {
		r.abandon()
	}
	base, ok := r.roots[container]
	if !ok {
		return nil
	}
	t := newTree(base, container)
	t.add(Fiber{Kind: KindRoot, Node: container, Alternate: rootRef})
	t.generation = r.gen + 1
	r.wip = t
	r.next = rootRef
	r.deletions = r.deletions[:0]
	r.started = time.Now()
	r.stats.Renders++
	return nil
}

// Stats returns a copy of the counters.
func (r *Renderer) Stats() Stats {
	s := r.stats
	s.Generation = r.gen
	return s
}

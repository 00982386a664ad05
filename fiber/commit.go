package fiber

import (
	"fmt"
	"time"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
)

// Effects counts what a commit did.
type Effects struct {
	Placements int `json:"placements"`
	Updates    int `json:"updates"`
	Deletions  int `json:"deletions"`
	PropSets   int `json:"prop_sets"` // ApplyProps calls
}

// CommitInfo is passed to the commit hook.
type CommitInfo struct {
	Container  host.Node
	Generation uint64
	Effects    Effects
	Units      int
	Ticks      int
	Duration   time.Duration
	Deletions  []FiberInfo
	Err        error
}

// commitRoot applies the finished work-in-progress tree to the host in one
// step, then makes it the current tree of its container.
//
// Host failures do not stop the commit: the host is already partly mutated,
// so the rest of the effects are still applied and the tree is promoted.
// The failures are returned as a *CommitError.
func (r *Renderer) commitRoot() error {
	t := r.wip
	c := committer{r: r, t: t}

	for _, d := range r.deletions {
		c.info.Deletions = append(c.info.Deletions, deletedInfo(t.base, d))
		c.fx.Deletions++
		c.remove(d, t.base.hostParent(d))
	}

	for f := t.nodes[rootRef].Child; f != 0; f = t.next(f) {
		switch t.nodes[f].Effect {
		case Placement:
			c.fx.Placements++
			c.place(f)
		case Update:
			c.fx.Updates++
			c.update(f)
		}
	}

	r.gen++
	t.generation = r.gen
	t.base = nil
	if t.nodes[rootRef].Children == nil {
		delete(r.roots, t.container)
	} else {
		r.roots[t.container] = t
	}
	r.wip = nil
	r.next = 0
	r.deletions = r.deletions[:0]
	r.stats.Commits++

	var err error
	if len(c.errs) > 0 {
		err = &CommitError{Generation: t.generation, Errs: c.errs}
		r.logger.Error("fiber: commit failed", "generation", t.generation, "failures", len(c.errs), "error", err)
	} else {
		r.logger.Debug("fiber: commit", "generation", t.generation,
			"placements", c.fx.Placements, "updates", c.fx.Updates, "deletions", c.fx.Deletions,
			"units", t.units, "ticks", t.ticks)
	}

	if r.onCommit != nil {
		c.info.Container = t.container
		c.info.Generation = t.generation
		c.info.Effects = c.fx
		c.info.Units = t.units
		c.info.Ticks = t.ticks
		c.info.Duration = time.Since(r.started)
		c.info.Err = err
		r.onCommit(c.info)
	}
	return err
}

type committer struct {
	r    *Renderer
	t    *tree
	fx   Effects
	info CommitInfo
	errs []error
}

func (c *committer) fail(op string, f Fiber, err error) {
	err = fmt.Errorf("fiber: commit: %s %s: %w", op, fiberName(f), err)
	c.r.logger.Error("fiber: host operation failed", "op", op, "type", fiberName(f), "error", err)
	c.errs = append(c.errs, err)
}

// remove detaches the host nodes of the old subtree at f from parent. A fiber
// without a node removes its children instead. Detached nodes are disposed.
func (c *committer) remove(f Ref, parent host.Node) {
	base := c.t.base
	if n := base.nodes[f].Node; n != nil {
		if err := c.r.adapter.RemoveChild(parent, n); err != nil {
			c.fail("remove", base.nodes[f], err)
			return
		}
		if d, ok := c.r.adapter.(host.Disposer); ok {
			d.Dispose(n)
		}
		return
	}
	for ch := base.nodes[f].Child; ch != 0; ch = base.nodes[ch].Sibling {
		c.remove(ch, parent)
	}
}

func (c *committer) place(f Ref) {
	t := c.t
	n := t.nodes[f].Node
	if n == nil {
		return
	}
	if changes := host.Diff(nil, t.nodes[f].Props); len(changes) > 0 {
		c.fx.PropSets++
		if err := c.r.adapter.ApplyProps(n, changes); err != nil {
			c.fail("props", t.nodes[f], err)
		}
	}

	parent := t.hostParent(f)
	var err error
	if ins, ok := c.r.adapter.(host.Inserter); ok {
		if ref := t.hostSibling(f); ref != nil {
			err = ins.InsertBefore(parent, n, ref)
		} else {
			err = c.r.adapter.AppendChild(parent, n)
		}
	} else {
		err = c.r.adapter.AppendChild(parent, n)
	}
	if err != nil {
		c.fail("place", t.nodes[f], err)
	}
}

func (c *committer) update(f Ref) {
	t := c.t
	n := t.nodes[f].Node
	if n == nil {
		return
	}
	prev := t.base.nodes[t.nodes[f].Alternate].Props
	changes := host.Diff(prev, t.nodes[f].Props)
	if len(changes) == 0 {
		return
	}
	c.fx.PropSets++
	if err := c.r.adapter.ApplyProps(n, changes); err != nil {
		c.fail("props", t.nodes[f], err)
	}
}

func deletedInfo(base *tree, f Ref) FiberInfo {
	fi := base.info(f, 0)
	for p := base.nodes[f].Parent; p != 0; p = base.nodes[p].Parent {
		fi.Depth++
	}
	fi.Effect = Deletion
	return fi
}

func fiberName(f Fiber) string {
	if f.Kind == KindRoot {
		return "#root"
	}
	return element.TypeName(f.Type)
}

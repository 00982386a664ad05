package fiber

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
	"github.com/hazyhaar/fibre/idle"
)

// Deadline is the budget of the current idle slice.
type Deadline = idle.Deadline

// Tick runs units of work until the construction is complete or d has less
// than the renderer's minimum slice left. Units are atomic: the budget is only
// checked between them, and at least one unit runs per call.
//
// When the last unit is done the tree is committed in the same call. done
// reports that nothing is left to do; it is true after a commit, after a
// construction failure (the work-in-progress tree is dropped and the committed
// tree is left as it was) and when no render is pending.
func (r *Renderer) Tick(d Deadline) (done bool, err error) {
	if r.wip == nil {
		return true, nil
	}
	r.wip.ticks++
	for r.next != 0 {
		next, err := r.performUnitOfWork(r.next)
		if err != nil {
			r.stats.Failed++
			r.logger.Warn("fiber: render failed", "error", err, "units", r.wip.units)
			r.abandon()
			return true, err
		}
		r.wip.units++
		r.stats.Units++
		r.next = next
		if r.next != 0 && d.TimeRemaining() < r.minSlice {
			r.stats.Yields++
			return false, nil
		}
	}
	return true, r.commitRoot()
}

// Flush runs the pending render to completion.
func (r *Renderer) Flush() error {
	_, err := r.Tick(idle.Unbounded)
	return err
}

// performUnitOfWork expands one fiber: it evaluates components or creates the
// host node, reconciles the children, and returns the next unit.
func (r *Renderer) performUnitOfWork(f Ref) (Ref, error) {
	t := r.wip
	switch t.nodes[f].Kind {
	case KindComponent:
		comp := t.nodes[f].Type.(*element.Component)
		child, err := evaluate(comp, t.nodes[f].Props, t.nodes[f].Children)
		if err != nil {
			return 0, err
		}
		var children []*element.Element
		if child != nil {
			children = []*element.Element{child}
		}
		r.reconcileChildren(f, children)

	case KindHost, KindText:
		if t.nodes[f].Node == nil {
			n, err := r.adapter.CreateNode(t.nodes[f].Type)
			if err != nil {
				return 0, fmt.Errorf("fiber: create %s: %w", element.TypeName(t.nodes[f].Type), wrapCapability(err))
			}
			t.nodes[f].Node = n
		}
		r.reconcileChildren(f, t.nodes[f].Children)

	case KindRoot:
		r.reconcileChildren(f, t.nodes[f].Children)
	}
	return t.next(f), nil
}

func evaluate(c *element.Component, props element.Props, children []*element.Element) (out *element.Element, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: %v", ErrComponentPanic, c.Name, p)
		}
	}()
	out = c.Render(props, children)
	if out == nil {
		return nil, nil
	}
	if err := element.Validate(out); err != nil {
		return nil, fmt.Errorf("fiber: component %s: %w", c.Name, err)
	}
	return out, nil
}

// wrapCapability makes every creation failure match
// host.ErrMismatchedHostCapability.
func wrapCapability(err error) error {
	if errors.Is(err, host.ErrMismatchedHostCapability) {
		return err
	}
	return fmt.Errorf("%w: %v", host.ErrMismatchedHostCapability, err)
}

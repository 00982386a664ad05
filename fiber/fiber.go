// Package fiber is the reconciliation engine.
//
// A Renderer keeps, per render container, the last committed tree of fibers.
// Render starts building a work-in-progress tree against it; Tick advances the
// construction one unit of work at a time until the caller's time budget runs
// out, and commits the finished tree to the host adapter in one uninterrupted
// step.
//
// Fibers live in a per-generation arena and link to each other by Ref:
// child and sibling form the tree, parent and alternate are back-references.
// Alternate refs point into the tree the fiber was reconciled against.
package fiber

import (
	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
)

// Ref addresses a fiber inside its tree. The zero Ref is "none".
type Ref int32

// rootRef is where every tree keeps its root work unit.
const rootRef Ref = 1

// Effect is what a commit must do with a fiber.
type Effect uint8

const (
	EffectNone Effect = iota
	Update
	Placement
	Deletion
)

func (e Effect) String() string {
	switch e {
	case Update:
		return "UPDATE"
	case Placement:
		return "PLACEMENT"
	case Deletion:
		return "DELETION"
	}
	return "NONE"
}

// Kind is the fiber variant.
type Kind uint8

const (
	KindRoot Kind = iota
	KindHost
	KindText
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindText:
		return "text"
	case KindComponent:
		return "component"
	}
	return "root"
}

func kindOf(t element.Type) Kind {
	switch element.KindOf(t) {
	case element.KindText:
		return KindText
	case element.KindComponent:
		return KindComponent
	}
	return KindHost
}

// Fiber is one position of the tree in one generation.
type Fiber struct {
	Kind     Kind
	Type     element.Type
	Props    element.Props
	Children []*element.Element

	Parent    Ref
	Child     Ref
	Sibling   Ref
	Alternate Ref

	// Node is the host handle this fiber controls. Component fibers have none;
	// the root holds the render container.
	Node   host.Node
	Effect Effect
}

// tree is the arena of one generation.
type tree struct {
	nodes     []Fiber // nodes[0] is unused so that Ref(0) means none
	base      *tree   // tree that Alternate refs index into; nil once committed
	container host.Node

	generation uint64
	units      int
	ticks      int
}

func newTree(base *tree, container host.Node) *tree {
	size := 64
	if base != nil {
		size = len(base.nodes)
	}
	return &tree{
		nodes:     make([]Fiber, 1, size),
		base:      base,
		container: container,
	}
}

// add appends f and returns its Ref. Pointers into t.nodes do not survive a
// call to add.
func (t *tree) add(f Fiber) Ref {
	t.nodes = append(t.nodes, f)
	return Ref(len(t.nodes) - 1)
}

// next returns the fiber after f in pre-order: its child, else the sibling
// of the nearest ancestor that has one.
func (t *tree) next(f Ref) Ref {
	if c := t.nodes[f].Child; c != 0 {
		return c
	}
	for ; f != 0; f = t.nodes[f].Parent {
		if s := t.nodes[f].Sibling; s != 0 {
			return s
		}
	}
	return 0
}

// hostParent returns the host node of the nearest ancestor that has one.
func (t *tree) hostParent(f Ref) host.Node {
	for p := t.nodes[f].Parent; p != 0; p = t.nodes[p].Parent {
		if n := t.nodes[p].Node; n != nil {
			return n
		}
	}
	return nil
}

// mounted returns the first host node of the subtree at f that is already
// attached, skipping subtrees still waiting for placement.
func (t *tree) mounted(f Ref) host.Node {
	if t.nodes[f].Effect == Placement {
		return nil
	}
	if n := t.nodes[f].Node; n != nil {
		return n
	}
	for c := t.nodes[f].Child; c != 0; c = t.nodes[c].Sibling {
		if n := t.mounted(c); n != nil {
			return n
		}
	}
	return nil
}

// hostSibling returns the attached host node that f must be inserted before,
// looking through component fibers, or nil to append.
func (t *tree) hostSibling(f Ref) host.Node {
	for cur := f; ; {
		for s := t.nodes[cur].Sibling; s != 0; s = t.nodes[s].Sibling {
			if n := t.mounted(s); n != nil {
				return n
			}
		}
		p := t.nodes[cur].Parent
		if p == 0 || t.nodes[p].Node != nil {
			return nil
		}
		cur = p
	}
}

// FiberInfo is a read-only view of a fiber.
type FiberInfo struct {
	Depth  int
	Kind   Kind
	Type   element.Type
	Props  element.Props
	Effect Effect
	Node   host.Node
}

// Name returns the printable type name.
func (fi FiberInfo) Name() string {
	if fi.Kind == KindRoot {
		return "#root"
	}
	return element.TypeName(fi.Type)
}

func (t *tree) info(f Ref, depth int) FiberInfo {
	n := &t.nodes[f]
	return FiberInfo{Depth: depth, Kind: n.Kind, Type: n.Type, Props: n.Props, Effect: n.Effect, Node: n.Node}
}

// walk lists the subtree at f in pre-order.
func (t *tree) walk(f Ref, depth int, out []FiberInfo) []FiberInfo {
	out = append(out, t.info(f, depth))
	for c := t.nodes[f].Child; c != 0; c = t.nodes[c].Sibling {
		out = t.walk(c, depth+1, out)
	}
	return out
}

package fiber

import "github.com/hazyhaar/fibre/element"

// reconcileChildren builds the child chain of parent from children, walking
// the alternate's old children in lockstep.
//
// Matching is positional and by type only: there are no keys, so swapping
// two siblings of the same type updates both in place rather than moving
// them. A slot whose type changed gets a new PLACEMENT fiber and its old fiber
// goes to the deletion list. Old fibers are never written.
func (r *Renderer) reconcileChildren(parent Ref, children []*element.Element) {
	t := r.wip
	var old Ref
	if alt := t.nodes[parent].Alternate; alt != 0 {
		old = t.base.nodes[alt].Child
	}

	var prev Ref
	for i := 0; i < len(children) || old != 0; i++ {
		var el *element.Element
		if i < len(children) {
			el = children[i]
		}
		same := old != 0 && el != nil && t.base.nodes[old].Type == el.Type

		var nf Ref
		switch {
		case same:
			nf = t.add(Fiber{
				Kind:      kindOf(el.Type),
				Type:      el.Type,
				Props:     el.Props,
				Children:  el.Children,
				Parent:    parent,
				Alternate: old,
				Node:      t.base.nodes[old].Node,
				Effect:    Update,
			})
		case el != nil:
			nf = t.add(Fiber{
				Kind:     kindOf(el.Type),
				Type:     el.Type,
				Props:    el.Props,
				Children: el.Children,
				Parent:   parent,
				Effect:   Placement,
			})
		}
		if old != 0 && !same {
			r.deletions = append(r.deletions, old)
		}

		if old != 0 {
			old = t.base.nodes[old].Sibling
		}
		if nf == 0 {
			continue
		}
		if prev == 0 {
			t.nodes[parent].Child = nf
		} else {
			t.nodes[prev].Sibling = nf
		}
		prev = nf
	}
}

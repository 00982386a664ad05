// Package host defines the boundary between the reconciler and the platform
// that actually displays nodes.
//
// An Adapter is synchronous: once a call returns, its effect is visible. The
// reconciler calls CreateNode while building a tree and the mutation methods
// only while committing.
package host

import (
	"errors"

	"github.com/hazyhaar/fibre/element"
)

// ErrMismatchedHostCapability is returned (wrapped) when an adapter cannot
// create a node for the requested type.
var ErrMismatchedHostCapability = errors.New("host: mismatched host capability")

// Node is an opaque platform handle. Adapters must use comparable handles
// (pointers or integers): the reconciler keys containers by Node.
type Node any

// Event is delivered to listeners registered through "onXxx" props.
type Event struct {
	Type   string // "click"
	Target Node
	Detail any
}

// Listener values accepted for "onXxx" props are func(Event) and func().
type Listener = func(Event)

// Adapter is the platform capability set used by the reconciler.
type Adapter interface {
	// CreateNode creates a detached node. Props are applied later, at commit.
	CreateNode(t element.Type) (Node, error)
	// ApplyProps applies the changed entries of a props diff, see Diff.
	ApplyProps(n Node, changes []Change) error
	AppendChild(parent, child Node) error
	RemoveChild(parent, child Node) error
}

// Inserter is implemented by adapters able to insert a node before a mounted
// sibling. Without it placements are appended to their parent.
type Inserter interface {
	InsertBefore(parent, child, ref Node) error
}

// Disposer is implemented by adapters whose handles hold resources. The
// reconciler disposes the nodes a commit detached and the nodes it created
// during a render pass that was abandoned before commit.
type Disposer interface {
	Dispose(n Node)
}

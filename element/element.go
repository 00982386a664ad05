// Package element defines the declarative tree descriptions consumed by the
// reconciler.
//
// An Element is an immutable value: a Type, a Props mapping and an ordered
// list of children. Elements are built fresh for every render request and are
// never mutated afterwards.
//
//	root := element.New(element.Tag("div"), element.Props{"className": "card"},
//		element.New(element.Tag("h1"), nil, "Hello"),
//		element.New(Greeting, element.Props{"name": "foo"}),
//	)
package element

import (
	"errors"
	"fmt"
)

// ErrInvalidElementShape is returned when a description cannot be rendered,
// e.g. a nil child or a text element carrying children.
var ErrInvalidElementShape = errors.New("element: invalid element shape")

// ChildrenKey is reserved: children are carried by Element.Children, never
// through Props.
const ChildrenKey = "children"

// ValueKey holds the text of a Text element.
const ValueKey = "nodeValue"

// Props maps property names to values. Keys of the form "onXxx" are event
// listeners, everything else is a plain property.
type Props map[string]any

// Type identifies what an Element renders to. It is one of Tag, the Text
// marker, or a *Component.
type Type interface {
	typeName() string
}

// Tag is a host element kind such as "div" or "h1".
type Tag string

func (t Tag) typeName() string { return string(t) }

type textType struct{}

func (textType) typeName() string { return "#text" }

// Text marks textual content. The text itself lives in Props[ValueKey].
var Text Type = textType{}

// RenderFunc evaluates a function component.
type RenderFunc func(props Props, children []*Element) *Element

// Component is a function component. Components are compared by pointer, so
// declare them once at package level:
//
//	var Greeting = element.Func("Greeting", func(p element.Props, _ []*element.Element) *element.Element {
//		return element.New(element.Tag("p"), nil, "hello ", p["name"].(string))
//	})
type Component struct {
	Name   string
	Render RenderFunc
}

func (c *Component) typeName() string { return c.Name }

// Func declares a function component.
func Func(name string, render RenderFunc) *Component {
	return &Component{Name: name, Render: render}
}

// Kind is the variant of a Type.
type Kind int

const (
	KindInvalid Kind = iota
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
	return "invalid"
}

// KindOf reports the variant of t.
func KindOf(t Type) Kind {
	switch t := t.(type) {
	case Tag:
		if t == "" {
			return KindInvalid
		}
		return KindHost
	case textType:
		return KindText
	case *Component:
		if t == nil || t.Render == nil {
			return KindInvalid
		}
		return KindComponent
	}
	return KindInvalid
}

// TypeName returns a printable name for t.
func TypeName(t Type) string {
	if t == nil {
		return "<nil>"
	}
	if c, ok := t.(*Component); ok && c == nil {
		return "<nil component>"
	}
	return t.typeName()
}

// Element is one node of a declarative tree.
type Element struct {
	Type     Type
	Props    Props
	Children []*Element
}

// New builds an Element. Children may be *Element, []*Element (flattened),
// string (wrapped with TextOf) or nil (dropped). Any other child value is kept
// as a nil entry so that Validate rejects the tree.
func New(typ Type, props Props, children ...any) *Element {
	el := &Element{Type: typ, Props: make(Props, len(props))}
	for k, v := range props {
		el.Props[k] = v
	}
	for _, c := range children {
		switch c := c.(type) {
		case nil:
		case *Element:
			el.Children = append(el.Children, c)
		case []*Element:
			el.Children = append(el.Children, c...)
		case string:
			el.Children = append(el.Children, TextOf(c))
		default:
			el.Children = append(el.Children, nil)
		}
	}
	return el
}

// TextOf builds a Text element.
func TextOf(s string) *Element {
	return &Element{Type: Text, Props: Props{ValueKey: s}}
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("<%s %d props, %d children>", TypeName(e.Type), len(e.Props), len(e.Children))
}

// Validate checks the whole tree rooted at e. Function components are not
// evaluated; their output is validated when the reconciler renders them.
func Validate(e *Element) error {
	return validate(e, "root")
}

func validate(e *Element, path string) error {
	if e == nil {
		return fmt.Errorf("%w: %s: nil element", ErrInvalidElementShape, path)
	}
	kind := KindOf(e.Type)
	if kind == KindInvalid {
		return fmt.Errorf("%w: %s: unsupported type %s", ErrInvalidElementShape, path, TypeName(e.Type))
	}
	if _, ok := e.Props[ChildrenKey]; ok {
		return fmt.Errorf("%w: %s: %q is reserved", ErrInvalidElementShape, path, ChildrenKey)
	}
	if kind == KindText {
		if len(e.Children) > 0 {
			return fmt.Errorf("%w: %s: text element has children", ErrInvalidElementShape, path)
		}
		if _, ok := e.Props[ValueKey].(string); !ok {
			return fmt.Errorf("%w: %s: text element without string %s", ErrInvalidElementShape, path, ValueKey)
		}
	}
	for i, c := range e.Children {
		if err := validate(c, fmt.Sprintf("%s/%s[%d]", path, TypeName(e.Type), i)); err != nil {
			return err
		}
	}
	return nil
}

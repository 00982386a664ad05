// Package memdom is an in-memory host adapter backed by golang.org/x/net/html
// nodes.
//
// It is the default host of a fibre session: the committed tree can be
// serialised at any time, every mutation is recorded as a mutation.Record and
// event listeners can be fired with Dispatch.
package memdom

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
	"github.com/hazyhaar/fibre/mutation"
)

// Counters tracks adapter calls. Tests use them to check that an unchanged
// render does no host work.
type Counters struct {
	Creates  int
	Applies  int
	Appends  int
	Inserts  int
	Removes  int
	Disposes int
}

// DOM is the adapter. It is safe for concurrent use: the reconciler mutates it
// from its loop goroutine while inspectors serialise it.
type DOM struct {
	mu        sync.RWMutex
	doc       *html.Node
	body      *html.Node
	listeners map[*html.Node]map[string]any
	records   []mutation.Record
	counters  Counters
	failTags  map[string]bool
	record    bool
	logger    *slog.Logger
}

// Option configures a DOM.
type Option func(*DOM)

// WithoutRecording disables the mutation log.
func WithoutRecording() Option {
	return func(d *DOM) { d.record = false }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *DOM) { d.logger = l }
}

// New creates an empty document (html/head/body).
func New(opts ...Option) *DOM {
	doc := &html.Node{Type: html.DocumentNode}
	root := newElement("html")
	head := newElement("head")
	body := newElement("body")
	doc.AppendChild(root)
	root.AppendChild(head)
	root.AppendChild(body)

	d := &DOM{
		doc:       doc,
		body:      body,
		listeners: make(map[*html.Node]map[string]any),
		failTags:  make(map[string]bool),
		record:    true,
	}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

func newElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// Body returns the document body, the usual render container.
func (d *DOM) Body() *html.Node { return d.body }

// Fail makes CreateNode reject tag, emulating a platform without that
// element kind.
func (d *DOM) Fail(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failTags[tag] = true
}

// Counters returns a copy of the call counters.
func (d *DOM) Counters() Counters {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counters
}

// TakeRecords drains the mutation log.
func (d *DOM) TakeRecords() []mutation.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.records
	d.records = nil
	return out
}

// CreateNode implements host.Adapter.
func (d *DOM) CreateNode(t element.Type) (host.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch element.KindOf(t) {
	case element.KindText:
		d.counters.Creates++
		return &html.Node{Type: html.TextNode}, nil
	case element.KindHost:
		tag := string(t.(element.Tag))
		if d.failTags[tag] || !validTag(tag) {
			return nil, fmt.Errorf("memdom: create %q: %w", tag, host.ErrMismatchedHostCapability)
		}
		d.counters.Creates++
		return newElement(strings.ToLower(tag)), nil
	}
	return nil, fmt.Errorf("memdom: create %s: %w", element.TypeName(t), host.ErrMismatchedHostCapability)
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}

// ApplyProps implements host.Adapter.
func (d *DOM) ApplyProps(n host.Node, changes []host.Change) error {
	node, err := asNode(n)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counters.Applies++

	for _, c := range changes {
		if node.Type == html.TextNode {
			if c.Key != element.ValueKey {
				continue
			}
			old := node.Data
			node.Data = ""
			if c.Op == host.SetProp {
				node.Data = fmt.Sprint(c.Value)
			}
			d.log(node, mutation.Record{Op: mutation.OpText, Value: node.Data, OldValue: old})
			continue
		}

		switch c.Op {
		case host.SetProp:
			name := host.AttrName(c.Key)
			old, had := getAttr(node, name)
			val, keep := host.AttrValue(c.Value)
			if !keep {
				if had {
					delAttr(node, name)
					d.log(node, mutation.Record{Op: mutation.OpAttrDel, Name: name, OldValue: old})
				}
				continue
			}
			setAttr(node, name, val)
			d.log(node, mutation.Record{Op: mutation.OpAttr, Name: name, Value: val, OldValue: old})
		case host.RemoveProp:
			name := host.AttrName(c.Key)
			if old, had := getAttr(node, name); had {
				delAttr(node, name)
				d.log(node, mutation.Record{Op: mutation.OpAttrDel, Name: name, OldValue: old})
			}
		case host.AddListener:
			switch c.Value.(type) {
			case func(host.Event), func():
			default:
				return fmt.Errorf("memdom: listener %s: unsupported type %T", c.Key, c.Value)
			}
			if d.listeners[node] == nil {
				d.listeners[node] = make(map[string]any)
			}
			d.listeners[node][c.Name] = c.Value
			d.log(node, mutation.Record{Op: mutation.OpListen, Name: c.Name})
		case host.RemoveListener:
			delete(d.listeners[node], c.Name)
			if len(d.listeners[node]) == 0 {
				delete(d.listeners, node)
			}
			d.log(node, mutation.Record{Op: mutation.OpUnlisten, Name: c.Name})
		}
	}
	return nil
}

// AppendChild implements host.Adapter.
func (d *DOM) AppendChild(parent, child host.Node) error {
	p, c, err := pair(parent, child)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.Parent != nil {
		return fmt.Errorf("memdom: append: child already attached")
	}
	p.AppendChild(c)
	d.counters.Appends++
	d.logInsert(c)
	return nil
}

// InsertBefore implements host.Inserter.
func (d *DOM) InsertBefore(parent, child, ref host.Node) error {
	p, c, err := pair(parent, child)
	if err != nil {
		return err
	}
	r, err := asNode(ref)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.Parent != nil {
		return fmt.Errorf("memdom: insert: child already attached")
	}
	if r.Parent != p {
		return fmt.Errorf("memdom: insert: reference is not a child of parent")
	}
	p.InsertBefore(c, r)
	d.counters.Inserts++
	d.logInsert(c)
	return nil
}

// RemoveChild implements host.Adapter.
func (d *DOM) RemoveChild(parent, child host.Node) error {
	p, c, err := pair(parent, child)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.Parent != p {
		return fmt.Errorf("memdom: remove: node is not a child of parent")
	}
	if d.record && attached(c) {
		d.records = append(d.records, mutation.Record{Op: mutation.OpRemove, XPath: xpath(c), NodeType: nodeType(c), Tag: tagOf(c)})
	}
	p.RemoveChild(c)
	d.dropListeners(c)
	d.counters.Removes++
	return nil
}

// Dispose implements host.Disposer. Only detached nodes are released.
func (d *DOM) Dispose(n host.Node) {
	node, err := asNode(n)
	if err != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if node.Parent != nil {
		return
	}
	d.dropListeners(node)
	d.counters.Disposes++
}

func (d *DOM) dropListeners(n *html.Node) {
	delete(d.listeners, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.dropListeners(c)
	}
}

// Dispatch fires event on n and bubbles it up to its ancestors. It returns
// the number of listeners called.
func (d *DOM) Dispatch(n *html.Node, event string, detail any) int {
	d.mu.RLock()
	var calls []any
	for c := n; c != nil; c = c.Parent {
		if l, ok := d.listeners[c][event]; ok {
			calls = append(calls, l)
		}
	}
	d.mu.RUnlock()

	ev := host.Event{Type: event, Target: n, Detail: detail}
	for _, l := range calls {
		switch l := l.(type) {
		case func(host.Event):
			l(ev)
		case func():
			l()
		}
	}
	return len(calls)
}

// InnerHTML serialises the children of n.
func (d *DOM) InnerHTML(n *html.Node) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return nil, fmt.Errorf("memdom: render: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// OuterHTML serialises n itself.
func (d *DOM) OuterHTML(n *html.Node) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return nil, fmt.Errorf("memdom: render: %w", err)
	}
	return buf.Bytes(), nil
}

// FindAll returns the elements named tag under root, in document order.
func (d *DOM) FindAll(root *html.Node, tag string) []*html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// XPath returns the location of n.
func (d *DOM) XPath(n *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return xpath(n)
}

func (d *DOM) log(n *html.Node, rec mutation.Record) {
	if !d.record || !attached(n) {
		return
	}
	rec.XPath = xpath(n)
	rec.NodeType = nodeType(n)
	rec.Tag = tagOf(n)
	d.records = append(d.records, rec)
}

func (d *DOM) logInsert(n *html.Node) {
	if !d.record || !attached(n) {
		return
	}
	rec := mutation.Record{
		Op:       mutation.OpInsert,
		XPath:    xpath(n),
		NodeType: nodeType(n),
		Tag:      tagOf(n),
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		// The insert itself happened; only its markup is missing.
		d.logger.Warn("memdom: render inserted node", "xpath", rec.XPath, "error", err)
	} else {
		rec.HTML = buf.String()
	}
	d.records = append(d.records, rec)
}

func asNode(n host.Node) (*html.Node, error) {
	node, ok := n.(*html.Node)
	if !ok || node == nil {
		return nil, fmt.Errorf("memdom: foreign node %T", n)
	}
	return node, nil
}

func pair(parent, child host.Node) (*html.Node, *html.Node, error) {
	p, err := asNode(parent)
	if err != nil {
		return nil, nil, err
	}
	c, err := asNode(child)
	if err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

func nodeType(n *html.Node) int {
	if n.Type == html.TextNode {
		return 3
	}
	return 1
}

func tagOf(n *html.Node) string {
	if n.Type == html.ElementNode {
		return n.Data
	}
	return ""
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}

func delAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

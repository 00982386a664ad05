// Package rodhost renders into a live Chrome page driven through go-rod.
//
// Nodes live in a registry installed in the page and are addressed from Go by
// integer Handles; every adapter call is one page evaluation. Event
// listeners stay on the Go side: the page calls back through an exposed
// binding and the host runs the listener registered for that node and event.
package rodhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
	"github.com/hazyhaar/fibre/mutation"
)

// Handle identifies a node of the page registry.
type Handle int

// Body is the handle of document.body, the usual render container.
const Body Handle = 1

// Host is a host.Adapter over a Chrome page. It also implements
// host.Inserter and host.Disposer.
type Host struct {
	cfg     Config
	lnch    *launcher.Launcher
	browser *rod.Browser
	page    *rod.Page
	unbind  func() error

	mu        sync.Mutex
	text      map[Handle]bool
	listeners map[Handle]map[string]any
	records   []mutation.Record
	closed    bool
}

// Open starts (or connects to) Chrome, opens the render page and installs
// the node registry.
func Open(ctx context.Context, cfg Config) (*Host, error) {
	cfg.defaults()
	lnch, b, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	h := &Host{
		cfg:       cfg,
		lnch:      lnch,
		browser:   b,
		text:      make(map[Handle]bool),
		listeners: make(map[Handle]map[string]any),
	}
	if h.page, err = openPage(ctx, b, cfg); err != nil {
		h.Close()
		return nil, err
	}
	if h.unbind, err = h.page.Expose("__fibreEvent", h.onEvent); err != nil {
		h.Close()
		return nil, fmt.Errorf("rodhost: expose: %w", err)
	}
	if _, err := h.eval(installJS); err != nil {
		h.Close()
		return nil, fmt.Errorf("rodhost: install registry: %w", err)
	}
	return h, nil
}

// Close shuts the page and the browser down.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	if h.unbind != nil {
		h.unbind()
	}
	if h.page != nil {
		h.page.Close()
	}
	if h.browser != nil {
		h.browser.Close()
	}
	if h.lnch != nil {
		h.lnch.Cleanup()
	}
	return nil
}

func (h *Host) eval(js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	p := h.page.Timeout(h.cfg.Timeout)
	defer p.CancelTimeout()
	return p.Eval(js, args...)
}

func asHandle(n host.Node) (Handle, error) {
	hd, ok := n.(Handle)
	if !ok || hd <= 0 {
		return 0, fmt.Errorf("rodhost: foreign node handle %T", n)
	}
	return hd, nil
}

// CreateNode implements host.Adapter.
func (h *Host) CreateNode(t element.Type) (host.Node, error) {
	var (
		text bool
		tag  string
	)
	switch element.KindOf(t) {
	case element.KindText:
		text = true
	case element.KindHost:
		tag = string(t.(element.Tag))
	default:
		return nil, fmt.Errorf("rodhost: create %s: %w", element.TypeName(t), host.ErrMismatchedHostCapability)
	}
	res, err := h.eval(createJS, text, tag)
	if err != nil {
		return nil, fmt.Errorf("rodhost: create %q: %w: %v", tag, host.ErrMismatchedHostCapability, err)
	}
	hd := Handle(res.Value.Int())
	if text {
		h.mu.Lock()
		h.text[hd] = true
		h.mu.Unlock()
	}
	return hd, nil
}

type jsChange struct {
	Op    string `json:"op"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// ApplyProps implements host.Adapter.
func (h *Host) ApplyProps(n host.Node, changes []host.Change) error {
	hd, err := asHandle(n)
	if err != nil {
		return err
	}

	h.mu.Lock()
	isText := h.text[hd]
	js := make([]jsChange, 0, len(changes))
	for _, c := range changes {
		if isText {
			if c.Key != element.ValueKey {
				continue
			}
			v := ""
			if c.Op == host.SetProp && c.Value != nil {
				v = fmt.Sprint(c.Value)
			}
			js = append(js, jsChange{Op: "text", Value: v})
			continue
		}
		switch c.Op {
		case host.SetProp:
			name := host.AttrName(c.Key)
			if val, keep := host.AttrValue(c.Value); keep {
				js = append(js, jsChange{Op: "set", Name: name, Value: val})
			} else {
				js = append(js, jsChange{Op: "remove", Name: name})
			}
		case host.RemoveProp:
			js = append(js, jsChange{Op: "remove", Name: host.AttrName(c.Key)})
		case host.AddListener:
			switch c.Value.(type) {
			case func(host.Event), func():
			default:
				h.mu.Unlock()
				return fmt.Errorf("rodhost: listener %s: unsupported type %T", c.Key, c.Value)
			}
			if h.listeners[hd] == nil {
				h.listeners[hd] = make(map[string]any)
			}
			h.listeners[hd][c.Name] = c.Value
			js = append(js, jsChange{Op: "listen", Name: c.Name})
		case host.RemoveListener:
			delete(h.listeners[hd], c.Name)
			js = append(js, jsChange{Op: "unlisten", Name: c.Name})
		}
	}
	h.mu.Unlock()
	if len(js) == 0 {
		return nil
	}

	res, err := h.eval(applyJS, int(hd), js)
	if err != nil {
		return fmt.Errorf("rodhost: apply props: %w", err)
	}
	path := res.Value.Get("xpath").Str()
	if path == "" {
		return nil
	}
	base := describe(res.Value)
	var recs []mutation.Record
	for _, r := range res.Value.Get("records").Arr() {
		rec := base
		rec.Op = mutation.Op(r.Get("op").Str())
		rec.Name = r.Get("name").Str()
		rec.Value = r.Get("value").Str()
		rec.OldValue = r.Get("old").Str()
		recs = append(recs, rec)
	}
	h.log(recs...)
	return nil
}

// AppendChild implements host.Adapter.
func (h *Host) AppendChild(parent, child host.Node) error {
	return h.attach(parent, child, 0)
}

// InsertBefore implements host.Inserter.
func (h *Host) InsertBefore(parent, child, ref host.Node) error {
	r, err := asHandle(ref)
	if err != nil {
		return err
	}
	return h.attach(parent, child, r)
}

func (h *Host) attach(parent, child host.Node, ref Handle) error {
	p, err := asHandle(parent)
	if err != nil {
		return err
	}
	c, err := asHandle(child)
	if err != nil {
		return err
	}
	res, err := h.eval(appendJS, int(p), int(c), int(ref))
	if err != nil {
		return fmt.Errorf("rodhost: insert: %w", err)
	}
	if res.Value.Get("xpath").Str() != "" {
		rec := describe(res.Value)
		rec.Op = mutation.OpInsert
		rec.HTML = res.Value.Get("html").Str()
		h.log(rec)
	}
	return nil
}

// RemoveChild implements host.Adapter.
func (h *Host) RemoveChild(parent, child host.Node) error {
	p, err := asHandle(parent)
	if err != nil {
		return err
	}
	c, err := asHandle(child)
	if err != nil {
		return err
	}
	res, err := h.eval(removeJS, int(p), int(c))
	if err != nil {
		return fmt.Errorf("rodhost: remove: %w", err)
	}
	if res.Value.Get("xpath").Str() != "" {
		rec := describe(res.Value)
		rec.Op = mutation.OpRemove
		h.log(rec)
	}
	return nil
}

// Dispose implements host.Disposer. Detached nodes and their registered
// descendants are dropped from the page registry.
func (h *Host) Dispose(n host.Node) {
	hd, err := asHandle(n)
	if err != nil || hd == Body {
		return
	}
	res, err := h.eval(disposeJS, int(hd))
	if err != nil {
		h.cfg.Logger.Warn("rodhost: dispose failed", "handle", hd, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range res.Value.Arr() {
		gone := Handle(id.Int())
		delete(h.text, gone)
		delete(h.listeners, gone)
	}
}

// TakeRecords drains the mutation log.
func (h *Host) TakeRecords() []mutation.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.records
	h.records = nil
	return out
}

// InnerHTML serialises the children of n.
func (h *Host) InnerHTML(n host.Node) ([]byte, error) {
	hd, err := asHandle(n)
	if err != nil {
		return nil, err
	}
	res, err := h.eval(innerHTMLJS, int(hd))
	if err != nil {
		return nil, fmt.Errorf("rodhost: inner html: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Dispatch fires a bubbling DOM event at n inside the page.
func (h *Host) Dispatch(n host.Node, event string) error {
	hd, err := asHandle(n)
	if err != nil {
		return err
	}
	if _, err := h.eval(dispatchJS, int(hd), event); err != nil {
		return fmt.Errorf("rodhost: dispatch %s: %w", event, err)
	}
	return nil
}

// onEvent is the exposed binding the page's DOM listeners call.
func (h *Host) onEvent(j gson.JSON) (any, error) {
	id := Handle(j.Get("id").Int())
	ev := host.Event{Type: j.Get("type").Str(), Target: Handle(j.Get("target").Int())}

	h.mu.Lock()
	fn := h.listeners[id][ev.Type]
	h.mu.Unlock()

	switch fn := fn.(type) {
	case func(host.Event):
		fn(ev)
	case func():
		fn()
	}
	return nil, nil
}

func (h *Host) log(recs ...mutation.Record) {
	h.mu.Lock()
	h.records = append(h.records, recs...)
	h.mu.Unlock()
}

func describe(v gson.JSON) mutation.Record {
	return mutation.Record{
		XPath:    v.Get("xpath").Str(),
		Tag:      v.Get("tag").Str(),
		NodeType: v.Get("type").Int(),
	}
}

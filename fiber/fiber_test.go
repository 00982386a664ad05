package fiber

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/host"
	"github.com/hazyhaar/fibre/host/memdom"
	"github.com/hazyhaar/fibre/idle"
)

var (
	div  = element.Tag("div")
	ul   = element.Tag("ul")
	li   = element.Tag("li")
	p    = element.Tag("p")
	span = element.Tag("span")
	em   = element.Tag("em")
	h1   = element.Tag("h1")
)

func setup(t *testing.T, opts ...Option) (*memdom.DOM, *Renderer) {
	t.Helper()
	d := memdom.New()
	return d, New(d, opts...)
}

func mount(t *testing.T, r *Renderer, d *memdom.DOM, el *element.Element) {
	t.Helper()
	if err := r.Render(el, d.Body()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func innerHTML(t *testing.T, d *memdom.DOM) string {
	t.Helper()
	b, err := d.InnerHTML(d.Body())
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// fromScratch renders el into a fresh document without any reconciliation.
func fromScratch(t *testing.T, el *element.Element) string {
	t.Helper()
	d := memdom.New()
	build(t, d, d.Body(), el)
	return innerHTML(t, d)
}

func build(t *testing.T, d *memdom.DOM, parent *html.Node, el *element.Element) {
	t.Helper()
	if element.KindOf(el.Type) == element.KindComponent {
		c := el.Type.(*element.Component)
		if out := c.Render(el.Props, el.Children); out != nil {
			build(t, d, parent, out)
		}
		return
	}
	n, err := d.CreateNode(el.Type)
	if err != nil {
		t.Fatal(err)
	}
	if ch := host.Diff(nil, el.Props); len(ch) > 0 {
		if err := d.ApplyProps(n, ch); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.AppendChild(parent, n); err != nil {
		t.Fatal(err)
	}
	for _, c := range el.Children {
		build(t, d, n.(*html.Node), c)
	}
}

func list(tag element.Type, items ...string) *element.Element {
	var children []*element.Element
	for _, it := range items {
		children = append(children, element.New(li, nil, it))
	}
	return element.New(tag, nil, children)
}

func effectsOf(infos []FiberInfo, name string) []Effect {
	var out []Effect
	for _, fi := range infos {
		if fi.Name() == name {
			out = append(out, fi.Effect)
		}
	}
	return out
}

func TestRender_Mount(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, element.New(div, element.Props{"id": "app"},
		element.New(h1, nil, "hello"),
		element.New(p, element.Props{"className": "lead"}, "world"),
	))

	want := `<div id="app"><h1>hello</h1><p class="lead">world</p></div>`
	if got := innerHTML(t, d); got != want {
		t.Errorf("HTML: got %q, want %q", got, want)
	}
	if r.Pending() {
		t.Error("Pending after Flush")
	}
	if got := r.Stats().Generation; got != 1 {
		t.Errorf("Generation: got %d, want 1", got)
	}

	cur := r.Current(d.Body())
	names := make([]string, len(cur))
	for i, fi := range cur {
		names[i] = fi.Name()
	}
	wantNames := "[#root div h1 #text p #text]"
	if got := fmt.Sprint(names); got != wantNames {
		t.Errorf("tree: got %s, want %s", got, wantNames)
	}
	for _, fi := range cur[1:] {
		if fi.Effect != Placement {
			t.Errorf("%s: got %s, want PLACEMENT", fi.Name(), fi.Effect)
		}
	}
}

func TestReconcile_SwapSameTypeUpdatesInPlace(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, list(ul, "A", "B"))
	before := d.Counters()

	mount(t, r, d, list(ul, "B", "A"))

	if got := innerHTML(t, d); got != "<ul><li>B</li><li>A</li></ul>" {
		t.Errorf("HTML: got %q", got)
	}
	got := effectsOf(r.Current(d.Body()), "li")
	if len(got) != 2 || got[0] != Update || got[1] != Update {
		t.Errorf("li effects: got %v, want [UPDATE UPDATE]", got)
	}
	after := d.Counters()
	if after.Creates != before.Creates || after.Removes != before.Removes {
		t.Errorf("host churn: creates %d->%d, removes %d->%d", before.Creates, after.Creates, before.Removes, after.Removes)
	}
	// two text nodes change value
	if got := after.Applies - before.Applies; got != 2 {
		t.Errorf("ApplyProps calls: got %d, want 2", got)
	}
}

func TestReconcile_TruncateDeletesTail(t *testing.T) {
	var last CommitInfo
	d, r := setup(t, WithOnCommit(func(ci CommitInfo) { last = ci }))
	mount(t, r, d, element.New(div, nil, element.New(p, nil, "a"), element.New(span, nil, "b"), element.New(em, nil, "c")))
	before := d.Counters()

	mount(t, r, d, element.New(div, nil, element.New(p, nil, "a")))

	if got := innerHTML(t, d); got != "<div><p>a</p></div>" {
		t.Errorf("HTML: got %q", got)
	}
	if len(last.Deletions) != 2 || last.Deletions[0].Name() != "span" || last.Deletions[1].Name() != "em" {
		t.Fatalf("deletions: got %+v, want span, em", last.Deletions)
	}
	for _, fi := range last.Deletions {
		if fi.Effect != Deletion {
			t.Errorf("%s: got %s, want DELETION", fi.Name(), fi.Effect)
		}
	}
	// subtrees go with their root: one removal per deleted fiber
	if got := d.Counters().Removes - before.Removes; got != 2 {
		t.Errorf("RemoveChild calls: got %d, want 2", got)
	}
	if last.Effects.Placements != 0 || last.Effects.Deletions != 2 {
		t.Errorf("effects: got %+v", last.Effects)
	}
}

func TestReconcile_TypeChangeKeepsPosition(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, element.New(div, nil, element.New(p, nil, "1"), element.New(span, nil, "2"), element.New(em, nil, "3")))

	next := element.New(div, nil, element.New(p, nil, "1"), element.New(h1, nil, "2"), element.New(em, nil, "3"))
	mount(t, r, d, next)

	if got, want := innerHTML(t, d), fromScratch(t, next); got != want {
		t.Errorf("HTML: got %q, want %q", got, want)
	}
}

func TestRerender_Idempotent(t *testing.T) {
	app := func() *element.Element {
		return element.New(div, element.Props{"className": "app", "style": map[string]string{"color": "red"}},
			element.New(h1, nil, "title"),
			list(ul, "x", "y", "z"),
		)
	}
	var last CommitInfo
	d, r := setup(t, WithOnCommit(func(ci CommitInfo) { last = ci }))
	mount(t, r, d, app())
	before := d.Counters()
	html1 := innerHTML(t, d)

	mount(t, r, d, app())

	if got := d.Counters(); got != before {
		t.Errorf("host calls on unchanged render: before %+v, after %+v", before, got)
	}
	if last.Effects.Placements != 0 || last.Effects.Deletions != 0 || last.Effects.PropSets != 0 {
		t.Errorf("effects: got %+v, want only updates", last.Effects)
	}
	if got := innerHTML(t, d); got != html1 {
		t.Errorf("HTML changed: got %q, want %q", got, html1)
	}
}

func TestRerender_IdempotentWithListener(t *testing.T) {
	clicks := 0
	onClick := func() { clicks++ }
	app := func() *element.Element {
		return element.New(div, element.Props{"id": "x", "onClick": onClick}, "go")
	}
	var last CommitInfo
	d, r := setup(t, WithOnCommit(func(ci CommitInfo) { last = ci }))
	mount(t, r, d, app())
	before := d.Counters()

	mount(t, r, d, app())

	if got := d.Counters(); got.Applies != before.Applies {
		t.Errorf("ApplyProps calls: got %d, want %d", got.Applies, before.Applies)
	}
	if last.Effects.PropSets != 0 {
		t.Errorf("PropSets: got %d, want 0", last.Effects.PropSets)
	}
	if n := d.Dispatch(d.FindAll(d.Body(), "div")[0], "click", nil); n != 1 {
		t.Fatalf("Dispatch: got %d listeners, want 1", n)
	}
	if clicks != 1 {
		t.Errorf("clicks: got %d, want 1", clicks)
	}
}

func TestUpdate_OnlyChangedProps(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, element.New(p, element.Props{"title": "a", "id": "x"}))
	before := d.Counters()
	d.TakeRecords()

	mount(t, r, d, element.New(p, element.Props{"title": "b", "id": "x"}))

	if got := d.Counters().Applies - before.Applies; got != 1 {
		t.Errorf("ApplyProps calls: got %d, want 1", got)
	}
	recs := d.TakeRecords()
	if len(recs) != 1 || recs[0].Name != "title" || recs[0].Value != "b" {
		t.Errorf("records: got %+v, want one title change", recs)
	}
}

func TestFunctionComponent(t *testing.T) {
	greeting := element.Func("Greeting", func(props element.Props, _ []*element.Element) *element.Element {
		return element.New(h1, nil, "hello "+props["name"].(string))
	})
	el := element.New(greeting, element.Props{"name": "foo"})

	d, r := setup(t)
	mount(t, r, d, el)

	if got := innerHTML(t, d); got != "<h1>hello foo</h1>" {
		t.Errorf("HTML: got %q, want %q", got, "<h1>hello foo</h1>")
	}
	cur := r.Current(d.Body())
	if cur[1].Kind != KindComponent || cur[1].Node != nil {
		t.Errorf("component fiber: got %+v, want a node-less component", cur[1])
	}

	mount(t, r, d, element.New(greeting, element.Props{"name": "bar"}))
	if got := innerHTML(t, d); got != "<h1>hello bar</h1>" {
		t.Errorf("HTML after update: got %q", got)
	}
}

func TestFunctionComponent_NilRendersNothing(t *testing.T) {
	var show bool
	maybe := element.Func("Maybe", func(element.Props, []*element.Element) *element.Element {
		if !show {
			return nil
		}
		return element.New(p, nil, "shown")
	})
	app := func() *element.Element {
		return element.New(div, nil, element.New(maybe, nil), element.New(em, nil, "tail"))
	}

	d, r := setup(t)
	mount(t, r, d, app())
	if got := innerHTML(t, d); got != "<div><em>tail</em></div>" {
		t.Errorf("hidden: got %q", got)
	}
	show = true
	mount(t, r, d, app())
	if got := innerHTML(t, d); got != "<div><p>shown</p><em>tail</em></div>" {
		t.Errorf("shown: got %q", got)
	}
	show = false
	mount(t, r, d, app())
	if got := innerHTML(t, d); got != "<div><em>tail</em></div>" {
		t.Errorf("hidden again: got %q", got)
	}
}

func TestComponentReplacedByHost(t *testing.T) {
	wrap := element.Func("Wrap", func(_ element.Props, children []*element.Element) *element.Element {
		return element.New(span, nil, children)
	})
	d, r := setup(t)
	mount(t, r, d, element.New(div, nil, element.New(wrap, nil, "in"), element.New(p, nil, "after")))

	next := element.New(div, nil, element.New(em, nil, "out"), element.New(p, nil, "after"))
	mount(t, r, d, next)
	if got, want := innerHTML(t, d), fromScratch(t, next); got != want {
		t.Errorf("HTML: got %q, want %q", got, want)
	}
}

// sequence exercises insertions, removals, type changes and component
// boundaries across consecutive renders.
func sequence() []*element.Element {
	card := element.Func("Card", func(props element.Props, children []*element.Element) *element.Element {
		return element.New(div, element.Props{"className": "card", "title": props["title"]},
			element.New(h1, nil, props["title"].(string)),
			children,
		)
	})
	return []*element.Element{
		element.New(div, nil, list(ul, "a", "b")),
		element.New(div, nil, list(ul, "a", "b", "c"), element.New(card, element.Props{"title": "one"}, "body")),
		element.New(div, nil, element.New(p, nil, "lead"), element.New(card, element.Props{"title": "two"}), list(ul, "c")),
		element.New(div, element.Props{"id": "root"}, element.New(card, element.Props{"title": "three"}, element.New(em, nil, "x"), "y")),
		element.New(div, nil, list(ul), element.New(span, element.Props{"hidden": true})),
		element.New(div, nil),
	}
}

func TestIncrementalEqualsFromScratch(t *testing.T) {
	d, r := setup(t)
	for i, el := range sequence() {
		mount(t, r, d, el)
		if got, want := innerHTML(t, d), fromScratch(t, el); got != want {
			t.Errorf("render %d: got %q, want %q", i, got, want)
		}
	}
}

func TestInterruptionEqualsUninterrupted(t *testing.T) {
	seq := sequence()
	for steps := 1; steps <= 6; steps++ {
		t.Run(fmt.Sprintf("steps=%d", steps), func(t *testing.T) {
			d, r := setup(t)
			for i, el := range seq {
				if err := r.Render(el, d.Body()); err != nil {
					t.Fatal(err)
				}
				ticks := 0
				for {
					done, err := r.Tick(idle.Steps(steps))
					if err != nil {
						t.Fatalf("render %d: %v", i, err)
					}
					ticks++
					if done {
						break
					}
					if ticks > 1000 {
						t.Fatal("work loop does not terminate")
					}
				}
				if got, want := innerHTML(t, d), fromScratch(t, el); got != want {
					t.Errorf("render %d: got %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestTick_YieldsBetweenUnits(t *testing.T) {
	var last CommitInfo
	d, r := setup(t, WithOnCommit(func(ci CommitInfo) { last = ci }))
	if err := r.Render(list(ul, "a", "b", "c"), d.Body()); err != nil {
		t.Fatal(err)
	}
	done, err := r.Tick(idle.Steps(2))
	if err != nil || done {
		t.Fatalf("first tick: done=%v err=%v, want a yield", done, err)
	}
	if got := innerHTML(t, d); got != "" {
		t.Errorf("host touched before commit: %q", got)
	}
	if !r.Pending() {
		t.Error("Pending: got false after a yield")
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	// root, ul, 3 li, 3 text
	if last.Units != 8 || last.Ticks != 2 {
		t.Errorf("commit: got %d units in %d ticks, want 8 in 2", last.Units, last.Ticks)
	}
}

func TestTick_NothingPending(t *testing.T) {
	_, r := setup(t)
	done, err := r.Tick(idle.Steps(1))
	if !done || err != nil {
		t.Errorf("Tick: got done=%v err=%v, want true, nil", done, err)
	}
}

func TestRender_RejectsInvalid(t *testing.T) {
	d, r := setup(t)
	bad := &element.Element{Type: element.Text, Children: []*element.Element{element.New(p, nil)}}
	if err := r.Render(bad, d.Body()); !errors.Is(err, element.ErrInvalidElementShape) {
		t.Errorf("Render(text with children): got %v, want ErrInvalidElementShape", err)
	}
	if err := r.Render(nil, d.Body()); !errors.Is(err, element.ErrInvalidElementShape) {
		t.Errorf("Render(nil): got %v, want ErrInvalidElementShape", err)
	}
	if err := r.Render(element.New(p, nil), nil); !errors.Is(err, ErrNoContainer) {
		t.Errorf("Render(no container): got %v, want ErrNoContainer", err)
	}
	if r.Pending() || d.Counters().Creates != 0 {
		t.Error("rejected render built fibers")
	}
}

func TestCreateFailureKeepsCurrentTree(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, element.New(div, nil, element.New(p, nil, "ok")))
	good := innerHTML(t, d)
	gen := r.Stats().Generation
	d.Fail("canvas")

	err := r.Render(element.New(div, nil, element.New(p, nil, "ok"), element.New(span, nil), element.New(element.Tag("canvas"), nil)), d.Body())
	if err != nil {
		t.Fatal(err)
	}
	err = r.Flush()
	if !errors.Is(err, host.ErrMismatchedHostCapability) {
		t.Fatalf("Flush: got %v, want ErrMismatchedHostCapability", err)
	}
	if got := innerHTML(t, d); got != good {
		t.Errorf("HTML: got %q, want %q", got, good)
	}
	if r.Pending() || r.Stats().Generation != gen || r.Stats().Failed != 1 {
		t.Errorf("state after failure: pending=%v stats=%+v", r.Pending(), r.Stats())
	}
	// the span was created for the abandoned pass
	if got := d.Counters().Disposes; got != 1 {
		t.Errorf("Disposes: got %d, want 1", got)
	}

	// the renderer is still usable against the old tree
	next := element.New(div, nil, element.New(p, nil, "ok"), element.New(em, nil, "fine"))
	mount(t, r, d, next)
	if got, want := innerHTML(t, d), fromScratch(t, next); got != want {
		t.Errorf("HTML: got %q, want %q", got, want)
	}
}

func TestComponentPanicIsRecovered(t *testing.T) {
	boom := element.Func("Boom", func(element.Props, []*element.Element) *element.Element { panic("nope") })
	d, r := setup(t)
	mount(t, r, d, element.New(p, nil, "before"))

	if err := r.Render(element.New(div, nil, element.New(boom, nil)), d.Body()); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); !errors.Is(err, ErrComponentPanic) {
		t.Fatalf("Flush: got %v, want ErrComponentPanic", err)
	}
	if got := innerHTML(t, d); got != "<p>before</p>" {
		t.Errorf("HTML: got %q", got)
	}
}

func TestComponentInvalidOutput(t *testing.T) {
	bad := element.Func("Bad", func(element.Props, []*element.Element) *element.Element {
		return &element.Element{Type: element.Tag("")}
	})
	d, r := setup(t)
	if err := r.Render(element.New(bad, nil), d.Body()); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); !errors.Is(err, element.ErrInvalidElementShape) {
		t.Errorf("Flush: got %v, want ErrInvalidElementShape", err)
	}
}

func TestNewRenderAbandonsPending(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, element.New(div, nil))

	if err := r.Render(element.New(div, nil, element.New(p, nil), element.New(span, nil)), d.Body()); err != nil {
		t.Fatal(err)
	}
	// root, div, p: the p node is created
	if done, _ := r.Tick(idle.Steps(3)); done {
		t.Fatal("render finished early")
	}

	next := element.New(div, nil, element.New(em, nil, "final"))
	if err := r.Render(next, d.Body()); err != nil {
		t.Fatal(err)
	}
	if got := r.Stats().Abandoned; got != 1 {
		t.Errorf("Abandoned: got %d, want 1", got)
	}
	if got := d.Counters().Disposes; got != 1 {
		t.Errorf("Disposes: got %d, want 1", got)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if got, want := innerHTML(t, d), fromScratch(t, next); got != want {
		t.Errorf("HTML: got %q, want %q", got, want)
	}
}

// flaky fails ApplyProps for nodes that get a "bad" prop.
type flaky struct {
	*memdom.DOM
}

func (f flaky) ApplyProps(n host.Node, changes []host.Change) error {
	for _, c := range changes {
		if c.Key == "bad" {
			return errors.New("rejected")
		}
	}
	return f.DOM.ApplyProps(n, changes)
}

func TestCommitErrorIsBestEffort(t *testing.T) {
	d := memdom.New()
	var last CommitInfo
	r := New(flaky{d}, WithOnCommit(func(ci CommitInfo) { last = ci }))

	if err := r.Render(element.New(div, nil, element.New(p, element.Props{"bad": 1}), element.New(em, nil, "kept")), d.Body()); err != nil {
		t.Fatal(err)
	}
	err := r.Flush()
	var ce *CommitError
	if !errors.As(err, &ce) {
		t.Fatalf("Flush: got %v, want *CommitError", err)
	}
	if len(ce.Errs) != 1 || ce.Generation != 1 {
		t.Errorf("CommitError: got %+v", ce)
	}
	if last.Err == nil {
		t.Error("commit hook did not see the error")
	}
	if got := innerHTML(t, d); got != "<div><p></p><em>kept</em></div>" {
		t.Errorf("HTML: got %q", got)
	}
	if r.Current(d.Body()) == nil || r.Stats().Commits != 1 {
		t.Error("tree not promoted after a failed commit")
	}
}

func TestUnmount(t *testing.T) {
	d, r := setup(t)
	mount(t, r, d, list(ul, "a", "b"))

	if err := r.Unmount(d.Body()); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if got := innerHTML(t, d); got != "" {
		t.Errorf("HTML: got %q, want empty", got)
	}
	if r.Current(d.Body()) != nil || len(r.Containers()) != 0 {
		t.Error("container still has a committed tree")
	}
}

func TestSeparateContainers(t *testing.T) {
	d, r := setup(t)
	a, _ := d.CreateNode(div)
	b, _ := d.CreateNode(div)
	_ = d.AppendChild(d.Body(), a)
	_ = d.AppendChild(d.Body(), b)

	for _, step := range []struct {
		c  host.Node
		el *element.Element
	}{
		{a, element.New(p, nil, "A")},
		{b, element.New(span, nil, "B")},
		{a, element.New(p, nil, "A2")},
	} {
		if err := r.Render(step.el, step.c); err != nil {
			t.Fatal(err)
		}
		if err := r.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if got := innerHTML(t, d); got != "<div><p>A2</p></div><div><span>B</span></div>" {
		t.Errorf("HTML: got %q", got)
	}
}

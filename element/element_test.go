package element

import (
	"errors"
	"testing"
)

var echo = Func("Echo", func(p Props, _ []*Element) *Element {
	return TextOf(p["msg"].(string))
})

func TestNew_WrapsStringChildren(t *testing.T) {
	el := New(Tag("div"), Props{"id": "x"}, "hello", New(Tag("span"), nil), nil, []*Element{TextOf("a"), TextOf("b")})

	if len(el.Children) != 4 {
		t.Fatalf("children: got %d, want 4", len(el.Children))
	}
	if el.Children[0].Type != Text {
		t.Errorf("children[0].Type: got %s, want text", TypeName(el.Children[0].Type))
	}
	if got := el.Children[0].Props[ValueKey]; got != "hello" {
		t.Errorf("children[0] value: got %v, want hello", got)
	}
	if el.Children[1].Type != Tag("span") {
		t.Errorf("children[1].Type: got %s, want span", TypeName(el.Children[1].Type))
	}
	if err := Validate(el); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestNew_CopiesProps(t *testing.T) {
	props := Props{"id": "a"}
	el := New(Tag("div"), props)
	props["id"] = "b"
	if el.Props["id"] != "a" {
		t.Errorf("props aliased: got %v, want a", el.Props["id"])
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		typ  Type
		want Kind
	}{
		{Tag("div"), KindHost},
		{Tag(""), KindInvalid},
		{Text, KindText},
		{echo, KindComponent},
		{&Component{Name: "broken"}, KindInvalid},
		{(*Component)(nil), KindInvalid},
		{nil, KindInvalid},
	}
	for _, c := range cases {
		if got := KindOf(c.typ); got != c.want {
			t.Errorf("KindOf(%s): got %s, want %s", TypeName(c.typ), got, c.want)
		}
	}
}

func TestTypeIdentity(t *testing.T) {
	var a, b Type = Tag("p"), Tag("p")
	if a != b {
		t.Error("equal tags should compare equal")
	}
	other := Func("Echo", echo.Render)
	if Type(echo) == Type(other) {
		t.Error("distinct components with the same name should not compare equal")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]*Element{
		"nil root":           nil,
		"nil type":           {Props: Props{}},
		"nil child":          New(Tag("div"), nil, 42),
		"text with children": {Type: Text, Props: Props{ValueKey: "x"}, Children: []*Element{TextOf("y")}},
		"text without value": {Type: Text, Props: Props{}},
		"reserved children":  New(Tag("div"), Props{ChildrenKey: []*Element{}}),
		"component no func":  New(&Component{Name: "x"}, nil),
		"deep nil":           New(Tag("ul"), nil, New(Tag("li"), nil, New(Tag("b"), nil, 3.5))),
	}
	for name, el := range cases {
		err := Validate(el)
		if !errors.Is(err, ErrInvalidElementShape) {
			t.Errorf("%s: got %v, want ErrInvalidElementShape", name, err)
		}
	}
}

package host

import (
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
	"unsafe"

	"github.com/hazyhaar/fibre/element"
)

// ChangeOp is the kind of a single prop change.
type ChangeOp string

const (
	SetProp        ChangeOp = "set"
	RemoveProp     ChangeOp = "remove"
	AddListener    ChangeOp = "listen"
	RemoveListener ChangeOp = "unlisten"
)

// Change is one entry of a props diff. For listener ops Name is the event
// name ("click") and Key the prop key ("onClick").
type Change struct {
	Op    ChangeOp
	Key   string
	Name  string
	Value any
	Old   any
}

// IsListener reports whether a prop key names an event listener: "on"
// followed by an upper-case letter.
func IsListener(key string) bool {
	if len(key) < 3 || !strings.HasPrefix(key, "on") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(key[2:])
	return unicode.IsUpper(r)
}

// EventName maps a listener key to its event name: "onClick" -> "click".
func EventName(key string) string {
	return strings.ToLower(key[2:])
}

// Diff computes the changes needed to go from prev to next. Unchanged entries
// produce nothing, so Diff(p, p) is empty. Function values compare by
// identity: passing the same func again keeps the binding, a closure built
// anew on each render is re-bound.
//
// Removals come first, then listener re-registrations and sets, each group in
// key order.
func Diff(prev, next element.Props) []Change {
	var removed, changed []string
	for k := range prev {
		if k == element.ChildrenKey {
			continue
		}
		if _, ok := next[k]; !ok {
			removed = append(removed, k)
		}
	}
	for k, v := range next {
		if k == element.ChildrenKey {
			continue
		}
		old, ok := prev[k]
		if ok && equal(old, v) {
			continue
		}
		changed = append(changed, k)
	}
	sort.Strings(removed)
	sort.Strings(changed)

	var out []Change
	for _, k := range removed {
		if IsListener(k) {
			out = append(out, Change{Op: RemoveListener, Key: k, Name: EventName(k), Old: prev[k]})
		} else {
			out = append(out, Change{Op: RemoveProp, Key: k, Name: k, Old: prev[k]})
		}
	}
	for _, k := range changed {
		old, had := prev[k]
		if IsListener(k) {
			if had {
				out = append(out, Change{Op: RemoveListener, Key: k, Name: EventName(k), Old: old})
			}
			out = append(out, Change{Op: AddListener, Key: k, Name: EventName(k), Value: next[k]})
		} else {
			out = append(out, Change{Op: SetProp, Key: k, Name: k, Value: next[k], Old: old})
		}
	}
	return out
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Kind() == reflect.Func || tb.Kind() == reflect.Func {
		return ta == tb && funcData(a) == funcData(b)
	}
	return reflect.DeepEqual(a, b)
}

// eface mirrors the runtime layout of an empty interface.
type eface struct {
	typ  unsafe.Pointer
	data unsafe.Pointer
}

// funcData returns the closure pointer of the func held in v. reflect only
// exposes the code pointer, which is shared by every closure of a literal.
func funcData(v any) unsafe.Pointer {
	return (*eface)(unsafe.Pointer(&v)).data
}

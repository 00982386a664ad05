package host

import (
	"fmt"
	"sort"
	"strings"
)

// AttrName maps a prop key to the attribute name adapters set.
func AttrName(key string) string {
	switch key {
	case "className":
		return "class"
	case "htmlFor":
		return "for"
	}
	return strings.ToLower(key)
}

// AttrValue formats a prop value as an attribute value. keep is false when
// the attribute must be absent (nil, false). A map[string]string becomes an
// inline style declaration with sorted keys.
func AttrValue(v any) (val string, keep bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case bool:
		return "", v
	case string:
		return v, true
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v[k]
		}
		return strings.Join(parts, "; "), true
	}
	return fmt.Sprint(v), true
}

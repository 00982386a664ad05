package memdom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// xpath locates n from the document root. Sibling indexes are only written
// when several siblings share the step name, matching what domwatch emits.
func xpath(n *html.Node) string {
	var steps []string
	for c := n; c != nil && c.Type != html.DocumentNode; c = c.Parent {
		steps = append(steps, step(c))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return "/" + strings.Join(steps, "/")
}

func step(n *html.Node) string {
	name := stepName(n)
	if n.Parent == nil {
		return name
	}
	idx, total := 0, 0
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if stepName(s) != name {
			continue
		}
		total++
		if s == n {
			idx = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", name, idx)
	}
	return name
}

func stepName(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return "text()"
	case html.CommentNode:
		return "comment()"
	}
	return strings.ToLower(n.Data)
}

// attached reports whether n hangs off a document.
func attached(n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

package extract

import (
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/antchfx/xmlquery"
)

// child returns the first element child of n whose local name is name. Prefixes and
// namespace URIs are ignored.
func child(n *xmlquery.Node, name string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

// children returns every element child of n with local name name, in document order.
func children(n *xmlquery.Node, name string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			out = append(out, c)
		}
	}
	return out
}

// directText concatenates the text and CDATA children of n, ignoring nested elements.
func directText(n *xmlquery.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode || c.Type == xmlquery.CharDataNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// Traverse descends from node through path by local element name. When the final
// element wraps a <value> child, that child's text is used instead. Text is trimmed
// and upper-cased. ok is false when any step is missing.
func Traverse(node *xmlquery.Node, path ...string) (text string, ok bool) {
	cur := node
	for _, name := range path {
		cur = child(cur, name)
		if cur == nil {
			return "", false
		}
	}
	if cur == nil {
		return "", false
	}
	if v := child(cur, "value"); v != nil {
		cur = v
	}
	return strings.ToUpper(strings.TrimSpace(directText(cur))), true
}

// text is Traverse with the empty string for missing nodes.
func text(node *xmlquery.Node, path ...string) string {
	s, _ := Traverse(node, path...)
	return s
}

// number reads a decimal, yielding 0 for missing, malformed or non-finite values.
func number(node *xmlquery.Node, path ...string) float64 {
	s, ok := Traverse(node, path...)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

// finite maps NaN and infinities to 0; checkpoints cannot encode them.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// date reads a strict YYYY-MM-DD date.
func date(s string) (civil.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return civil.Date{}, err
	}
	return civil.DateOf(t), nil
}

package browser

import (
	"fmt"
	"strings"
)

// Strategy is how a Selector locates an element
type Strategy string

const (
	ByCSS         Strategy = "css"
	ByXPath       Strategy = "xpath"
	ByText        Strategy = "text"
	ByLabel       Strategy = "label"
	ByPlaceholder Strategy = "placeholder"
)

// labelPlaceholder is substituted by Selector.With for choice widgets whose
// selector depends on the value being chosen ("2 Sides", "Blind Ship", ...)
const labelPlaceholder = "{label}"

const (
	upperAlpha = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlpha = "abcdefghijklmnopqrstuvwxyz"
)

// Selector is one candidate strategy for locating a DOM element.
type Selector struct {
	By    Strategy `json:"by"`
	Query string   `json:"query"`
	// Tag restricts text matches to one element name (button, a, label...)
	Tag string `json:"tag,omitempty"`
}

func CSS(q string) Selector         { return Selector{By: ByCSS, Query: q} }
func XPath(q string) Selector       { return Selector{By: ByXPath, Query: q} }
func Label(q string) Selector       { return Selector{By: ByLabel, Query: q} }
func Placeholder(q string) Selector { return Selector{By: ByPlaceholder, Query: q} }

// Text matches the innermost element whose visible text contains q,
// case-insensitively. An optional tag narrows the element name.
func Text(q string, tag ...string) Selector {
	s := Selector{By: ByText, Query: q}
	if len(tag) > 0 {
		s.Tag = tag[0]
	}
	return s
}

func (s Selector) String() string {
	if s.Tag != "" {
		return fmt.Sprintf("%s(%s %q)", s.By, s.Tag, s.Query)
	}
	return fmt.Sprintf("%s(%q)", s.By, s.Query)
}

// With substitutes the {label} placeholder
func (s Selector) With(label string) Selector {
	s.Query = strings.ReplaceAll(s.Query, labelPlaceholder, label)
	return s
}

// Compile turns the selector into a query the browser understands. The
// returned flag is true for XPath expressions.
func (s Selector) Compile() (string, bool) {
	switch s.By {
	case ByXPath:
		return s.Query, true
	case ByText:
		needle := xpathLiteral(strings.ToLower(strings.TrimSpace(s.Query)))
		if s.Tag != "" {
			return fmt.Sprintf("//%s[contains(%s, %s)]", s.Tag, lowerText("."), needle), true
		}
		return fmt.Sprintf("//*[contains(%s, %s) and not(.//*[contains(%s, %s)])]",
			lowerText("."), needle, lowerText("."), needle), true
	case ByLabel:
		needle := xpathLiteral(strings.ToLower(strings.TrimSpace(s.Query)))
		return fmt.Sprintf("//label[contains(%s, %s)]/following::*[self::input or self::select or self::textarea][1]",
			lowerText("."), needle), true
	case ByPlaceholder:
		return fmt.Sprintf(`[placeholder*=%q i]`, s.Query), false
	default:
		return s.Query, false
	}
}

func lowerText(node string) string {
	return fmt.Sprintf("translate(normalize-space(%s), '%s', '%s')", node, upperAlpha, lowerAlpha)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

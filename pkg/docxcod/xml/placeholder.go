package xml

import (
	"strings"

	"github.com/beevik/etree"
)

// PlaceholderTag is the reserved element name. It carries no namespace prefix so
// it cannot collide with any OOXML vocabulary.
const PlaceholderTag = "DocxcodPlaceholder"

// Placeholder is a raw template fragment embedded in a part.
type Placeholder struct {
	Payload string
}

// NewPlaceholder builds a placeholder element. A payload containing "]]>" is
// split across adjacent CDATA sections. Carriage returns sit between sections
// as text, which Serialize writes as &#xD;, because a parser folds a literal CR
// into LF even inside CDATA.
func NewPlaceholder(payload string) *etree.Element {
	e := etree.NewElement(PlaceholderTag)
	if payload == "" {
		e.CreateCData("")
		return e
	}
	for i, line := range strings.Split(payload, "\r") {
		if i > 0 {
			e.CreateText("\r")
		}
		if line == "" {
			continue
		}
		for _, section := range cdataSections(line) {
			e.CreateCData(section)
		}
	}
	return e
}

// AsPlaceholder reports whether tok is a placeholder and returns its payload.
func AsPlaceholder(tok etree.Token) (Placeholder, bool) {
	e, ok := tok.(*etree.Element)
	if !ok || e.Space != "" || e.Tag != PlaceholderTag {
		return Placeholder{}, false
	}
	var sb strings.Builder
	for _, child := range e.Child {
		if cd, ok := child.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return Placeholder{Payload: sb.String()}, true
}

// IsPlaceholder reports whether tok is a placeholder element.
func IsPlaceholder(tok etree.Token) bool {
	_, ok := AsPlaceholder(tok)
	return ok
}

// FindPlaceholders returns every placeholder below root in document order.
// The result is a snapshot; callers may mutate the tree while ranging over it.
func FindPlaceholders(root *etree.Element) []*etree.Element {
	var found []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if IsPlaceholder(child) {
				found = append(found, child)
				continue
			}
			walk(child)
		}
	}
	if root != nil {
		walk(root)
	}
	return found
}

// Source returns the template source the placeholder stands for. Payloads that
// already carry template delimiters are used verbatim; bare directive text is
// wrapped as a single tag.
func (p Placeholder) Source() string {
	if strings.Contains(p.Payload, "{{") {
		return p.Payload
	}
	trimmed := strings.TrimSpace(p.Payload)
	if trimmed == "" {
		return ""
	}
	return "{{" + trimmed + "}}"
}

func cdataSections(s string) []string {
	var sections []string
	for {
		i := strings.Index(s, "]]>")
		if i < 0 {
			break
		}
		sections = append(sections, s[:i+2])
		s = s[i+2:]
	}
	return append(sections, s)
}

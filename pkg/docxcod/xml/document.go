package xml

import (
	"fmt"

	"github.com/beevik/etree"
)

// Parse reads a part into a DOM. CDATA sections are kept as distinct tokens so
// placeholder payloads survive untouched.
func Parse(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse xml: no root element")
	}
	return doc, nil
}

// Serialize writes the DOM back without indentation. Attribute values and text
// are written in canonical form, which leaves apostrophes unescaped so template
// expressions stored in attributes reach the template engine verbatim, and
// writes carriage returns as &#xD; so they survive a reparse.
func Serialize(doc *etree.Document) ([]byte, error) {
	doc.WriteSettings.CanonicalAttrVal = true
	doc.WriteSettings.CanonicalText = true
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize xml: %w", err)
	}
	return out, nil
}

// Is reports whether e is an element with the given prefixed tag.
func Is(e *etree.Element, tag string) bool {
	return e != nil && e.FullTag() == tag
}

// IsChartRef reports whether e is a DrawingML chart reference, either by the
// conventional "c" prefix or by namespace URI.
func IsChartRef(e *etree.Element) bool {
	if e == nil || e.Tag != "chart" {
		return false
	}
	return e.Space == "c" || e.NamespaceURI() == ChartNamespace
}

// Path returns a diagnostic location for log output.
func Path(e *etree.Element) string {
	if e == nil {
		return ""
	}
	return e.GetPath()
}

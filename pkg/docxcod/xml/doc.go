// Package xml provides the DOM layer docxcod uses to edit OOXML parts in place.
//
// Parts are parsed into github.com/beevik/etree documents so that passes can walk
// ancestors and siblings, move nodes between parents, and serialize the result
// without re-indenting whitespace-sensitive markup.
//
// # Structure Organization
//
//   - document.go: Parse and Serialize for whole parts
//   - names.go: qualified tag and attribute names used by the passes
//   - placeholder.go: the Placeholder variant and its CDATA wire format
//   - tree.go: ancestor, sibling, and insertion helpers
//   - unwrap.go: textual replacement of serialized placeholders by template source
//
// # Placeholders
//
// A placeholder is an element with the reserved tag DocxcodPlaceholder whose only
// children are CDATA sections. It carries raw template source through any number
// of parse/serialize cycles. Passes recognize it with AsPlaceholder rather than by
// comparing tag strings.
package xml

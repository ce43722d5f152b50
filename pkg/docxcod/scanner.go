package docxcod

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// Directive is the raw text of one merge field plus the node it was found at.
// Anchor is either a w:fldSimple element or the w:fldChar of a field's begin run.
type Directive struct {
	Text   string
	Anchor *etree.Element
}

// ScanDirectives finds every MERGEFIELD in document order. Instruction text
// split across several runs is concatenated; fields nested inside another
// field's instruction are not reported.
func ScanDirectives(doc *etree.Document) []Directive {
	var (
		directives []Directive
		depth      int
		anchor     *etree.Element
		instr      strings.Builder
		collecting bool
	)

	finish := func() {
		if text, ok := ParseMergeField(instr.String()); ok && anchor != nil {
			directives = append(directives, Directive{Text: text, Anchor: anchor})
		}
		collecting = false
		anchor = nil
		instr.Reset()
	}

	dxml.Walk(doc.Root(), func(e *etree.Element) {
		switch {
		case dxml.Is(e, dxml.TagFieldSimple):
			if text, ok := ParseMergeField(e.SelectAttrValue(dxml.AttrInstr, "")); ok {
				directives = append(directives, Directive{Text: text, Anchor: e})
			}

		case dxml.Is(e, dxml.TagFieldChar):
			switch e.SelectAttrValue(dxml.AttrFieldCharType, "") {
			case "begin":
				depth++
				if depth == 1 {
					anchor = e
					collecting = true
					instr.Reset()
				}
			case "separate":
				if depth == 1 && collecting {
					finish()
				}
			case "end":
				if depth == 1 && collecting {
					finish()
				}
				if depth > 0 {
					depth--
				}
			}

		case dxml.Is(e, dxml.TagInstrText):
			if depth == 1 && collecting {
				instr.WriteString(e.Text())
			}
		}
	})

	return directives
}

// ParseMergeField extracts the field name from a MERGEFIELD instruction such as
// ` MERGEFIELD  @after-row/end  \* MERGEFORMAT `. Other field codes yield false.
func ParseMergeField(instr string) (string, bool) {
	instr = strings.TrimSpace(normalizeQuotes(instr))
	fields := strings.Fields(instr)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "MERGEFIELD") {
		return "", false
	}

	rest := strings.TrimSpace(instr[len(fields[0]):])
	rest = strings.TrimSpace(stripFieldSwitches(rest))
	if len(rest) >= 2 && rest[0] == '"' && rest[len(rest)-1] == '"' {
		rest = rest[1 : len(rest)-1]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// stripFieldSwitches cuts the instruction at the first switch (a backslash that
// follows whitespace) outside double quotes.
func stripFieldSwitches(s string) string {
	inQuotes := false
	for i, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '\\' && !inQuotes && i > 0:
			if prev, _ := utf8.DecodeLastRuneInString(s[:i]); unicode.IsSpace(prev) {
				return s[:i]
			}
		}
	}
	return s
}

// normalizeQuotes maps typographic quotes to their ASCII forms.
func normalizeQuotes(s string) string {
	return strings.Map(func(r rune) rune {
		if !unicode.In(r, unicode.Pi, unicode.Pf) {
			return r
		}
		switch r {
		case '‘', '’', '‚', '‛', '‹', '›':
			return '\''
		default:
			return '"'
		}
	}, s)
}

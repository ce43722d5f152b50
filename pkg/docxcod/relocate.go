package docxcod

import (
	"sort"
	"strings"

	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// DirectiveKind identifies one of the structural directive prefixes.
type DirectiveKind int

const (
	KindBeforeRow DirectiveKind = iota
	KindRow
	KindAfterRow
	KindEndRow
	KindBeforePara
	KindPara
	KindAfterPara
	KindEndPara
)

type directivePrefix struct {
	prefix   string
	kind     DirectiveKind
	before   bool
	ancestor string
}

var directivePrefixes = []directivePrefix{
	{"@before-row", KindBeforeRow, true, dxml.TagTableRow},
	{"@row", KindRow, true, dxml.TagTableRow},
	{"@after-row", KindAfterRow, false, dxml.TagTableRow},
	{"@/row", KindEndRow, false, dxml.TagTableRow},
	{"@before-para", KindBeforePara, true, dxml.TagParagraph},
	{"@para", KindPara, true, dxml.TagParagraph},
	{"@after-para", KindAfterPara, false, dxml.TagParagraph},
	{"@/para", KindEndPara, false, dxml.TagParagraph},
}

func init() {
	sort.SliceStable(directivePrefixes, func(i, j int) bool {
		return len(directivePrefixes[i].prefix) > len(directivePrefixes[j].prefix)
	})
}

func (k DirectiveKind) String() string {
	for _, p := range directivePrefixes {
		if p.kind == k {
			return p.prefix
		}
	}
	return "unknown"
}

// AugmentedDirective is a placeholder payload that names a structural boundary.
type AugmentedDirective struct {
	Kind      DirectiveKind
	Remainder string
	Before    bool
	Ancestor  string
}

// ParseAugmentedDirective matches payload against the directive prefixes,
// longest first. Payloads without a known prefix return ErrNotDirective.
func ParseAugmentedDirective(payload string) (AugmentedDirective, error) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "@") {
		return AugmentedDirective{}, ErrNotDirective
	}
	for _, p := range directivePrefixes {
		if strings.HasPrefix(payload, p.prefix) {
			return AugmentedDirective{
				Kind:      p.kind,
				Remainder: strings.TrimSpace(payload[len(p.prefix):]),
				Before:    p.before,
				Ancestor:  p.ancestor,
			}, nil
		}
	}
	return AugmentedDirective{}, ErrNotDirective
}

// RelocateDirectives moves every structural directive placeholder out of its
// run to the start or end of the enclosing row or paragraph. The moved
// placeholder carries only the remainder, and since it no longer sits inside a
// run a second pass leaves it alone. It returns the number of moves.
func RelocateDirectives(doc *etree.Document, logger *Logger) int {
	moved := 0

	for _, node := range dxml.FindPlaceholders(doc.Root()) {
		ph, _ := dxml.AsPlaceholder(node)
		ad, err := ParseAugmentedDirective(ph.Payload)
		if err != nil {
			continue
		}

		run := dxml.Grandparent(node)
		if !dxml.Is(run, dxml.TagRun) {
			logger.WithFields(Fields{
				"directive": ph.Payload,
				"path":      dxml.Path(node),
			}).Debug("Placeholder is not inside a run, skipping")
			continue
		}

		target := dxml.Ancestor(run, ad.Ancestor)
		if target == nil || target.Parent() == nil {
			logger.WithFields(Fields{
				"directive": ph.Payload,
				"path":      dxml.Path(run),
			}).Warn("No enclosing %s for directive", ad.Ancestor)
			continue
		}

		relocated := dxml.NewPlaceholder(ad.Remainder)
		if ad.Before {
			dxml.InsertBefore(target, relocated)
		} else {
			dxml.InsertAfter(target, relocated)
		}
		dxml.Remove(run)
		moved++

		logger.WithFields(Fields{
			"directive": ph.Payload,
			"path":      dxml.Path(relocated),
		}).Debug("Directive relocated")
	}

	return moved
}

package docxcod

import (
	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// fieldMark classifies a run by the field character it carries.
type fieldMark int

const (
	fieldMarkNone fieldMark = iota
	fieldMarkBegin
	fieldMarkSeparate
	fieldMarkEnd
)

func classifyRun(run *etree.Element) fieldMark {
	fc := run.SelectElement(dxml.TagFieldChar)
	if fc == nil {
		return fieldMarkNone
	}
	switch fc.SelectAttrValue(dxml.AttrFieldCharType, "") {
	case "begin":
		return fieldMarkBegin
	case "separate":
		return fieldMarkSeparate
	case "end":
		return fieldMarkEnd
	default:
		return fieldMarkNone
	}
}

// PlacementReport counts the outcome of a placement pass. Placed+Skipped equals
// the number of directives handed in; every skip has a matching warning.
type PlacementReport struct {
	Placed   int
	Skipped  int
	Warnings *MultiError
}

// PlaceMergeFields replaces each field with a single run holding a placeholder
// for its directive text. Fields in an unrecognized shape are logged and left
// untouched.
func PlaceMergeFields(directives []Directive, logger *Logger) PlacementReport {
	report := PlacementReport{Warnings: NewMultiError()}

	for _, d := range directives {
		var err error
		switch {
		case dxml.Is(d.Anchor, dxml.TagFieldSimple):
			err = placeSimpleField(d)
		case dxml.Is(d.Anchor, dxml.TagFieldChar):
			err = placeComplexField(d)
		default:
			err = &FieldEncodingError{Directive: d.Text, Path: dxml.Path(d.Anchor), Reason: "anchor is not a field node"}
		}

		if err != nil {
			report.Skipped++
			report.Warnings.Add(err)
			logger.WithFields(Fields{
				"directive": d.Text,
				"path":      dxml.Path(d.Anchor),
			}).WithError(err).Warn("Merge field left unmodified")
			continue
		}

		report.Placed++
		logger.WithField("directive", d.Text).Debug("Merge field placed")
	}

	return report
}

// placeSimpleField keeps exactly one run of a w:fldSimple: the first one with
// text, emptied and given the placeholder, moved in front of the field.
func placeSimpleField(d Directive) error {
	field := d.Anchor
	if field.Parent() == nil {
		return &FieldEncodingError{Directive: d.Text, Path: dxml.Path(field), Reason: "detached field"}
	}

	var run, text *etree.Element
	for _, r := range field.SelectElements(dxml.TagRun) {
		if t := r.SelectElement(dxml.TagText); t != nil {
			run, text = r, t
			break
		}
	}
	if run == nil {
		run = etree.NewElement(dxml.TagRun)
		if first := field.SelectElement(dxml.TagRun); first != nil {
			if props := first.SelectElement(dxml.TagRunProps); props != nil {
				run.AddChild(props.Copy())
			}
		}
		text = run.CreateElement(dxml.TagText)
	}

	clearChildren(text)
	text.AddChild(dxml.NewPlaceholder(d.Text))

	dxml.InsertBefore(field, run.Copy())
	dxml.Remove(field)
	return nil
}

// placeComplexField walks the runs of a begin/separate/end field. The run
// after separate carries the visible formatting and becomes the survivor; when
// there is no result run the begin run survives instead.
func placeComplexField(d Directive) error {
	first := d.Anchor.Parent()
	if !dxml.Is(first, dxml.TagRun) {
		return &FieldEncodingError{Directive: d.Text, Path: dxml.Path(d.Anchor), Reason: "field character outside a run"}
	}

	var (
		beginRun, endRun *etree.Element
		removal          []*etree.Element
		afterSeparate    bool
		depth            int
	)

	runs := append([]*etree.Element{first}, dxml.FollowingSiblings(first)...)
scan:
	for _, run := range runs {
		if !dxml.Is(run, dxml.TagRun) {
			continue
		}
		mark := classifyRun(run)

		if afterSeparate {
			afterSeparate = false
			if beginRun != nil {
				removal = append(removal, beginRun)
			}
			beginRun = run
			if mark == fieldMarkEnd && depth == 0 {
				endRun = run
				break scan
			}
			continue
		}

		switch mark {
		case fieldMarkBegin:
			if beginRun == nil && run == first {
				beginRun = run
				continue
			}
			depth++
			removal = append(removal, run)
		case fieldMarkSeparate:
			removal = append(removal, run)
			if depth == 0 {
				afterSeparate = true
			}
		case fieldMarkEnd:
			if depth == 0 {
				endRun = run
				break scan
			}
			depth--
			removal = append(removal, run)
		default:
			removal = append(removal, run)
		}
	}

	if beginRun == nil || endRun == nil {
		return &FieldEncodingError{Directive: d.Text, Path: dxml.Path(d.Anchor), Reason: "no corresponding begin & end"}
	}
	if endRun != beginRun {
		removal = append(removal, endRun)
	}

	text := beginRun.SelectElement(dxml.TagText)
	fieldChar := beginRun.SelectElement(dxml.TagFieldChar)
	if text == nil && fieldChar == nil {
		return &FieldEncodingError{Directive: d.Text, Path: dxml.Path(beginRun), Reason: "not-supported run shape"}
	}

	for _, run := range removal {
		if run != beginRun {
			dxml.Remove(run)
		}
	}

	if text != nil {
		clearChildren(text)
		text.AddChild(dxml.NewPlaceholder(d.Text))
		if fieldChar != nil {
			beginRun.RemoveChild(fieldChar)
		}
		return nil
	}

	text = etree.NewElement(dxml.TagText)
	text.AddChild(dxml.NewPlaceholder(d.Text))
	beginRun.AddChild(text)
	beginRun.RemoveChild(fieldChar)
	return nil
}

func clearChildren(e *etree.Element) {
	for len(e.Child) > 0 {
		e.RemoveChildAt(len(e.Child) - 1)
	}
}

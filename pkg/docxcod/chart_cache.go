package docxcod

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

const chartDataSheet = "Sheet1"

var rangeFormulaRegex = regexp.MustCompile(`^Sheet1!\$([A-Z]+)\$(\d+)(?::\$([A-Z]+)\$(\d+))?$`)

// RangeFormula is a chart series reference such as Sheet1!$B$2:$B$7.
type RangeFormula struct {
	Sheet    string
	StartCol string
	StartRow int
	EndCol   string
	EndRow   int
	// Single is set when the formula names one cell without a ":" part.
	Single bool
}

// ParseRangeFormula parses a Sheet1-anchored absolute reference. Ranges
// spanning more than one column are rejected.
func ParseRangeFormula(formula string) (RangeFormula, error) {
	m := rangeFormulaRegex.FindStringSubmatch(strings.TrimSpace(formula))
	if m == nil {
		return RangeFormula{}, NewUnsupportedDocumentError("", "unsupported chart formula %q", formula)
	}

	rf := RangeFormula{Sheet: chartDataSheet, StartCol: m[1]}
	rf.StartRow, _ = strconv.Atoi(m[2])
	if m[3] == "" {
		rf.Single = true
		rf.EndCol = rf.StartCol
		rf.EndRow = rf.StartRow
		return rf, nil
	}

	rf.EndCol = m[3]
	rf.EndRow, _ = strconv.Atoi(m[4])
	if rf.StartCol != rf.EndCol {
		return RangeFormula{}, NewUnsupportedDocumentError("", "multi-column chart formula %q", formula)
	}
	return rf, nil
}

// IsSingleCell reports whether the range covers exactly one cell.
func (rf RangeFormula) IsSingleCell() bool {
	return rf.Single || rf.StartRow == rf.EndRow
}

func (rf RangeFormula) String() string {
	if rf.Single {
		return fmt.Sprintf("%s!$%s$%d", rf.Sheet, rf.StartCol, rf.StartRow)
	}
	return fmt.Sprintf("%s!$%s$%d:$%s$%d", rf.Sheet, rf.StartCol, rf.StartRow, rf.EndCol, rf.EndRow)
}

// UpdateChartCaches rewrites every string and number reference of a chart to
// match ledger: the formula end row, the point count and the cached points.
func UpdateChartCaches(chart *etree.Document, ledger CellLedger) error {
	refs := dxml.Collect(chart.Root(), func(e *etree.Element) bool {
		return dxml.Is(e, dxml.TagStrRef) || dxml.Is(e, dxml.TagNumRef)
	})

	for _, ref := range refs {
		if err := updateReference(ref, ledger); err != nil {
			return err
		}
	}
	return nil
}

func updateReference(ref *etree.Element, ledger CellLedger) error {
	path := dxml.Path(ref)

	formula := ref.SelectElement(dxml.TagFormula)
	if formula == nil {
		return NewUnsupportedDocumentError(path, "reference without formula")
	}
	rf, err := ParseRangeFormula(formula.Text())
	if err != nil {
		return WithContext(err, "update chart cache", map[string]interface{}{"path": path})
	}

	selection := ledger.Select(rf)
	size := len(selection)
	if size == 0 {
		size = 1
	}
	if !rf.IsSingleCell() {
		rf.EndRow = rf.StartRow + size - 1
	}
	formula.SetText(rf.String())

	cacheTag := dxml.TagNumCache
	if dxml.Is(ref, dxml.TagStrRef) {
		cacheTag = dxml.TagStrCache
	}
	cache := ref.SelectElement(cacheTag)
	if cache == nil {
		return NewUnsupportedDocumentError(path, "reference without %s", cacheTag)
	}
	ptCount := cache.SelectElement(dxml.TagPointCount)
	if ptCount == nil {
		return NewUnsupportedDocumentError(path, "cache without %s", dxml.TagPointCount)
	}
	points := cache.SelectElements(dxml.TagPoint)
	if len(points) == 0 {
		return NewUnsupportedDocumentError(path, "cache without %s prototype", dxml.TagPoint)
	}

	prototype := points[0].Copy()
	insertAt := points[0].Index()
	for _, pt := range points {
		cache.RemoveChild(pt)
	}

	values := make([]string, 0, size)
	for _, rec := range selection {
		values = append(values, rec.Value)
	}
	if len(values) == 0 {
		values = append(values, "0")
	}

	for i, value := range values {
		pt := prototype.Copy()
		pt.CreateAttr("idx", strconv.Itoa(i))
		v := pt.SelectElement(dxml.TagValue)
		if v == nil {
			v = pt.CreateElement(dxml.TagValue)
		}
		clearChildren(v)
		v.SetText(value)
		cache.InsertChildAt(insertAt+i, pt)
	}

	ptCount.CreateAttr("val", strconv.Itoa(len(values)))
	return nil
}

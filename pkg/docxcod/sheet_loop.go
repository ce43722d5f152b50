package docxcod

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/xuri/excelize/v2"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

const (
	sheetRowIncFunction  = "sheetRowInc"
	sheetRowFunction     = "sheetRow"
	sheetCellRefFunction = "sheetCellRef"
)

// LoopDescriptor is the loop a worksheet's two trailing rows describe.
type LoopDescriptor struct {
	// Source is the loop expression from the coordinator row, e.g. "for p in points".
	Source string
	Items  []ItemDescriptor
	// FirstRow is the row number the first expanded row takes: the
	// coordinator's own number, since both trailing rows are replaced.
	FirstRow int
}

// ItemDescriptor is one cell of the item-template row.
type ItemDescriptor struct {
	Address string
	Value   string
}

// ReadSharedStrings returns the text of every shared-string item, joining
// rich-text runs. Phonetic hints are ignored.
func ReadSharedStrings(doc *etree.Document) []string {
	if doc == nil || doc.Root() == nil {
		return nil
	}

	var sst []string
	for _, si := range doc.Root().SelectElements(dxml.TagSharedItem) {
		var sb strings.Builder
		for _, child := range si.ChildElements() {
			switch {
			case dxml.Is(child, dxml.TagInlineText):
				sb.WriteString(child.Text())
			case dxml.Is(child, dxml.TagRichRun):
				if t := child.SelectElement(dxml.TagInlineText); t != nil {
					sb.WriteString(t.Text())
				}
			}
		}
		sst = append(sst, sb.String())
	}
	return sst
}

// CompileSheetLoop turns the last two populated rows of a worksheet into one
// templated row wrapped in a loop. The coordinator row's first cell holds the
// loop expression; the item-template row supplies the cell layout and values.
// Columns the worksheet dimension declares beyond the template are padded with
// empty cells styled padStyle.
func CompileSheetLoop(sheet *etree.Document, sst []string, padStyle string) (LoopDescriptor, error) {
	root := sheet.Root()
	sheetData := root.SelectElement(dxml.TagSheetData)
	if sheetData == nil {
		return LoopDescriptor{}, NewUnsupportedDocumentError("", "worksheet without sheetData")
	}

	var rows []*etree.Element
	for _, row := range sheetData.SelectElements(dxml.TagRow) {
		if row.SelectElement(dxml.TagCell) != nil {
			rows = append(rows, row)
		}
	}
	if len(rows) < 2 {
		return LoopDescriptor{}, NewUnsupportedDocumentError("", "cannot obtain loop coordinator")
	}
	coordinator, template := rows[len(rows)-2], rows[len(rows)-1]

	source, err := resolveCellValue(coordinator.SelectElement(dxml.TagCell), sst)
	if err != nil {
		return LoopDescriptor{}, err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		return LoopDescriptor{}, NewUnsupportedDocumentError(dxml.Path(coordinator), "cannot obtain loop coordinator")
	}
	desc := LoopDescriptor{Source: source, FirstRow: rowNumber(coordinator, len(rows)-1)}

	for _, c := range template.SelectElements(dxml.TagCell) {
		value, err := resolveCellValue(c, sst)
		if err != nil {
			return LoopDescriptor{}, err
		}
		desc.Items = append(desc.Items, ItemDescriptor{
			Address: c.SelectAttrValue("r", ""),
			Value:   value,
		})
	}

	rightEnd := dimensionRightEnd(root)
	if rightEnd == 0 {
		rightEnd = len(desc.Items)
	}

	newRow := template.Copy()
	newRow.CreateAttr("r", fmt.Sprintf("{{%s()}}", sheetRowIncFunction))
	newRow.CreateAttr("spans", fmt.Sprintf("1:%d", rightEnd))

	cells := map[int]*etree.Element{}
	for i, c := range newRow.SelectElements(dxml.TagCell) {
		col := i + 1
		if parsed, _, err := excelize.CellNameToCoordinates(desc.Items[i].Address); err == nil {
			col = parsed
		}
		if err := templateCell(c, col, desc.Items[i].Value); err != nil {
			return LoopDescriptor{}, err
		}
		newRow.RemoveChild(c)
		cells[col] = c
	}
	for col := 1; col <= rightEnd; col++ {
		if _, ok := cells[col]; !ok {
			pad := etree.NewElement(dxml.TagCell)
			pad.CreateAttr("r", cellRefAttr(col))
			pad.CreateAttr("s", padStyle)
			cells[col] = pad
		}
	}
	columns := make([]int, 0, len(cells))
	for col := range cells {
		columns = append(columns, col)
	}
	sort.Ints(columns)
	for _, col := range columns {
		newRow.AddChild(cells[col])
	}

	at := coordinator.Index()
	sheetData.RemoveChild(template)
	sheetData.RemoveChild(coordinator)
	sheetData.InsertChildAt(at, dxml.NewPlaceholder(desc.Source))
	sheetData.InsertChildAt(at+1, newRow)
	sheetData.InsertChildAt(at+2, dxml.NewPlaceholder("end"))

	return desc, nil
}

// rowNumber reads row@r, falling back to the row's position among the
// populated rows when the attribute is missing or unreadable.
func rowNumber(row *etree.Element, fallback int) int {
	if n, err := strconv.Atoi(row.SelectAttrValue("r", "")); err == nil && n > 0 {
		return n
	}
	return fallback
}

func cellRefAttr(col int) string {
	return fmt.Sprintf("{{%s(%s(), %d)}}", sheetCellRefFunction, sheetRowFunction, col)
}

// templateCell readdresses c and stores value in it. Shared and inline string
// cells become inline strings so the rendered text needs no table lookup.
func templateCell(c *etree.Element, col int, value string) error {
	c.CreateAttr("r", cellRefAttr(col))

	switch c.SelectAttrValue("t", "") {
	case "s", "inlineStr":
		c.CreateAttr("t", "inlineStr")
		clearChildren(c)
		t := c.CreateElement(dxml.TagInlineStr).CreateElement(dxml.TagInlineText)
		setCellText(t, value)
	default:
		v := c.SelectElement(dxml.TagCellValue)
		if v == nil {
			return NewUnsupportedDocumentError(dxml.Path(c), "cannot modify cell content: no v element")
		}
		clearChildren(v)
		setCellText(v, value)
	}
	return nil
}

// setCellText stores template source in a placeholder and anything else as text.
func setCellText(e *etree.Element, value string) {
	if strings.Contains(value, "{{") {
		e.AddChild(dxml.NewPlaceholder(value))
		return
	}
	e.SetText(value)
}

func resolveCellValue(c *etree.Element, sst []string) (string, error) {
	if c == nil {
		return "", NewUnsupportedDocumentError("", "cannot obtain loop coordinator")
	}

	switch c.SelectAttrValue("t", "") {
	case "inlineStr":
		is := c.SelectElement(dxml.TagInlineStr)
		if is == nil {
			return "", nil
		}
		var sb strings.Builder
		for _, t := range is.FindElements(".//" + dxml.TagInlineText) {
			sb.WriteString(t.Text())
		}
		return sb.String(), nil
	case "s":
		v := c.SelectElement(dxml.TagCellValue)
		if v == nil {
			return "", NewUnsupportedDocumentError(dxml.Path(c), "shared string cell without v element")
		}
		idx, err := strconv.Atoi(strings.TrimSpace(v.Text()))
		if err != nil || idx < 0 || idx >= len(sst) {
			return "", NewUnsupportedDocumentError(dxml.Path(c), "shared string map doesn't contain item #%s", v.Text())
		}
		return sst[idx], nil
	default:
		v := c.SelectElement(dxml.TagCellValue)
		if v == nil {
			return "", NewUnsupportedDocumentError(dxml.Path(c), "cannot read cell content: no v element")
		}
		return v.Text(), nil
	}
}

// dimensionRightEnd returns the last column number of dimension@ref, or 0.
func dimensionRightEnd(root *etree.Element) int {
	dim := root.SelectElement(dxml.TagDimension)
	if dim == nil {
		return 0
	}
	ref := dim.SelectAttrValue("ref", "")
	i := strings.LastIndex(ref, ":")
	if i < 0 {
		return 0
	}
	col, _, err := excelize.SplitCellName(ref[i+1:])
	if err != nil {
		return 0
	}
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return 0
	}
	return n
}

// sheetRowFunctions numbers the rows a spreadsheet pass emits. The counter
// starts just above firstRow, so the first sheetRowInc yields firstRow and the
// rows kept above the loop keep their numbers.
type sheetRowFunctions struct {
	row     int
	emitted int
	maxRows int
}

func newSheetRowFunctions(firstRow, maxRows int) *sheetRowFunctions {
	if firstRow < 1 {
		firstRow = 1
	}
	return &sheetRowFunctions{row: firstRow - 1, maxRows: maxRows}
}

func (f *sheetRowFunctions) ProvideFunctions() map[string]Function {
	return map[string]Function{
		sheetRowIncFunction: NewSimpleFunction(sheetRowIncFunction, 0, 0, func(args ...interface{}) (interface{}, error) {
			if f.maxRows > 0 && f.emitted >= f.maxRows {
				return nil, NewFunctionError(sheetRowIncFunction, args, fmt.Sprintf("loop exceeds %d rows", f.maxRows))
			}
			f.emitted++
			f.row++
			return f.row, nil
		}),
		sheetRowFunction: NewSimpleFunction(sheetRowFunction, 0, 0, func(args ...interface{}) (interface{}, error) {
			return f.row, nil
		}),
		sheetCellRefFunction: NewSimpleFunction(sheetCellRefFunction, 2, 2, func(args ...interface{}) (interface{}, error) {
			row, err := toInteger(args[0])
			if err != nil {
				return nil, NewFunctionError(sheetCellRefFunction, args, err.Error())
			}
			col, err := toInteger(args[1])
			if err != nil {
				return nil, NewFunctionError(sheetCellRefFunction, args, err.Error())
			}
			r, _ := row.(int)
			c, _ := col.(int)
			return excelize.CoordinatesToCellName(c, r)
		}),
	}
}

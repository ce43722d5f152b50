package docxcod

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// CollectCells reads the first worksheet of an expanded spreadsheet into a
// ledger and computes the occupied table range. The range starts at A1, runs
// down column A while cells are non-empty, then across that last row.
func CollectCells(xlsx []byte) (CellLedger, string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(xlsx))
	if err != nil {
		return nil, "", NewDocumentError("open", "embedded workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", NewUnsupportedDocumentError("embedded workbook", "workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", NewDocumentError("read", sheets[0], err)
	}

	var ledger CellLedger
	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			addr, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, "", NewDocumentError("read", sheets[0], err)
			}
			ledger = append(ledger, CellRecord{Address: addr, Value: value})
		}
	}
	ledger.Sort()

	return ledger, tableRange(rows), nil
}

func tableRange(rows [][]string) string {
	cellAt := func(r, c int) string {
		if r < len(rows) && c < len(rows[r]) {
			return rows[r][c]
		}
		return ""
	}

	lastRow := 0
	for lastRow+1 < len(rows) && cellAt(lastRow+1, 0) != "" {
		lastRow++
	}
	lastCol := 0
	for cellAt(lastRow, lastCol+1) != "" {
		lastCol++
	}

	end, err := excelize.CoordinatesToCellName(lastCol+1, lastRow+1)
	if err != nil {
		return "A1:A1"
	}
	return "A1:" + end
}

// UpdateTableRanges points every table of an embedded workbook, its auto
// filter and the first worksheet's dimension at rangeRef.
func UpdateTableRanges(pkg *Package, rangeRef string) error {
	for _, part := range pkg.ListParts("xl/tables/") {
		if !strings.HasSuffix(part, ".xml") {
			continue
		}
		doc, err := pkg.XMLPart(part)
		if err != nil {
			return err
		}
		root := doc.Root()
		if root.Tag != dxml.TagTablePart {
			continue
		}
		root.CreateAttr("ref", rangeRef)
		if filter := root.SelectElement(dxml.TagAutoFilter); filter != nil {
			filter.CreateAttr("ref", rangeRef)
		}
		if err := pkg.SetXMLPart(part, doc); err != nil {
			return err
		}
	}

	sheetPart, err := firstWorksheet(pkg)
	if err != nil {
		return err
	}
	doc, err := pkg.XMLPart(sheetPart)
	if err != nil {
		return err
	}
	if dim := doc.Root().SelectElement(dxml.TagDimension); dim != nil {
		dim.CreateAttr("ref", rangeRef)
		return pkg.SetXMLPart(sheetPart, doc)
	}
	return nil
}

// firstWorksheet locates sheet1.xml, or the first worksheet part otherwise.
func firstWorksheet(pkg *Package) (string, error) {
	const preferred = "xl/worksheets/sheet1.xml"
	if pkg.HasPart(preferred) {
		return preferred, nil
	}
	for _, part := range pkg.ListParts("xl/worksheets/") {
		if strings.HasSuffix(part, ".xml") && !strings.Contains(part, "/_rels/") {
			return part, nil
		}
	}
	return "", NewUnsupportedDocumentError("embedded workbook", "no worksheet part")
}

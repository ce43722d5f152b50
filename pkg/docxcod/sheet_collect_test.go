package docxcod

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCollectCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	values := map[string]interface{}{
		"A1": "Month", "B1": "Sales",
		"A2": "Jan", "B2": 120,
		"A3": "Feb", "B3": 135.5,
		"C5": "note",
	}
	for addr, v := range values {
		require.NoError(t, f.SetCellValue("Sheet1", addr, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ledger, rangeRef, err := CollectCells(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "A1:B3", rangeRef)

	want := ledgerOf(
		"A1", "Month", "A2", "Jan", "A3", "Feb",
		"B1", "Sales", "B2", "120", "B3", "135.5",
		"C5", "note",
	)
	if diff := cmp.Diff(want, ledger); diff != "" {
		t.Errorf("CollectCells() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectCellsRejectsGarbage(t *testing.T) {
	_, _, err := CollectCells([]byte("not a workbook"))
	assert.True(t, IsDocumentError(err), "got %v", err)
}

func TestTableRange(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want string
	}{
		{"empty", nil, "A1:A1"},
		{"single cell", [][]string{{"x"}}, "A1:A1"},
		{"block", [][]string{{"a", "b", "c"}, {"1", "2"}, {"3", "4"}}, "A1:B3"},
		{"column stops at blank", [][]string{{"a", "b"}, {"1", "2"}, {"", "9"}, {"5", "6"}}, "A1:B2"},
		{"short last row", [][]string{{"a", "b", "c"}, {"1"}}, "A1:A2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tableRange(tt.rows))
		})
	}
}

func TestUpdateTableRanges(t *testing.T) {
	pkg := NewPackage()
	pkg.SetPart("xl/worksheets/sheet1.xml", []byte(worksheet("A1:B3", "")))
	pkg.SetPart("xl/tables/table1.xml", []byte(`<table `+spreadsheetNamespace+` id="1" ref="A1:B3"><autoFilter ref="A1:B3"/></table>`))
	pkg.SetPart("xl/tables/_rels/table1.xml.rels", []byte("untouched"))

	require.NoError(t, UpdateTableRanges(pkg, "A1:B7"))

	table, err := pkg.XMLPart("xl/tables/table1.xml")
	require.NoError(t, err)
	assert.Equal(t, "A1:B7", table.Root().SelectAttrValue("ref", ""))
	assert.Equal(t, "A1:B7", table.Root().SelectElement("autoFilter").SelectAttrValue("ref", ""))

	sheet, err := pkg.XMLPart("xl/worksheets/sheet1.xml")
	require.NoError(t, err)
	assert.Equal(t, "A1:B7", sheet.Root().SelectElement("dimension").SelectAttrValue("ref", ""))

	rels, err := pkg.Part("xl/tables/_rels/table1.xml.rels")
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(rels))
}

func TestFirstWorksheet(t *testing.T) {
	pkg := NewPackage()
	_, err := firstWorksheet(pkg)
	assert.True(t, IsUnsupportedDocument(err))

	pkg.SetPart("xl/worksheets/_rels/data.xml.rels", []byte{})
	pkg.SetPart("xl/worksheets/data.xml", []byte{})
	part, err := firstWorksheet(pkg)
	require.NoError(t, err)
	assert.Equal(t, "xl/worksheets/data.xml", part)

	pkg.SetPart("xl/worksheets/sheet1.xml", []byte{})
	part, err = firstWorksheet(pkg)
	require.NoError(t, err)
	assert.Equal(t, "xl/worksheets/sheet1.xml", part)
}

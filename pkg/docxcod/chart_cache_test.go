package docxcod

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

func TestParseRangeFormula(t *testing.T) {
	tests := []struct {
		formula string
		want    RangeFormula
	}{
		{"Sheet1!$B$2:$B$7", RangeFormula{Sheet: "Sheet1", StartCol: "B", StartRow: 2, EndCol: "B", EndRow: 7}},
		{"Sheet1!$AA$10", RangeFormula{Sheet: "Sheet1", StartCol: "AA", StartRow: 10, EndCol: "AA", EndRow: 10, Single: true}},
		{" Sheet1!$C$3:$C$3 ", RangeFormula{Sheet: "Sheet1", StartCol: "C", StartRow: 3, EndCol: "C", EndRow: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := ParseRangeFormula(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, stripSpaces(tt.formula), got.String())
		})
	}
}

func stripSpaces(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != ' ' {
			out = append(out, r)
		}
	}
	return string(out)
}

func TestParseRangeFormulaRejects(t *testing.T) {
	for _, formula := range []string{"Data!$A$1:$A$3", "Sheet1!A1:A3", "Sheet1!$A$1:$B$3", "", "Sheet1!$A$1:"} {
		_, err := ParseRangeFormula(formula)
		assert.True(t, IsUnsupportedDocument(err), formula)
	}
}

func TestUpdateChartCaches(t *testing.T) {
	doc, err := dxml.Parse([]byte(chartFixture))
	require.NoError(t, err)

	ledger := ledgerOf(
		"A1", "Month", "B1", "Revenue",
		"A2", "Jan", "A3", "Feb", "A4", "Mar",
		"B2", "10", "B3", "20", "B4", "30",
	)
	require.NoError(t, UpdateChartCaches(doc, ledger))

	out, err := dxml.Serialize(doc)
	require.NoError(t, err)

	want := map[string][]string{
		"Sheet1!$B$1":       {"Revenue"},
		"Sheet1!$A$2:$A$4": {"Jan", "Feb", "Mar"},
		"Sheet1!$B$2:$B$4": {"10", "20", "30"},
	}
	if diff := cmp.Diff(want, cacheValues(t, string(out))); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}

	counts := doc.FindElements("//c:ptCount")
	require.Len(t, counts, 3)
	assert.Equal(t, "1", counts[0].SelectAttrValue("val", ""))
	assert.Equal(t, "3", counts[1].SelectAttrValue("val", ""))
	assert.Equal(t, "3", counts[2].SelectAttrValue("val", ""))

	// formatCode stays ahead of the points
	numCache := doc.FindElement("//c:numCache")
	children := numCache.ChildElements()
	assert.Equal(t, "formatCode", children[0].Tag)
	assert.Equal(t, "ptCount", children[1].Tag)
	for i, pt := range numCache.SelectElements(dxml.TagPoint) {
		assert.Equal(t, []string{"0", "1", "2"}[i], pt.SelectAttrValue("idx", ""))
	}
}

func TestUpdateChartCachesEmptySelection(t *testing.T) {
	chart := `<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:ser>` +
		`<c:val><c:numRef><c:f>Sheet1!$B$2:$B$2</c:f><c:numCache><c:ptCount val="1"/>` +
		`<c:pt idx="0"><c:v>7</c:v></c:pt></c:numCache></c:numRef></c:val>` +
		`<c:cat><c:strRef><c:f>Sheet1!$A$2:$A$6</c:f><c:strCache><c:ptCount val="5"/>` +
		`<c:pt idx="0"><c:v>a</c:v></c:pt><c:pt idx="1"><c:v>b</c:v></c:pt></c:strCache></c:strRef></c:cat>` +
		`</c:ser></c:chartSpace>`
	doc, err := dxml.Parse([]byte(chart))
	require.NoError(t, err)

	require.NoError(t, UpdateChartCaches(doc, nil))
	out, err := dxml.Serialize(doc)
	require.NoError(t, err)

	// an empty selection still keeps one zero point
	want := map[string][]string{
		"Sheet1!$B$2:$B$2": {"0"},
		"Sheet1!$A$2:$A$2": {"0"},
	}
	if diff := cmp.Diff(want, cacheValues(t, string(out))); diff != "" {
		t.Errorf("cache mismatch (-want +got):\n%s", diff)
	}
	for _, count := range doc.FindElements("//c:ptCount") {
		assert.Equal(t, "1", count.SelectAttrValue("val", ""))
	}
}

func TestUpdateChartCachesSelection(t *testing.T) {
	tests := []struct {
		name        string
		formula     string
		ledger      CellLedger
		wantFormula string
		wantValues  []string
	}{
		{
			name:        "gap truncates the range",
			formula:     "Sheet1!$A$1:$A$5",
			ledger:      ledgerOf("A1", "1", "A2", "2", "A3", "3", "A5", "5"),
			wantFormula: "Sheet1!$A$1:$A$3",
			wantValues:  []string{"1", "2", "3"},
		},
		{
			name:        "range grows with the data",
			formula:     "Sheet1!$A$1:$A$2",
			ledger:      ledgerOf("A1", "1", "A2", "2", "A3", "3", "A4", "4"),
			wantFormula: "Sheet1!$A$1:$A$4",
			wantValues:  []string{"1", "2", "3", "4"},
		},
		{
			name:        "missing single cell",
			formula:     "Sheet1!$B$2:$B$2",
			ledger:      ledgerOf("A2", "x"),
			wantFormula: "Sheet1!$B$2:$B$2",
			wantValues:  []string{"0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chart := `<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"><c:ser>` +
				`<c:val><c:numRef><c:f>` + tt.formula + `</c:f><c:numCache><c:ptCount val="1"/>` +
				`<c:pt idx="0"><c:v>9</c:v></c:pt></c:numCache></c:numRef></c:val>` +
				`</c:ser></c:chartSpace>`
			doc, err := dxml.Parse([]byte(chart))
			require.NoError(t, err)

			require.NoError(t, UpdateChartCaches(doc, tt.ledger))
			out, err := dxml.Serialize(doc)
			require.NoError(t, err)

			want := map[string][]string{tt.wantFormula: tt.wantValues}
			if diff := cmp.Diff(want, cacheValues(t, string(out))); diff != "" {
				t.Errorf("cache mismatch (-want +got):\n%s", diff)
			}
			count := doc.FindElement("//c:ptCount")
			require.NotNil(t, count)
			assert.Equal(t, strconv.Itoa(len(tt.wantValues)), count.SelectAttrValue("val", ""))
		})
	}
}

func TestUpdateChartCachesErrors(t *testing.T) {
	tests := []struct {
		name string
		ref  string
	}{
		{"other sheet", `<c:numRef><c:f>Data!$B$2:$B$3</c:f><c:numCache><c:ptCount val="1"/><c:pt idx="0"><c:v>1</c:v></c:pt></c:numCache></c:numRef>`},
		{"no formula", `<c:numRef><c:numCache><c:ptCount val="1"/><c:pt idx="0"><c:v>1</c:v></c:pt></c:numCache></c:numRef>`},
		{"no cache", `<c:numRef><c:f>Sheet1!$B$2:$B$3</c:f></c:numRef>`},
		{"no points", `<c:numRef><c:f>Sheet1!$B$2:$B$3</c:f><c:numCache><c:ptCount val="0"/></c:numCache></c:numRef>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dxml.Parse([]byte(`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart">` + tt.ref + `</c:chartSpace>`))
			require.NoError(t, err)
			err = UpdateChartCaches(doc, ledgerOf("B2", "1"))
			assert.True(t, IsUnsupportedDocument(err), "got %v", err)
		})
	}
}

package docxcod

import (
	"archive/zip"
	"bytes"
	"io"
	"sort"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

const documentNamespaces = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart"`

const (
	chartRelType    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/chart"
	packageRelType  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/package"
	documentRelType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
)

// wordDocument wraps body markup in a w:document root.
func wordDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + documentNamespaces + `><w:body>` + body + `</w:body></w:document>`
}

func parseTestDocument(t *testing.T, body string) *etree.Document {
	t.Helper()
	doc, err := dxml.Parse([]byte(wordDocument(body)))
	require.NoError(t, err)
	return doc
}

func serializeTestDocument(t *testing.T, doc *etree.Document) string {
	t.Helper()
	out, err := dxml.Serialize(doc)
	require.NoError(t, err)
	return string(out)
}

// simpleField is a w:fldSimple merge field showing its name as result text.
func simpleField(name string) string {
	return `<w:fldSimple w:instr=' MERGEFIELD "` + name + `" \* MERGEFORMAT '><w:r><w:rPr><w:b/></w:rPr><w:t>«field»</w:t></w:r></w:fldSimple>`
}

// complexField is a begin/separate/end merge field spread over five runs.
func complexField(name string) string {
	return `<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve"> MERGEFIELD "` + name + `" </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:rPr><w:i/></w:rPr><w:t>«field»</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`
}

// buildZip writes parts into a zip container, content types first.
func buildZip(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == ContentTypesPart || names[j] == ContentTypesPart {
			return names[i] == ContentTypesPart
		}
		return names[i] < names[j]
	})

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readZipPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(content)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

const contentTypesFixture = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="xlsx" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/charts/chart1.xml" ContentType="application/vnd.openxmlformats-officedocument.drawingml.chart+xml"/>` +
	`</Types>`

const packageRelsFixture = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + documentRelType + `" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsFixture = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId5" Type="` + chartRelType + `" Target="charts/chart1.xml"/>` +
	`</Relationships>`

const chartRelsFixture = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + packageRelType + `" Target="../embeddings/Microsoft_Excel_Worksheet.xlsx"/>` +
	`</Relationships>`

// chartFixture is a bar chart with a series name, categories in column A and
// values in column B of the embedded workbook.
const chartFixture = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<c:chartSpace xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
	`<c:chart><c:plotArea><c:barChart><c:ser><c:idx val="0"/>` +
	`<c:tx><c:strRef><c:f>Sheet1!$B$1</c:f><c:strCache><c:ptCount val="1"/><c:pt idx="0"><c:v>Sales</c:v></c:pt></c:strCache></c:strRef></c:tx>` +
	`<c:cat><c:strRef><c:f>Sheet1!$A$2:$A$3</c:f><c:strCache><c:ptCount val="2"/>` +
	`<c:pt idx="0"><c:v>x</c:v></c:pt><c:pt idx="1"><c:v>y</c:v></c:pt></c:strCache></c:strRef></c:cat>` +
	`<c:val><c:numRef><c:f>Sheet1!$B$2:$B$3</c:f><c:numCache><c:formatCode>General</c:formatCode><c:ptCount val="2"/>` +
	`<c:pt idx="0"><c:v>1</c:v></c:pt><c:pt idx="1"><c:v>2</c:v></c:pt></c:numCache></c:numRef></c:val>` +
	`</c:ser></c:barChart></c:plotArea></c:chart>` +
	`<c:externalData r:id="rId1"><c:autoUpdate val="0"/></c:externalData>` +
	`</c:chartSpace>`

// chartWorkbook builds a workbook whose first sheet has a header row, a loop
// coordinator row and an item row.
func chartWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]string{
		"A1": "Month",
		"B1": "Sales",
		"A2": "for p in r.points",
		"A3": "{{p.month}}",
		"B3": "{{p.sales}}",
	}
	for addr, value := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", addr, value))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// chartDrawing is a paragraph holding an inline chart with relationship id.
func chartDrawing(id string) string {
	return `<w:p><w:r><w:drawing><wp:inline><a:graphic>` +
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/chart">` +
		`<c:chart r:id="` + id + `"/></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`
}

// chartDocx builds a document with one chart per region inside a paragraph loop.
func chartDocx(t *testing.T) []byte {
	t.Helper()
	body := `<w:p>` + simpleField("@para {{for r in regions}}") + `</w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Region: </w:t></w:r>` + simpleField("r.name") + `</w:p>` +
		chartDrawing("rId5") +
		`<w:p>` + simpleField("@/para {{end}}") + `</w:p>`

	return buildZip(t, map[string]string{
		ContentTypesPart:                                 contentTypesFixture,
		"_rels/.rels":                                    packageRelsFixture,
		MainDocumentPart:                                 wordDocument(body),
		"word/_rels/document.xml.rels":                   documentRelsFixture,
		"word/charts/chart1.xml":                         chartFixture,
		"word/charts/_rels/chart1.xml.rels":              chartRelsFixture,
		"word/embeddings/Microsoft_Excel_Worksheet.xlsx": string(chartWorkbook(t)),
	})
}

func regionsData() TemplateData {
	return TemplateData{
		"regions": []map[string]interface{}{
			{
				"name": "North",
				"points": []map[string]interface{}{
					{"month": "Jan", "sales": 120},
					{"month": "Feb", "sales": 135},
					{"month": "Mar", "sales": 150},
				},
			},
			{
				"name": "South",
				"points": []map[string]interface{}{
					{"month": "Jan", "sales": 80},
					{"month": "Feb", "sales": 95},
				},
			},
		},
	}
}

// cacheValues returns the formula and point values of every reference in a chart.
func cacheValues(t *testing.T, chart string) map[string][]string {
	t.Helper()
	doc, err := dxml.Parse([]byte(chart))
	require.NoError(t, err)

	out := map[string][]string{}
	refs := dxml.Collect(doc.Root(), func(e *etree.Element) bool {
		return dxml.Is(e, dxml.TagStrRef) || dxml.Is(e, dxml.TagNumRef)
	})
	for _, ref := range refs {
		formula := ref.SelectElement(dxml.TagFormula).Text()
		var values []string
		for _, pt := range ref.FindElements(".//c:pt") {
			values = append(values, pt.SelectElement(dxml.TagValue).Text())
		}
		out[formula] = values
	}
	return out
}

func quietLogger() *Logger {
	return NewLogger(io.Discard, LogOff)
}

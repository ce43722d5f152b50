package xml

// WordprocessingML
const (
	TagBody        = "w:body"
	TagParagraph   = "w:p"
	TagRun         = "w:r"
	TagRunProps    = "w:rPr"
	TagText        = "w:t"
	TagTable       = "w:tbl"
	TagTableRow    = "w:tr"
	TagFieldSimple = "w:fldSimple"
	TagFieldChar   = "w:fldChar"
	TagInstrText   = "w:instrText"
	TagDrawing     = "w:drawing"

	AttrFieldCharType = "w:fldCharType"
	AttrInstr         = "w:instr"
)

// DrawingML charts
const (
	TagChartRef     = "c:chart"
	TagExternalData = "c:externalData"
	TagStrRef       = "c:strRef"
	TagNumRef       = "c:numRef"
	TagFormula      = "c:f"
	TagStrCache     = "c:strCache"
	TagNumCache     = "c:numCache"
	TagPointCount   = "c:ptCount"
	TagPoint        = "c:pt"
	TagValue        = "c:v"

	AttrRelID = "r:id"
)

// SpreadsheetML, default namespace
const (
	TagSheetData  = "sheetData"
	TagDimension  = "dimension"
	TagRow        = "row"
	TagCell       = "c"
	TagCellValue  = "v"
	TagInlineStr  = "is"
	TagInlineText = "t"
	TagSharedItem = "si"
	TagRichRun    = "r"
	TagTablePart  = "table"
	TagAutoFilter = "autoFilter"
)

// Chart namespace URI, used when a part binds the chart prefix to something other than "c".
const ChartNamespace = "http://schemas.openxmlformats.org/drawingml/2006/chart"

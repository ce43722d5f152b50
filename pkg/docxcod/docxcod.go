package docxcod

import (
	"bytes"
	"io"
	"sync"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

// TemplateData represents the data context for rendering templates.
// It's a map of key-value pairs where values can be strings, numbers,
// booleans, slices, maps, or any other type that can be accessed
// in template expressions.
//
// Example:
//
//	data := TemplateData{
//	    "title": "Quarterly report",
//	    "regions": []map[string]interface{}{
//	        {"name": "North", "points": []map[string]interface{}{{"month": "Jan", "sales": 120}}},
//	        {"name": "South", "points": []map[string]interface{}{{"month": "Jan", "sales": 80}}},
//	    },
//	}
type TemplateData map[string]interface{}

// PreparedTemplate represents a compiled template ready for rendering.
// Use Prepare() or PrepareFile() to create an instance.
//
// Preparation runs every data-independent pass once. Rendering never
// modifies a PreparedTemplate, so one value may be rendered from several
// goroutines at the same time.
type PreparedTemplate struct {
	pkg      *Package
	template *Template
	config   *Config
	registry FunctionRegistry

	directives []string
	report     PlacementReport
	relocated  int
	charts     int

	closed bool
	mu     sync.Mutex
}

// prepare is the internal implementation of template preparation
func prepare(r io.Reader, config *Config, registry FunctionRegistry) (*PreparedTemplate, error) {
	if config == nil {
		config = GetGlobalConfig()
	}
	if registry == nil {
		registry = NewFunctionRegistry()
	}

	pkg, err := ReadPackage(r)
	if err != nil {
		return nil, err
	}

	doc, err := pkg.XMLPart(MainDocumentPart)
	if err != nil {
		return nil, err
	}
	logger := GetLogger().WithField("part", MainDocumentPart)

	directives := ScanDirectives(doc)
	texts := make([]string, len(directives))
	for i, d := range directives {
		texts[i] = d.Text
	}

	report := PlaceMergeFields(directives, logger)
	relocated := RelocateDirectives(doc, logger)
	charts := PlanChartDuplication(doc, logger)

	content, err := dxml.Serialize(doc)
	if err != nil {
		return nil, NewDocumentError("write", MainDocumentPart, err)
	}
	flat := UnwrapPlaceholders(content)
	logger.DebugPart(MainDocumentPart, flat)

	tmpl, err := ParseTemplate(string(flat))
	if err != nil {
		return nil, WithContext(err, "parse template", map[string]interface{}{"part": MainDocumentPart})
	}
	pkg.SetPart(MainDocumentPart, flat)

	logger.WithFields(Fields{
		"directives": len(directives),
		"placed":     report.Placed,
		"skipped":    report.Skipped,
		"relocated":  relocated,
		"charts":     charts,
	}).Info("Template prepared")

	return &PreparedTemplate{
		pkg:        pkg,
		template:   tmpl,
		config:     config,
		registry:   registry,
		directives: texts,
		report:     report,
		relocated:  relocated,
		charts:     charts,
	}, nil
}

// Render executes the template with the given data and returns a reader
// containing the rendered DOCX file.
//
// Each chart inside a loop is cloned once per iteration together with its
// embedded workbook, which is rendered with the bindings of that iteration.
// A chart that cannot be cloned keeps pointing at the original, unless the
// configuration enables StrictMode.
func (pt *PreparedTemplate) Render(data TemplateData) (io.Reader, error) {
	var buf bytes.Buffer
	if err := pt.RenderTo(&buf, data); err != nil {
		return nil, err
	}
	return &buf, nil
}

// RenderTo renders the template like Render and writes the DOCX file to w.
func (pt *PreparedTemplate) RenderTo(w io.Writer, data TemplateData) error {
	if pt == nil || pt.template == nil {
		return NewDocumentError("render", "", errInvalidTemplate)
	}
	pt.mu.Lock()
	closed := pt.closed
	pt.mu.Unlock()
	if closed {
		return NewDocumentError("render", "", errTemplateClosed)
	}

	out := pt.pkg.Clone()
	session := newRenderSession(out, pt.config, pt.registry)

	err := out.Apply(data, TemplateRunner{
		Parts:     []string{MainDocumentPart},
		Templates: map[string]*Template{MainDocumentPart: pt.template},
		Options: []RenderOption{
			WithFunctions(pt.registry),
			WithChartDispatcher(session),
			WithRenderLogger(session.logger),
		},
	})
	if err != nil {
		return err
	}

	_, err = out.WriteTo(w)
	return err
}

// Directives returns the merge-field directives found in the main document.
func (pt *PreparedTemplate) Directives() []string {
	return append([]string(nil), pt.directives...)
}

// Report summarizes merge-field placement. Warnings lists every field left
// untouched because of a malformed encoding.
func (pt *PreparedTemplate) Report() PlacementReport {
	return pt.report
}

// Charts returns the number of chart references planned for duplication.
func (pt *PreparedTemplate) Charts() int {
	return pt.charts
}

// Close releases the template. A closed template can no longer be rendered.
func (pt *PreparedTemplate) Close() error {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.closed = true
	return nil
}

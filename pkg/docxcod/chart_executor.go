package docxcod

import (
	"bytes"
	"path"
	"strings"

	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

const (
	// chartCloneExtension marks cloned chart parts so they can share one
	// Default content-type entry.
	chartCloneExtension = "docxcod_chart_xml"
	chartContentType    = "application/vnd.openxmlformats-officedocument.drawingml.chart+xml"
	sharedStringsPart   = "xl/sharedStrings.xml"
)

// chartExecutor clones charts referenced from one part of a package, together
// with their embedded workbooks.
type chartExecutor struct {
	pkg          *Package
	documentPart string
	config       *Config
	functions    FunctionRegistry
	logger       *Logger

	contentTypeRegistered bool
}

func newChartExecutor(pkg *Package, documentPart string, config *Config, functions FunctionRegistry, logger *Logger) *chartExecutor {
	if config == nil {
		config = DefaultConfig()
	}
	if functions == nil {
		functions = GetDefaultFunctionRegistry()
	}
	return &chartExecutor{
		pkg:          pkg,
		documentPart: documentPart,
		config:       config,
		functions:    functions,
		logger:       logger,
	}
}

// chartClonePath derives the part name of a clone,
// e.g. "word/charts/chart1.xml" -> "word/charts/chart1_0.docxcod_chart_xml".
func chartClonePath(chartPart, uid string) string {
	return strings.TrimSuffix(chartPart, ".xml") + "_" + uid + "." + chartCloneExtension
}

// workbookClonePath suffixes the base name of an embedded workbook,
// e.g. "word/embeddings/data.xlsx" -> "word/embeddings/data_0.xlsx".
func workbookClonePath(part, uid string) string {
	dir, file := path.Split(part)
	ext := path.Ext(file)
	return dir + strings.TrimSuffix(file, ext) + "_" + uid + ext
}

// stagedWrites collects the parts a duplication produces. Nothing reaches the
// package until commit.
type stagedWrites struct {
	parts map[string][]byte
	order []string
}

func (s *stagedWrites) set(name string, content []byte) {
	if s.parts == nil {
		s.parts = make(map[string][]byte)
	}
	if _, ok := s.parts[name]; !ok {
		s.order = append(s.order, name)
	}
	s.parts[name] = content
}

func (s *stagedWrites) setRelationships(graph *RelationshipGraph) error {
	content, err := graph.Marshal()
	if err != nil {
		return NewDocumentError("write", RelationshipsPath(graph.Source), err)
	}
	s.set(RelationshipsPath(graph.Source), content)
	return nil
}

func (s *stagedWrites) commit(pkg *Package) {
	for _, name := range s.order {
		pkg.SetPart(name, s.parts[name])
	}
}

// Duplicate clones the chart behind originalID, re-renders its embedded
// workbook against env and refreshes the clone's cached series. It returns
// the relationship id of the clone. On error the package is unchanged.
func (x *chartExecutor) Duplicate(originalID, uid string, env Environment) (string, error) {
	newID := CloneRelationshipID(originalID, uid)
	logger := x.logger.WithFields(Fields{
		"original_id": originalID,
		"clone_id":    newID,
	})

	docRels, err := x.pkg.Relationships(x.documentPart)
	if err != nil {
		return "", err
	}
	rel, ok := docRels.Lookup(originalID)
	if !ok {
		return "", NewUnsupportedDocumentError(RelationshipsPath(x.documentPart), "no relationship %q", originalID)
	}
	if rel.IsExternal() {
		return "", NewUnsupportedDocumentError(RelationshipsPath(x.documentPart), "relationship %q targets an external chart", originalID)
	}

	chartPart := rel.TargetPart()
	clonePart := chartClonePath(chartPart, uid)
	logger = logger.WithField("part", chartPart)

	chartDoc, err := x.pkg.XMLPart(chartPart)
	if err != nil {
		return "", err
	}
	chartRels, err := x.pkg.Relationships(chartPart)
	if err != nil {
		return "", err
	}
	cloneRels := chartRels.Retarget(clonePart)

	var staged stagedWrites

	if external := findExternalData(chartDoc); external != nil {
		workbook, err := x.duplicateWorkbook(chartDoc, external, chartRels, cloneRels, uid, env, &staged)
		if err != nil {
			return "", WithContext(err, "duplicate workbook", map[string]interface{}{
				"part":     chartPart,
				"workbook": workbook,
			})
		}
		logger = logger.WithField("workbook", workbook)
	}

	content, err := dxml.Serialize(chartDoc)
	if err != nil {
		return "", NewDocumentError("write", clonePart, err)
	}
	staged.set(clonePart, content)
	if len(cloneRels.Entries()) > 0 {
		if err := staged.setRelationships(cloneRels); err != nil {
			return "", err
		}
	}

	if _, err := docRels.Add(Relationship{
		ID:     newID,
		Type:   rel.Type,
		Target: RelativeTarget(path.Dir(x.documentPart), clonePart),
	}); err != nil {
		return "", NewUnsupportedDocumentError(RelationshipsPath(x.documentPart), "%v", err)
	}
	if err := staged.setRelationships(docRels); err != nil {
		return "", err
	}

	registered := false
	if !x.contentTypeRegistered {
		ct, err := x.pkg.ContentTypes()
		if err != nil {
			return "", err
		}
		if ct.AddDefault(chartCloneExtension, chartContentType) {
			content, err := ct.Marshal()
			if err != nil {
				return "", NewDocumentError("write", ContentTypesPart, err)
			}
			staged.set(ContentTypesPart, content)
		}
		registered = true
	}

	staged.commit(x.pkg)
	if registered {
		x.contentTypeRegistered = true
	}

	logger.WithField("clone", clonePart).Debug("Chart duplicated")
	return newID, nil
}

// duplicateWorkbook copies the workbook behind a chart's externalData,
// renders the copy and updates the chart's caches from its cells. cloneRels is
// repointed at the copy. It returns the original workbook part for diagnostics.
func (x *chartExecutor) duplicateWorkbook(chartDoc *etree.Document, external *etree.Element, chartRels, cloneRels *RelationshipGraph, uid string, env Environment, staged *stagedWrites) (string, error) {
	extID := external.SelectAttrValue(dxml.AttrRelID, "")
	extRel, ok := chartRels.Lookup(extID)
	if !ok || extRel.IsExternal() {
		return "", NewUnsupportedDocumentError(RelationshipsPath(chartRels.Source), "externalData target %q is not in the package", extID)
	}

	workbook := extRel.TargetPart()
	content, err := x.pkg.Part(workbook)
	if err != nil {
		return workbook, err
	}

	rendered, ledger, err := x.runSpreadsheetPipeline(content, env)
	if err != nil {
		return workbook, err
	}
	if err := UpdateChartCaches(chartDoc, ledger); err != nil {
		return workbook, err
	}

	workbookClone := workbookClonePath(workbook, uid)
	staged.set(workbookClone, rendered)

	cloneExt, _ := cloneRels.Lookup(extID)
	cloneExt.Target = RelativeTarget(path.Dir(cloneRels.Source), workbookClone)
	return workbook, nil
}

// runSpreadsheetPipeline expands the loop of a workbook's first worksheet with
// the bindings of env and returns the new workbook with its cell ledger.
func (x *chartExecutor) runSpreadsheetPipeline(xlsx []byte, env Environment) ([]byte, CellLedger, error) {
	book, err := ReadPackage(bytes.NewReader(xlsx))
	if err != nil {
		return nil, nil, err
	}

	sheetPart, err := firstWorksheet(book)
	if err != nil {
		return nil, nil, err
	}
	sheetDoc, err := book.XMLPart(sheetPart)
	if err != nil {
		return nil, nil, err
	}

	var sst []string
	if book.HasPart(sharedStringsPart) {
		sstDoc, err := book.XMLPart(sharedStringsPart)
		if err != nil {
			return nil, nil, err
		}
		sst = ReadSharedStrings(sstDoc)
	}

	desc, err := CompileSheetLoop(sheetDoc, sst, x.config.DefaultPadStyle)
	if err != nil {
		return nil, nil, WithContext(err, "compile sheet loop", map[string]interface{}{"part": sheetPart})
	}
	if err := book.SetXMLPart(sheetPart, sheetDoc); err != nil {
		return nil, nil, err
	}
	x.logger.WithFields(Fields{
		"part":  sheetPart,
		"loop":  desc.Source,
		"cells": len(desc.Items),
	}).Debug("Sheet loop compiled")

	err = book.Apply(env.Data(),
		Unwrapper{Parts: []string{sheetPart}},
		TemplateRunner{
			Parts: []string{sheetPart},
			Options: []RenderOption{
				WithFunctions(x.functions),
				WithProvider(newSheetRowFunctions(desc.FirstRow, x.config.MaxLoopRows)),
				WithRenderLogger(x.logger),
			},
		},
	)
	if err != nil {
		return nil, nil, err
	}
	if x.logger.IsDebugMode() {
		if content, err := book.Part(sheetPart); err == nil {
			x.logger.DebugPart(sheetPart, content)
		}
	}

	expanded, err := book.Bytes()
	if err != nil {
		return nil, nil, err
	}
	ledger, rangeRef, err := CollectCells(expanded)
	if err != nil {
		return nil, nil, err
	}
	if err := UpdateTableRanges(book, rangeRef); err != nil {
		return nil, nil, err
	}

	out, err := book.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return out, ledger, nil
}

func findExternalData(chart *etree.Document) *etree.Element {
	found := dxml.Collect(chart.Root(), func(e *etree.Element) bool {
		return dxml.Is(e, dxml.TagExternalData)
	})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

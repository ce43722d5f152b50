package docxcod

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/beevik/etree"

	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

const (
	MainDocumentPart = "word/document.xml"
	ContentTypesPart = "[Content_Types].xml"
)

// Processor is one pass over a package. Passes read and overwrite parts in place.
type Processor interface {
	Process(pkg *Package, env TemplateData) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(pkg *Package, env TemplateData) error

func (f ProcessorFunc) Process(pkg *Package, env TemplateData) error {
	return f(pkg, env)
}

// Package is an OPC container held in memory. Part order is preserved so a
// saved package lists its entries the way the source did.
type Package struct {
	parts map[string][]byte
	order []string
}

// NewPackage creates an empty package.
func NewPackage() *Package {
	return &Package{parts: make(map[string][]byte)}
}

// OpenPackage reads every part of a zip container.
func OpenPackage(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, NewDocumentError("open", "package", fmt.Errorf("failed to read zip file: %w", err))
	}

	pkg := NewPackage()
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, NewDocumentError("open", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, NewDocumentError("read", file.Name, err)
		}
		pkg.SetPart(file.Name, content)
	}
	return pkg, nil
}

// ReadPackage buffers r and opens it as a package.
func ReadPackage(r io.Reader) (*Package, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, NewDocumentError("read", "package", err)
	}
	data := buf.Bytes()
	return OpenPackage(bytes.NewReader(data), int64(len(data)))
}

// OpenPackageFile opens a package from a file path.
func OpenPackageFile(path string) (*Package, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, NewDocumentError("read", path, err)
	}
	return OpenPackage(bytes.NewReader(content), int64(len(content)))
}

func normalizePartName(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Part returns the content of a part.
func (p *Package) Part(name string) ([]byte, error) {
	content, ok := p.parts[normalizePartName(name)]
	if !ok {
		return nil, NewDocumentError("read", name, fmt.Errorf("part not found"))
	}
	return content, nil
}

// HasPart reports whether the package contains name.
func (p *Package) HasPart(name string) bool {
	_, ok := p.parts[normalizePartName(name)]
	return ok
}

// SetPart creates or replaces a part.
func (p *Package) SetPart(name string, content []byte) {
	name = normalizePartName(name)
	if _, exists := p.parts[name]; !exists {
		p.order = append(p.order, name)
	}
	p.parts[name] = content
}

// RemovePart deletes a part if present.
func (p *Package) RemovePart(name string) {
	name = normalizePartName(name)
	if _, exists := p.parts[name]; !exists {
		return
	}
	delete(p.parts, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// ListParts returns part names starting with prefix, in package order.
func (p *Package) ListParts(prefix string) []string {
	var names []string
	for _, name := range p.order {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}

// XMLPart parses a part into a DOM.
func (p *Package) XMLPart(name string) (*etree.Document, error) {
	content, err := p.Part(name)
	if err != nil {
		return nil, err
	}
	doc, err := dxml.Parse(content)
	if err != nil {
		return nil, NewDocumentError("parse", name, err)
	}
	return doc, nil
}

// SetXMLPart serializes doc into a part.
func (p *Package) SetXMLPart(name string, doc *etree.Document) error {
	content, err := dxml.Serialize(doc)
	if err != nil {
		return NewDocumentError("write", name, err)
	}
	p.SetPart(name, content)
	return nil
}

// Relationships loads the relationship file belonging to part. A missing file
// yields an empty graph.
func (p *Package) Relationships(part string) (*RelationshipGraph, error) {
	relsPath := RelationshipsPath(part)
	content, ok := p.parts[relsPath]
	if !ok {
		return NewRelationshipGraph(part), nil
	}
	graph, err := ParseRelationships(part, content)
	if err != nil {
		return nil, NewDocumentError("parse", relsPath, err)
	}
	return graph, nil
}

// SetRelationships writes graph back to the relationship file of its source part.
func (p *Package) SetRelationships(graph *RelationshipGraph) error {
	content, err := graph.Marshal()
	if err != nil {
		return NewDocumentError("write", RelationshipsPath(graph.Source), err)
	}
	p.SetPart(RelationshipsPath(graph.Source), content)
	return nil
}

// ContentTypes loads the content-type registry.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	content, err := p.Part(ContentTypesPart)
	if err != nil {
		return nil, err
	}
	ct, err := ParseContentTypes(content)
	if err != nil {
		return nil, NewDocumentError("parse", ContentTypesPart, err)
	}
	return ct, nil
}

// SetContentTypes writes the content-type registry.
func (p *Package) SetContentTypes(ct *ContentTypes) error {
	content, err := ct.Marshal()
	if err != nil {
		return NewDocumentError("write", ContentTypesPart, err)
	}
	p.SetPart(ContentTypesPart, content)
	return nil
}

// Clone returns a deep copy that can be modified independently.
func (p *Package) Clone() *Package {
	clone := &Package{
		parts: make(map[string][]byte, len(p.parts)),
		order: append([]string(nil), p.order...),
	}
	for name, content := range p.parts {
		clone.parts[name] = append([]byte(nil), content...)
	}
	return clone
}

// Apply runs processors in order against the package. The first failing
// processor stops the pipeline.
func (p *Package) Apply(env TemplateData, processors ...Processor) error {
	for _, proc := range processors {
		if err := proc.Process(p, env); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo saves the package as a zip container. The content-type registry is
// written first.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	names := append([]string(nil), p.order...)
	sort.SliceStable(names, func(i, j int) bool {
		return names[i] == ContentTypesPart && names[j] != ContentTypesPart
	})

	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return cw.n, NewDocumentError("write", name, err)
		}
		if _, err := fw.Write(p.parts[name]); err != nil {
			return cw.n, NewDocumentError("write", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, NewDocumentError("write", "package", err)
	}
	return cw.n, nil
}

// Bytes saves the package into memory.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)
	return n, err
}

package docxcod

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

const (
	relationshipsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"
	packageRelationships   = "_rels/.rels"
	externalTargetMode     = "External"
)

// Relationship is one entry of a relationship file. Entries loaded through
// LoadRelationshipTree also know their parent and children.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`

	// Source is the part whose relationship file holds this entry.
	Source   string          `xml:"-"`
	Children []*Relationship `xml:"-"`
	parent   *Relationship
}

// Parent returns the entry whose target owns this entry's relationship file.
func (r *Relationship) Parent() *Relationship {
	return r.parent
}

// IsExternal reports whether the target lies outside the package.
func (r *Relationship) IsExternal() bool {
	return r.TargetMode == externalTargetMode
}

// TargetPart resolves Target against the directory of Source.
func (r *Relationship) TargetPart() string {
	return ResolvePartPath(path.Dir(r.Source), r.Target)
}

func (r *Relationship) String() string {
	kind := r.Type
	if i := strings.LastIndex(kind, "/"); i >= 0 {
		kind = kind[i+1:]
	}
	if r.ID == "" {
		return fmt.Sprintf("(root) %s", r.Target)
	}
	return fmt.Sprintf("%s -> %s [%s]", r.ID, r.Target, kind)
}

// Summary renders the subtree rooted at r, one entry per line.
func (r *Relationship) Summary() string {
	var sb strings.Builder
	var walk func(rel *Relationship, depth int)
	walk = func(rel *Relationship, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(rel.String())
		sb.WriteString("\n")
		for _, child := range rel.Children {
			walk(child, depth+1)
		}
	}
	walk(r, 0)
	return sb.String()
}

type relationshipsXML struct {
	XMLName      xml.Name        `xml:"Relationships"`
	Namespace    string          `xml:"xmlns,attr"`
	Relationship []*Relationship `xml:"Relationship"`
}

// RelationshipGraph holds the entries of one relationship file. Ids are unique.
type RelationshipGraph struct {
	Source  string
	entries []*Relationship
	byID    map[string]*Relationship
}

// NewRelationshipGraph creates an empty graph for the relationship file of source.
func NewRelationshipGraph(source string) *RelationshipGraph {
	return &RelationshipGraph{
		Source: source,
		byID:   make(map[string]*Relationship),
	}
}

// ParseRelationships decodes the relationship file belonging to source.
func ParseRelationships(source string, data []byte) (*RelationshipGraph, error) {
	var rels relationshipsXML
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}

	graph := NewRelationshipGraph(source)
	for _, rel := range rels.Relationship {
		if _, err := graph.Add(*rel); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

// Lookup finds an entry by id.
func (g *RelationshipGraph) Lookup(id string) (*Relationship, bool) {
	rel, ok := g.byID[id]
	return rel, ok
}

// Entries returns the entries in file order.
func (g *RelationshipGraph) Entries() []*Relationship {
	return g.entries
}

// Add appends an entry. Adding an id that is already present is an error.
func (g *RelationshipGraph) Add(rel Relationship) (*Relationship, error) {
	if rel.ID == "" {
		return nil, fmt.Errorf("relationship id cannot be empty")
	}
	if _, exists := g.byID[rel.ID]; exists {
		return nil, fmt.Errorf("duplicate relationship id %q in %s", rel.ID, RelationshipsPath(g.Source))
	}
	entry := &Relationship{
		ID:         rel.ID,
		Type:       rel.Type,
		Target:     rel.Target,
		TargetMode: rel.TargetMode,
		Source:     g.Source,
	}
	g.entries = append(g.entries, entry)
	g.byID[entry.ID] = entry
	return entry, nil
}

// Retarget returns a copy of the graph owned by a different source part.
func (g *RelationshipGraph) Retarget(source string) *RelationshipGraph {
	clone := NewRelationshipGraph(source)
	for _, rel := range g.entries {
		clone.Add(*rel)
	}
	return clone
}

// Marshal encodes the graph as a relationship file.
func (g *RelationshipGraph) Marshal() ([]byte, error) {
	out, err := xml.Marshal(relationshipsXML{
		Namespace:    relationshipsNamespace,
		Relationship: g.entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relationships: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// CloneRelationshipID names the relationship of a duplicated part.
func CloneRelationshipID(original, uid string) string {
	return original + "_" + uid
}

// RelationshipsPath maps a part to its relationship file,
// e.g. "word/document.xml" -> "word/_rels/document.xml.rels".
func RelationshipsPath(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}

// ResolvePartPath resolves a relationship target against the directory of the
// owning part. Absolute targets are package-rooted.
func ResolvePartPath(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return normalizePartName(target)
	}
	if baseDir == "." {
		baseDir = ""
	}
	return normalizePartName(path.Join(baseDir, target))
}

// RelativeTarget expresses part relative to dir, as relationship targets are written.
func RelativeTarget(dir, part string) string {
	from := splitPath(dir)
	to := splitPath(part)

	common := 0
	for common < len(from) && common < len(to)-1 && from[common] == to[common] {
		common++
	}

	var segments []string
	for range from[common:] {
		segments = append(segments, "..")
	}
	segments = append(segments, to[common:]...)
	return strings.Join(segments, "/")
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// LoadRelationshipTree links every relationship file reachable from the package
// relationships into one tree under a synthetic root.
func LoadRelationshipTree(pkg *Package) (*Relationship, error) {
	root := &Relationship{Target: "/"}
	visited := map[string]bool{}

	var attach func(parent *Relationship, source string) error
	attach = func(parent *Relationship, source string) error {
		relsPath := packageRelationships
		if source != "" {
			relsPath = RelationshipsPath(source)
		}
		if visited[relsPath] || !pkg.HasPart(relsPath) {
			return nil
		}
		visited[relsPath] = true

		content, err := pkg.Part(relsPath)
		if err != nil {
			return err
		}
		graph, err := ParseRelationships(source, content)
		if err != nil {
			return NewDocumentError("parse", relsPath, err)
		}

		for _, rel := range graph.Entries() {
			rel.parent = parent
			parent.Children = append(parent.Children, rel)
			if rel.IsExternal() {
				continue
			}
			if err := attach(rel, rel.TargetPart()); err != nil {
				return err
			}
		}
		return nil
	}

	if err := attach(root, ""); err != nil {
		return nil, err
	}
	return root, nil
}

package xml

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treeFixture = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>A</w:t></w:r></w:p></w:tc></w:tr>` +
	`<w:tr><w:tc><w:p><w:r><w:t>B</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
	`<w:p>  <w:r><w:t>C</w:t></w:r></w:p></w:body></w:document>`

func TestAncestorAndSiblings(t *testing.T) {
	doc, err := Parse([]byte(treeFixture))
	require.NoError(t, err)

	texts := Collect(doc.Root(), func(e *etree.Element) bool { return Is(e, TagText) })
	require.Len(t, texts, 3)

	row := Ancestor(texts[0], TagTableRow)
	require.NotNil(t, row)
	next := NextSiblingElement(row)
	require.NotNil(t, next)
	assert.True(t, Is(next, TagTableRow))
	assert.Nil(t, NextSiblingElement(next))

	assert.Nil(t, Ancestor(texts[2], TagTableRow))
	assert.True(t, Is(Ancestor(texts[2], TagParagraph), TagParagraph))
	assert.True(t, Is(Grandparent(texts[2]), TagParagraph))
}

func TestInsertAndRemove(t *testing.T) {
	doc, err := Parse([]byte(treeFixture))
	require.NoError(t, err)

	rows := Collect(doc.Root(), func(e *etree.Element) bool { return Is(e, TagTableRow) })
	require.Len(t, rows, 2)

	InsertBefore(rows[0], NewPlaceholder("before"))
	InsertAfter(rows[1], NewPlaceholder("after"))

	tbl := rows[0].Parent()
	children := tbl.ChildElements()
	require.Len(t, children, 4)
	p, ok := AsPlaceholder(children[0])
	require.True(t, ok)
	assert.Equal(t, "before", p.Payload)
	p, ok = AsPlaceholder(children[3])
	require.True(t, ok)
	assert.Equal(t, "after", p.Payload)

	Remove(rows[0])
	assert.Len(t, tbl.ChildElements(), 3)
	assert.Nil(t, rows[0].Parent())
}

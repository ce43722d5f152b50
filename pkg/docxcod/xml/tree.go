package xml

import "github.com/beevik/etree"

// Ancestor returns the nearest proper ancestor of tok with the given tag.
func Ancestor(tok etree.Token, tag string) *etree.Element {
	if tok == nil {
		return nil
	}
	for p := tok.Parent(); p != nil; p = p.Parent() {
		if Is(p, tag) {
			return p
		}
	}
	return nil
}

// Grandparent returns the parent of tok's parent, or nil.
func Grandparent(tok etree.Token) *etree.Element {
	if tok == nil || tok.Parent() == nil {
		return nil
	}
	return tok.Parent().Parent()
}

// NextSiblingElement returns the first element after e under the same parent,
// skipping character data and comments.
func NextSiblingElement(e *etree.Element) *etree.Element {
	parent := e.Parent()
	if parent == nil {
		return nil
	}
	for i := e.Index() + 1; i < len(parent.Child); i++ {
		if el, ok := parent.Child[i].(*etree.Element); ok {
			return el
		}
	}
	return nil
}

// FollowingSiblings returns the elements after e under the same parent.
func FollowingSiblings(e *etree.Element) []*etree.Element {
	parent := e.Parent()
	if parent == nil {
		return nil
	}
	var out []*etree.Element
	for i := e.Index() + 1; i < len(parent.Child); i++ {
		if el, ok := parent.Child[i].(*etree.Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// InsertBefore places tok immediately before ref. tok is detached from any
// previous parent first.
func InsertBefore(ref etree.Token, tok etree.Token) {
	parent := ref.Parent()
	if parent == nil {
		return
	}
	parent.InsertChildAt(ref.Index(), tok)
}

// InsertAfter places tok immediately after ref, or at the end of ref's parent
// when ref is its last child.
func InsertAfter(ref etree.Token, tok etree.Token) {
	parent := ref.Parent()
	if parent == nil {
		return
	}
	parent.InsertChildAt(ref.Index()+1, tok)
}

// Remove detaches tok from its parent.
func Remove(tok etree.Token) {
	if parent := tok.Parent(); parent != nil {
		parent.RemoveChildAt(tok.Index())
	}
}

// Walk visits every element below root in document order.
func Walk(root *etree.Element, visit func(e *etree.Element)) {
	if root == nil {
		return
	}
	for _, child := range root.ChildElements() {
		visit(child)
		Walk(child, visit)
	}
}

// Collect returns every element below root matching pred, in document order.
func Collect(root *etree.Element, pred func(e *etree.Element) bool) []*etree.Element {
	var out []*etree.Element
	Walk(root, func(e *etree.Element) {
		if pred(e) {
			out = append(out, e)
		}
	})
	return out
}

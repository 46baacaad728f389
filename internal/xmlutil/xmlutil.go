// Package xmlutil holds DOM helpers shared by the presentation parser, the
// hook registry and the pause expander.
package xmlutil

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"slidepress/internal/errs"
)

// Namespace is the URI of the authoring dialect. Elements in this namespace
// are normalized to the Prefix prefix on load.
const (
	Namespace = "https://github.com/johndoe31415/pyradium"
	Prefix    = "s"
)

// NewDocument returns a document that accepts HTML named entities.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.ReadSettings.Entity = xml.HTMLEntity
	doc.ReadSettings.PreserveCData = true
	return doc
}

// ParseFile reads an XML file.
func ParseFile(path string) (*etree.Document, error) {
	doc := NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errs.Wrap(errs.KindMalformedXML, err, "failed to parse XML").WithFile(path)
	}
	if doc.Root() == nil {
		return nil, errs.New(errs.KindMalformedXML, "document has no root element").WithFile(path)
	}
	return doc, nil
}

// ParseFragment parses data that may hold several top-level nodes and
// returns them detached from any parent. Authoring-namespace prefixes in the
// fragment are normalized.
func ParseFragment(data string) ([]etree.Token, error) {
	doc := NewDocument()
	wrapped := `<fragment xmlns:s="` + Namespace + `">` + data + `</fragment>`
	if err := doc.ReadFromString(wrapped); err != nil {
		return nil, errs.Wrap(errs.KindMalformedXML, err, "invalid XML fragment")
	}
	root := doc.Root()
	NormalizeNamespace(root, Namespace, Prefix)

	tokens := append([]etree.Token(nil), root.Child...)
	for _, t := range tokens {
		root.RemoveChild(t)
	}
	return tokens, nil
}

// NormalizeNamespace rewrites every element and attribute bound to uri,
// under whatever prefix, to use prefix. Old declarations of uri are dropped
// and a single declaration is placed on root.
func NormalizeNamespace(root *etree.Element, uri, prefix string) {
	var elements []*etree.Element
	var attrs []*etree.Attr
	Walk(root, func(el *etree.Element) bool {
		if el.Space != "" && el.Space != "xmlns" && el.NamespaceURI() == uri {
			elements = append(elements, el)
		}
		for i := range el.Attr {
			a := &el.Attr[i]
			if a.Space != "" && a.Space != "xmlns" && a.NamespaceURI() == uri {
				attrs = append(attrs, a)
			}
		}
		return true
	})

	for _, el := range elements {
		el.Space = prefix
	}
	for _, a := range attrs {
		a.Space = prefix
	}

	Walk(root, func(el *etree.Element) bool {
		var stale []string
		for _, a := range el.Attr {
			if a.Space == "xmlns" && a.Value == uri {
				stale = append(stale, a.FullKey())
			}
		}
		for _, key := range stale {
			el.RemoveAttr(key)
		}
		return true
	})
	root.CreateAttr("xmlns:"+prefix, uri)
}

// IsHook reports whether el is in the authoring namespace.
func IsHook(el *etree.Element) bool {
	return el.Space == Prefix
}

// Walk visits el and its descendant elements in document order. visit
// returns false to skip the children of an element. The child list is
// snapshotted before descending, so visit may modify siblings.
func Walk(el *etree.Element, visit func(el *etree.Element) bool) {
	if !visit(el) {
		return
	}
	for _, child := range el.ChildElements() {
		Walk(child, visit)
	}
}

// InnerText concatenates all text and CDATA below el.
func InnerText(el *etree.Element) string {
	var b strings.Builder
	var collect func(e *etree.Element)
	collect = func(e *etree.Element) {
		for _, tok := range e.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				collect(t)
			}
		}
	}
	collect(el)
	return b.String()
}

// InnerXML serializes the children of el.
func InnerXML(el *etree.Element) string {
	var b strings.Builder
	var settings etree.WriteSettings
	for _, tok := range el.Child {
		tok.WriteTo(&b, &settings)
	}
	return b.String()
}

// ToString serializes el.
func ToString(el *etree.Element) string {
	var b strings.Builder
	var settings etree.WriteSettings
	el.WriteTo(&b, &settings)
	return b.String()
}

// ChildElement returns the first direct child of el with the given full tag.
func ChildElement(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.FullTag() == tag {
			return child
		}
	}
	return nil
}

// Replace puts tokens where el was. An empty list removes el.
func Replace(el *etree.Element, tokens []etree.Token) error {
	parent := el.Parent()
	if parent == nil {
		return fmt.Errorf("cannot replace root element <%s>", el.FullTag())
	}
	idx := el.Index()
	parent.RemoveChildAt(idx)
	for i, tok := range tokens {
		if p := tok.Parent(); p != nil {
			p.RemoveChild(tok)
		}
		parent.InsertChildAt(idx+i, tok)
	}
	return nil
}

// Remove detaches tok from its parent.
func Remove(tok etree.Token) {
	if p := tok.Parent(); p != nil {
		p.RemoveChild(tok)
	}
}

// RemoveWithFollowing removes tok and every sibling after it.
func RemoveWithFollowing(tok etree.Token) {
	parent := tok.Parent()
	if parent == nil {
		return
	}
	idx := tok.Index()
	for len(parent.Child) > idx {
		parent.RemoveChildAt(len(parent.Child) - 1)
	}
}

// MoveChildren moves all children of src to the end of dst.
func MoveChildren(dst, src *etree.Element) {
	children := append([]etree.Token(nil), src.Child...)
	for _, tok := range children {
		src.RemoveChild(tok)
		dst.AddChild(tok)
	}
}

// BoolAttr parses a boolean attribute. Accepted values are 1/on/true/yes and
// 0/off/false/no, case insensitive.
func BoolAttr(el *etree.Element, name string, def bool) (bool, error) {
	attr := el.SelectAttr(name)
	if attr == nil {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(attr.Value)) {
	case "1", "on", "true", "yes":
		return true, nil
	case "0", "off", "false", "no":
		return false, nil
	}
	return false, errs.Newf(errs.KindMalformedXML, "invalid boolean value %q for attribute %s of <%s>", attr.Value, name, el.FullTag())
}

// HasAttr reports whether el carries the attribute.
func HasAttr(el *etree.Element, name string) bool {
	return el.SelectAttr(name) != nil
}

// ToMap converts an element tree to nested maps. Elements without child
// elements become their inner text.
func ToMap(el *etree.Element) any {
	children := el.ChildElements()
	if len(children) == 0 {
		return InnerText(el)
	}
	out := make(map[string]any, len(children))
	for _, child := range children {
		out[child.Tag] = ToMap(child)
	}
	return out
}

// Dedent strips trailing and leading newlines, removes the whitespace prefix
// common to all non-blank lines and expands tabs to four columns.
func Dedent(text string) string {
	text = strings.Trim(text, "\n")
	lines := strings.Split(text, "\n")

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = ExpandTabs(strings.TrimPrefix(line, prefix), 4)
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

// ExpandTabs replaces tabs with spaces up to the next multiple of width.
func ExpandTabs(line string, width int) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		switch r {
		case '\t':
			n := width - col%width
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

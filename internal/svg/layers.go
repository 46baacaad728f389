package svg

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Layer is an Inkscape layer: a top-level-ish <g> with groupmode="layer".
type Layer struct {
	el *etree.Element
}

// ID returns the layer's id attribute.
func (l *Layer) ID() string {
	return l.el.SelectAttrValue("id", "")
}

// Label returns the full inkscape:label.
func (l *Layer) Label() string {
	return attrNS(l.el, "inkscape", "label")
}

// Tags returns the comma-separated tags that precede a ":" in the label.
// A label without ":" has no tags.
func (l *Layer) Tags() map[string]bool {
	tags := make(map[string]bool)
	prefix, _, ok := strings.Cut(l.Label(), ":")
	if !ok {
		return tags
	}
	for _, tag := range strings.Split(prefix, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags[tag] = true
		}
	}
	return tags
}

// Visible reports whether the layer is displayed.
func (l *Layer) Visible() bool {
	return StyleOf(l.el).Visible()
}

func (l *Layer) setDisplay(value string) {
	style := StyleOf(l.el)
	style.Set("display", value)
	style.ApplyTo(l.el)
}

// Show makes the layer visible.
func (l *Layer) Show() {
	l.setDisplay("inline")
}

// Hide makes the layer invisible.
func (l *Layer) Hide() {
	l.setDisplay("none")
}

// Document is a parsed SVG file.
type Document struct {
	doc *etree.Document
}

// ParseDocument parses SVG data.
func ParseDocument(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("SVG has no root element")
	}
	return &Document{doc: doc}, nil
}

// LoadDocument reads and parses an SVG file.
func LoadDocument(path string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to read SVG %s: %w", path, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("SVG %s has no root element", path)
	}
	return &Document{doc: doc}, nil
}

// Copy returns an independent deep copy.
func (d *Document) Copy() *Document {
	return &Document{doc: d.doc.Copy()}
}

// Root returns the <svg> element.
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Layers returns all layers in document order.
func (d *Document) Layers() []*Layer {
	var layers []*Layer
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			if child.Tag == "g" && attrNS(child, "inkscape", "groupmode") == "layer" {
				layers = append(layers, &Layer{el: child})
			}
			walk(child)
		}
	}
	walk(d.doc.Root())
	return layers
}

// Layer returns the layer with the given id.
func (d *Document) Layer(id string) (*Layer, bool) {
	for _, l := range d.Layers() {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// Bytes serializes the document.
func (d *Document) Bytes() ([]byte, error) {
	out, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SVG: %w", err)
	}
	return out, nil
}

// Size returns the width and height attributes of the root, in user units
// when they carry no unit or a px unit. ok is false if unknown.
func (d *Document) Size() (width, height float64, ok bool) {
	root := d.doc.Root()
	w, okW := parseLength(root.SelectAttrValue("width", ""))
	h, okH := parseLength(root.SelectAttrValue("height", ""))
	if okW && okH {
		return w, h, true
	}
	fields := strings.Fields(strings.ReplaceAll(root.SelectAttrValue("viewBox", ""), ",", " "))
	if len(fields) == 4 {
		w, okW = parseLength(fields[2])
		h, okH = parseLength(fields[3])
		if okW && okH {
			return w, h, true
		}
	}
	return 0, 0, false
}

func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	for _, unit := range []string{"px", "pt", "mm", "cm", "in"} {
		s = strings.TrimSuffix(s, unit)
	}
	var v float64
	if _, err := fmt.Sscanf(s, "%g", &v); err != nil {
		return 0, false
	}
	return v, true
}

// attrNS returns the value of a prefixed attribute, matching either the
// literal prefix or any prefix bound to the same namespace URI.
func attrNS(el *etree.Element, prefix, key string) string {
	uri := ""
	for _, ns := range namespaces {
		if ns[0] == prefix {
			uri = ns[1]
		}
	}
	for _, a := range el.Attr {
		if a.Key != key {
			continue
		}
		if a.Space == prefix || (uri != "" && a.NamespaceURI() == uri) {
			return a.Value
		}
	}
	return ""
}

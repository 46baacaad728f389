package svg

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

var namespaces = [][2]string{
	{"inkscape", "http://www.inkscape.org/namespaces/inkscape"},
	{"sodipodi", "http://sodipodi.sourceforge.net/DTD/sodipodi-0.dtd"},
	{"svg", "http://www.w3.org/2000/svg"},
	{"rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
	{"cc", "http://creativecommons.org/ns#"},
	{"dc", "http://purl.org/dc/elements/1.1/"},
}

// Writer builds an SVG document out of Inkscape layers holding paths and
// text spans. The canvas is sized to the drawn content on output.
type Writer struct {
	doc    *etree.Document
	root   *etree.Element
	defs   *etree.Element
	groups map[string]*etree.Element
	styled []styled
	uid    int
	bounds bbox
	// Margin is added around the content bounds when sizing the canvas.
	Margin float64
}

type styled struct {
	el    *etree.Element
	style *Style
}

type bbox struct {
	valid                  bool
	minX, minY, maxX, maxY float64
}

func (b *bbox) add(x, y float64) {
	if !b.valid {
		b.minX, b.maxX, b.minY, b.maxY = x, x, y, y
		b.valid = true
		return
	}
	b.minX = math.Min(b.minX, x)
	b.maxX = math.Max(b.maxX, x)
	b.minY = math.Min(b.minY, y)
	b.maxY = math.Max(b.maxY, y)
}

// NewWriter creates an empty SVG document
func NewWriter() *Writer {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("svg")
	root.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	for _, ns := range namespaces {
		root.CreateAttr("xmlns:"+ns[0], ns[1])
	}
	return &Writer{
		doc:    doc,
		root:   root,
		groups: make(map[string]*etree.Element),
		Margin: 2,
	}
}

func (w *Writer) genID() string {
	w.uid++
	return fmt.Sprintf("id%d", w.uid)
}

func (w *Writer) addDefinition(el *etree.Element) string {
	if w.defs == nil {
		w.defs = etree.NewElement("defs")
		w.root.InsertChildAt(0, w.defs)
	}
	id := w.genID()
	el.CreateAttr("id", id)
	w.defs.AddChild(el)
	return id
}

// Group returns the layer with the given label, creating it on first use.
func (w *Writer) Group(name string) *etree.Element {
	if g, ok := w.groups[name]; ok {
		return g
	}
	g := w.root.CreateElement("g")
	g.CreateAttr("id", "layer_"+name)
	g.CreateAttr("inkscape:groupmode", "layer")
	g.CreateAttr("inkscape:label", name)
	w.groups[name] = g
	return g
}

// NewPath starts a path at (x, y) inside the named layer.
func (w *Writer) NewPath(x, y float64, group string) *Path {
	el := w.Group(group).CreateElement("path")
	p := &Path{el: el, style: defaultPathStyle(), w: w}
	w.styled = append(w.styled, styled{el, p.style})
	p.MoveTo(x, y)
	return p
}

// NewTextSpan places text flowed into the rectangle (x, y, width, height).
func (w *Writer) NewTextSpan(x, y, width, height float64, text, group string) *Text {
	rect := etree.NewElement("rect")
	rect.CreateAttr("x", num(x))
	rect.CreateAttr("y", num(y))
	rect.CreateAttr("width", num(width))
	rect.CreateAttr("height", num(height))
	defID := w.addDefinition(rect)

	el := w.Group(group).CreateElement("text")
	el.CreateAttr("xml:space", "preserve")
	tspan := el.CreateElement("tspan")
	tspan.SetText(text)

	t := &Text{el: el, tspan: tspan, style: defaultTextStyle()}
	t.style.Set("shape-inside", fmt.Sprintf("url(#%s)", defID))
	w.styled = append(w.styled, styled{el, t.style})

	w.bounds.add(x, y)
	w.bounds.add(x+width, y+height)
	return t
}

// Document finalizes styles and canvas size and returns the document.
func (w *Writer) Document() *etree.Document {
	for _, s := range w.styled {
		s.style.ApplyTo(s.el)
	}
	if w.bounds.valid {
		minX := w.bounds.minX - w.Margin
		minY := w.bounds.minY - w.Margin
		width := w.bounds.maxX - w.bounds.minX + 2*w.Margin
		height := w.bounds.maxY - w.bounds.minY + 2*w.Margin
		w.root.CreateAttr("width", num(width))
		w.root.CreateAttr("height", num(height))
		w.root.CreateAttr("viewBox", strings.Join([]string{num(minX), num(minY), num(width), num(height)}, " "))
	}
	return w.doc
}

// String serializes the document.
func (w *Writer) String() (string, error) {
	doc := w.Document()
	doc.Indent(etree.NoIndent)
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("failed to serialize SVG: %w", err)
	}
	return out, nil
}

// Point is a position in user units.
type Point struct {
	X, Y float64
}

// Path accumulates SVG path commands while tracking the pen position.
type Path struct {
	el    *etree.Element
	style *Style
	w     *Writer
	cmds  []string
	pos   Point
}

// Pos returns the current pen position.
func (p *Path) Pos() Point {
	return p.pos
}

// Style returns the path style; changes apply on output.
func (p *Path) Style() *Style {
	return p.style
}

func (p *Path) append(cmd ...string) {
	p.cmds = append(p.cmds, cmd...)
	p.el.CreateAttr("d", strings.Join(p.cmds, " "))
	if p.w != nil {
		p.w.bounds.add(p.pos.X, p.pos.Y)
	}
}

// MoveTo moves the pen to an absolute position.
func (p *Path) MoveTo(x, y float64) *Path {
	p.pos = Point{x, y}
	p.append("M", num(x)+","+num(y))
	return p
}

// MoveRel moves the pen relative to its position.
func (p *Path) MoveRel(dx, dy float64) *Path {
	p.pos = Point{p.pos.X + dx, p.pos.Y + dy}
	p.append("m", num(dx)+","+num(dy))
	return p
}

// LineRel draws a line relative to the pen position.
func (p *Path) LineRel(dx, dy float64) *Path {
	p.pos = Point{p.pos.X + dx, p.pos.Y + dy}
	p.append("l", num(dx)+","+num(dy))
	return p
}

// HorizRel draws a horizontal line.
func (p *Path) HorizRel(dx float64) *Path {
	p.pos = Point{p.pos.X + dx, p.pos.Y}
	p.append("h", num(dx))
	return p
}

// VertRel draws a vertical line.
func (p *Path) VertRel(dy float64) *Path {
	p.pos = Point{p.pos.X, p.pos.Y + dy}
	p.append("v", num(dy))
	return p
}

// ReturnTo runs fn and moves the pen back to where it was before.
func (p *Path) ReturnTo(fn func()) {
	prev := p.pos
	fn()
	p.MoveTo(prev.X, prev.Y)
}

// Text is a flowed text element with a single tspan.
type Text struct {
	el    *etree.Element
	tspan *etree.Element
	style *Style
}

// Style returns the text style; changes apply on output.
func (t *Text) Style() *Style {
	return t.style
}

// Content returns the text.
func (t *Text) Content() string {
	return t.tspan.Text()
}

func num(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

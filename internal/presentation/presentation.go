// Package presentation parses authoring XML into a flat list of directives.
package presentation

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"slidepress/internal/errs"
	"slidepress/internal/filelookup"
	"slidepress/internal/pause"
	"slidepress/internal/xmlutil"
)

// Heading levels of the TOC directives.
const (
	LevelChapter    = 1
	LevelSection    = 2
	LevelSubsection = 3
)

var headingLevels = map[string]int{
	"chapter":    LevelChapter,
	"section":    LevelSection,
	"subsection": LevelSubsection,
}

// Directive is one top-level entry of a presentation: *Slide, *Heading,
// *AcronymRef or *Marker.
type Directive interface {
	directive()
}

// Slide is an authored slide.
type Slide struct {
	Type       string
	Vars       map[string]string
	Containers pause.Containers
	Element    *etree.Element
	Source     string
}

// Heading opens a chapter, section or subsection.
type Heading struct {
	Level int
	Text  string
}

// AcronymRef loads an acronym database.
type AcronymRef struct {
	Path string
}

// Marker names the position of the following slide.
type Marker struct {
	Name string
}

func (*Slide) directive()      {}
func (*Heading) directive()    {}
func (*AcronymRef) directive() {}
func (*Marker) directive()     {}

// Var returns an XML slide variable, or def.
func (s *Slide) Var(name, def string) string {
	if v, ok := s.Vars[name]; ok {
		return v
	}
	return def
}

// Presentation is a parsed presentation with its includes flattened.
type Presentation struct {
	Filename   string
	Meta       map[string]any
	Metadata   Metadata
	Directives []Directive
	Sources    []string
}

// Slides returns the slide directives.
func (p *Presentation) Slides() []*Slide {
	var out []*Slide
	for _, d := range p.Directives {
		if s, ok := d.(*Slide); ok {
			out = append(out, s)
		}
	}
	return out
}

// Loader parses presentation files.
type Loader struct {
	// Includes is searched after the directory of the including file.
	Includes *filelookup.Lookup

	// Injected is merged over the metadata of the top-level file.
	Injected map[string]any

	Warnf func(format string, args ...any)
}

// NewLoader creates a loader searching includes in dirs.
func NewLoader(dirs ...string) *Loader {
	return &Loader{Includes: filelookup.New(dirs...), Warnf: log.Printf}
}

// Load parses filename and every file it includes.
func (l *Loader) Load(filename string) (*Presentation, error) {
	if l.Includes == nil {
		l.Includes = filelookup.New()
	}
	if l.Warnf == nil {
		l.Warnf = log.Printf
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", filename, err)
	}

	p := &Presentation{Filename: abs, Meta: make(map[string]any)}
	if err := l.load(p, abs, nil); err != nil {
		return nil, err
	}
	for k, v := range l.Injected {
		p.Meta[k] = v
	}
	md, err := DecodeMetadata(p.Meta)
	if err != nil {
		return nil, errs.Wrap(errs.KindMalformedXML, err, "invalid metadata").WithFile(abs)
	}
	p.Metadata = md
	if md.Variables != nil {
		p.Meta["variables"] = md.Variables
	}
	return p, nil
}

// lookup resolves name relative to the including file, then in the include
// directories.
func (l *Loader) lookup(from, name string) (string, error) {
	return filelookup.New(filepath.Dir(from)).Append(l.Includes.Dirs()...).Find(name)
}

func (l *Loader) load(p *Presentation, filename string, stack []string) error {
	for _, seen := range stack {
		if seen == filename {
			return errs.Newf(errs.KindCyclicInclude, "cyclic include: %s", strings.Join(append(stack, filename), " -> ")).WithFile(filename)
		}
	}
	stack = append(stack, filename)

	root, err := parseRoot(filename)
	if err != nil {
		return err
	}
	p.Sources = append(p.Sources, filename)

	for _, child := range root.ChildElements() {
		if xmlutil.IsHook(child) {
			l.Warnf("Warning: Ignored unknown tag '%s' in %s.", child.FullTag(), filename)
			continue
		}
		switch child.Tag {
		case "meta":
			if len(stack) > 1 {
				continue
			}
			if m, ok := xmlutil.ToMap(child).(map[string]any); ok {
				for k, v := range m {
					p.Meta[k] = v
				}
			}
		case "slide":
			hidden, err := xmlutil.BoolAttr(child, "hide", false)
			if err != nil {
				return errs.Wrap(errs.KindMalformedXML, err, "invalid slide").WithFile(filename)
			}
			if !hidden {
				p.Directives = append(p.Directives, NewSlide(child, filename))
			}
		case "include":
			src := child.SelectAttrValue("src", "")
			if src == "" {
				return errs.New(errs.KindMalformedXML, "<include> needs a 'src' attribute").WithFile(filename)
			}
			path, err := l.lookup(filename, src)
			if err != nil {
				return err
			}
			if err := l.load(p, path, stack); err != nil {
				return err
			}
		case "chapter", "section", "subsection":
			p.Directives = append(p.Directives, &Heading{
				Level: headingLevels[child.Tag],
				Text:  strings.TrimSpace(xmlutil.InnerText(child)),
			})
		case "acronyms":
			src := child.SelectAttrValue("src", "")
			if src == "" {
				return errs.New(errs.KindMalformedXML, "<acronyms> needs a 'src' attribute").WithFile(filename)
			}
			path, err := l.lookup(filename, src)
			if err != nil {
				return err
			}
			p.Directives = append(p.Directives, &AcronymRef{Path: path})
		case "marker":
			name := child.SelectAttrValue("name", "")
			if name == "" {
				return errs.New(errs.KindMalformedXML, "<marker> needs a 'name' attribute").WithFile(filename)
			}
			p.Directives = append(p.Directives, &Marker{Name: name})
		default:
			l.Warnf("Warning: Ignored unknown tag '%s' in %s.", child.Tag, filename)
		}
	}
	return nil
}

func parseRoot(filename string) (*etree.Element, error) {
	doc, err := xmlutil.ParseFile(filename)
	if err != nil {
		if isNotExist(err) {
			return nil, errs.Wrap(errs.KindXMLNotFound, err, "cannot parse presentation").WithFile(filename)
		}
		return nil, err
	}
	root := doc.Root()
	xmlutil.NormalizeNamespace(root, xmlutil.Namespace, xmlutil.Prefix)
	if root.Tag != "presentation" || root.Space != "" {
		return nil, errs.Newf(errs.KindMalformedXML, "top element must be <presentation>, found <%s>", root.FullTag()).WithFile(filename)
	}
	return root, nil
}

// NewSlide reads the variables and content containers of a slide element.
// s:var elements are removed from the tree.
func NewSlide(el *etree.Element, source string) *Slide {
	s := &Slide{
		Type:       el.SelectAttrValue("type", "default"),
		Vars:       make(map[string]string),
		Containers: make(pause.Containers),
		Element:    el,
		Source:     source,
	}

	var vars, containers []*etree.Element
	xmlutil.Walk(el, func(node *etree.Element) bool {
		switch node.FullTag() {
		case xmlutil.Prefix + ":var":
			vars = append(vars, node)
			return false
		case xmlutil.Prefix + ":content":
			containers = append(containers, node)
		}
		return true
	})
	for _, v := range vars {
		s.Vars[v.SelectAttrValue("name", "")] = v.SelectAttrValue("value", "")
		xmlutil.Remove(v)
	}
	for _, c := range containers {
		s.Containers[c.SelectAttrValue("name", "")] = c
	}
	if len(s.Containers) == 0 {
		s.Containers["default"] = el
	}
	return s
}

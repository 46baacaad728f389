package rendered

import (
	"slidepress/internal/pause"
	"slidepress/internal/xmlutil"
)

// Slide is one renderable slide: a single reveal state of an authored slide
// together with its variables.
type Slide struct {
	Type       string
	Containers pause.Containers
	Vars       map[string]any
}

// Var returns a slide variable, or nil.
func (s *Slide) Var(name string) any {
	return s.Vars[name]
}

// Has reports whether the slide carries a variable.
func (s *Slide) Has(name string) bool {
	_, ok := s.Vars[name]
	return ok
}

// Number returns the slide number.
func (s *Slide) Number() int {
	n, _ := s.Vars["current_slide_number"].(int)
	return n
}

// Content serializes the children of a content container. An empty name
// selects the default container. Missing containers yield "".
func (s *Slide) Content(name string) string {
	if name == "" {
		name = "default"
	}
	el, ok := s.Containers[name]
	if !ok || el == nil {
		return ""
	}
	return xmlutil.InnerXML(el)
}

// Text returns the inner text of a content container.
func (s *Slide) Text(name string) string {
	if name == "" {
		name = "default"
	}
	el, ok := s.Containers[name]
	if !ok || el == nil {
		return ""
	}
	return xmlutil.InnerText(el)
}

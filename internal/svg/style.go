package svg

import (
	"strings"

	"github.com/beevik/etree"
)

// Style is an ordered CSS declaration list as found in SVG style attributes.
type Style struct {
	keys   []string
	values map[string]string
}

// ParseStyle parses "key:value;key:value".
func ParseStyle(s string) *Style {
	style := &Style{values: make(map[string]string)}
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		style.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return style
}

// StyleOf parses the style attribute of el.
func StyleOf(el *etree.Element) *Style {
	return ParseStyle(el.SelectAttrValue("style", ""))
}

// Get returns the value for key, or "" if unset.
func (s *Style) Get(key string) string {
	return s.values[key]
}

// Has reports whether key is set.
func (s *Style) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set assigns key, keeping the position of an existing declaration.
func (s *Style) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Update assigns several keys in the order given.
func (s *Style) Update(pairs ...[2]string) {
	for _, p := range pairs {
		s.Set(p[0], p[1])
	}
}

// Visible reports whether the style does not hide the element.
func (s *Style) Visible() bool {
	return s.Get("display") != "none"
}

// Len returns the number of declarations.
func (s *Style) Len() int {
	return len(s.keys)
}

func (s *Style) String() string {
	parts := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		parts = append(parts, k+":"+s.values[k])
	}
	return strings.Join(parts, ";")
}

// ApplyTo writes the style back to el, removing the attribute when empty.
func (s *Style) ApplyTo(el *etree.Element) {
	if s.Len() == 0 {
		el.RemoveAttr("style")
		return
	}
	el.CreateAttr("style", s.String())
}

func defaultPathStyle() *Style {
	s := &Style{values: make(map[string]string)}
	s.Update(
		[2]string{"fill", "none"},
		[2]string{"stroke", "#000000"},
		[2]string{"stroke-width", "1px"},
		[2]string{"stroke-linecap", "butt"},
		[2]string{"stroke-linejoin", "miter"},
		[2]string{"stroke-opacity", "1"},
	)
	return s
}

func defaultTextStyle() *Style {
	s := &Style{values: make(map[string]string)}
	s.Update(
		[2]string{"font-style", "normal"},
		[2]string{"font-weight", "normal"},
		[2]string{"font-size", "12px"},
		[2]string{"line-height", "1.25"},
		[2]string{"font-family", "sans-serif"},
		[2]string{"white-space", "pre"},
		[2]string{"fill", "#000000"},
		[2]string{"fill-opacity", "1"},
		[2]string{"stroke", "none"},
	)
	return s
}

// Package templates locates template styles and renders slides and the
// index page with them. Templates are looked up in layers: the user's
// template directory, the built-in templates and any extra directories.
package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strings"
	texttemplate "text/template"

	"github.com/mitchellh/go-homedir"

	"slidepress/internal/errs"
)

//go:embed all:builtin
var builtin embed.FS

// UserDir is searched before the built-in templates.
const UserDir = "~/.config/slidepress/templates"

// Layer is one template directory.
type Layer struct {
	Name string
	FS   fs.FS
}

// Builtin returns the embedded template layer.
func Builtin() Layer {
	sub, err := fs.Sub(builtin, "builtin")
	if err != nil {
		panic(err)
	}
	return Layer{Name: "builtin", FS: sub}
}

// DirLayer returns a layer reading from a directory.
func DirLayer(dir string) Layer {
	return Layer{Name: dir, FS: os.DirFS(dir)}
}

// DefaultLayers returns the user directory if it exists, the built-in
// templates and then extraDirs.
func DefaultLayers(extraDirs []string) ([]Layer, error) {
	var layers []Layer
	user, err := homedir.Expand(UserDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", UserDir, err)
	}
	if st, err := os.Stat(user); err == nil && st.IsDir() {
		layers = append(layers, DirLayer(user))
	}
	layers = append(layers, Builtin())
	for _, dir := range extraDirs {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", dir, err)
		}
		layers = append(layers, DirLayer(expanded))
	}
	return layers, nil
}

// Set is a template style resolved against a list of layers.
type Set struct {
	layers []Layer
	style  string

	Config *Config
	Style  map[string]any

	parsed map[string]*template.Template
}

// Open resolves style in layers, loads its configuration and validates the
// style options against it.
func Open(style string, opts map[string]string, layers ...Layer) (*Set, error) {
	s := &Set{
		layers: layers,
		style:  style,
		parsed: make(map[string]*template.Template),
	}
	data, err := s.ReadStyled("configuration.json")
	if err != nil {
		return nil, errs.Wrap(errs.KindIllegalStyle, err, "no such template style %q", style)
	}
	if s.Config, err = ParseConfig(data); err != nil {
		return nil, err
	}
	if s.Style, err = s.Config.StyleValues(opts); err != nil {
		return nil, err
	}
	return s, nil
}

// StyleName returns the name of the template style.
func (s *Set) StyleName() string {
	return s.style
}

// Layers returns the layers searched, in order.
func (s *Set) Layers() []Layer {
	return append([]Layer(nil), s.layers...)
}

// ReadFile looks name up in every layer, first directly and then inside the
// style directory. The first match wins.
func (s *Set) ReadFile(name string) ([]byte, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	for _, l := range s.layers {
		for _, candidate := range []string{name, path.Join(s.style, name)} {
			data, err := fs.ReadFile(l.FS, candidate)
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read %s from %s: %w", candidate, l.Name, err)
			}
		}
	}
	return nil, errs.Newf(errs.KindFileLookup, "no such template file: %s (looked in %s)", name, s.layerNames())
}

// ReadStyled looks name up inside the style directory only.
func (s *Set) ReadStyled(name string) ([]byte, error) {
	candidate := path.Join(s.style, name)
	for _, l := range s.layers {
		data, err := fs.ReadFile(l.FS, candidate)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s from %s: %w", candidate, l.Name, err)
		}
	}
	return nil, errs.Newf(errs.KindFileLookup, "no such template file: %s (looked in %s)", candidate, s.layerNames())
}

func (s *Set) layerNames() string {
	names := make([]string, len(s.layers))
	for i, l := range s.layers {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}

// macros holds named templates shared by every page.
const macros = "base/macros.html"

// Template parses an HTML template together with the shared macros.
// Parsed templates are cached.
func (s *Set) Template(name string) (*template.Template, error) {
	if t, ok := s.parsed[name]; ok {
		return t, nil
	}
	data, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}

	t := template.New(name).Funcs(funcs).Option("missingkey=error")
	if shared, err := s.ReadFile(macros); err == nil {
		if _, err := t.New(macros).Parse(string(shared)); err != nil {
			return nil, errs.Wrap(errs.KindIllegalStyle, err, "failed to parse %s", macros)
		}
	} else if !errs.IsKind(err, errs.KindFileLookup) {
		return nil, err
	}
	if _, err := t.Parse(string(data)); err != nil {
		return nil, errs.Wrap(errs.KindIllegalStyle, err, "failed to parse template %s", name)
	}
	s.parsed[name] = t
	return t, nil
}

// SlideTemplate returns the template of a slide type.
func (s *Set) SlideTemplate(slideType string) (*template.Template, error) {
	t, err := s.Template("slide_" + slideType + ".html")
	if errs.IsKind(err, errs.KindFileLookup) {
		return nil, errs.Wrap(errs.KindUnknownSlideType, err, "no template for slide type %q", slideType)
	}
	return t, err
}

// Execute renders a template to a string.
func (s *Set) Execute(name string, data any) (string, error) {
	t, err := s.Template(name)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return b.String(), nil
}

// ExecuteText renders a plain text template such as a stylesheet, without
// HTML escaping.
func (s *Set) ExecuteText(name string, data any) ([]byte, error) {
	src, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	t, err := texttemplate.New(name).Funcs(texttemplate.FuncMap(funcs)).Parse(string(src))
	if err != nil {
		return nil, errs.Wrap(errs.KindIllegalStyle, err, "failed to parse template %s", name)
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return b.Bytes(), nil
}

// Controller returns the controller definition of a slide type.
func (s *Set) Controller(slideType string) (ControllerDef, bool) {
	def, ok := s.Config.Controllers[slideType]
	return def, ok
}

// Package rendered holds the state accumulated while a presentation is
// rendered: slide counters, the table of contents, acronyms, markers, the
// schedule, CSS and JavaScript dependencies and the files written to the
// output directories.
package rendered

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"slidepress/internal/acronyms"
	"slidepress/internal/agenda"
	"slidepress/internal/cache"
	"slidepress/internal/errs"
	"slidepress/internal/filelookup"
	"slidepress/internal/models"
	"slidepress/internal/renderers"
	"slidepress/internal/schedule"
	"slidepress/internal/toc"
	"slidepress/internal/varsub"
)

// Features toggled by hooks and rendering parameters. They select template
// dependencies.
const (
	FeatureHighlight   = "highlight"
	FeatureAcronyms    = "acronyms"
	FeatureInteractive = "interactive"
	FeatureMathJax     = "mathjax"
	FeatureTimer       = "timer"
	FeatureFeedback    = "feedback"
	FeatureReload      = "reload"
)

var markerRe = regexp.MustCompile(`^[_a-zA-Z0-9]+$`)

// Options configures a new Presentation.
type Options struct {
	Params    *models.RenderingParameters
	Meta      map[string]any
	Agenda    *agenda.Agenda
	Cache     cache.Provider
	Renderers *renderers.Registry
	Includes  *filelookup.Lookup

	// Warnf reports non-fatal problems. It defaults to log.Printf.
	Warnf func(format string, args ...any)
}

// Presentation is the accumulator shared by every pass of one render.
type Presentation struct {
	params    *models.RenderingParameters
	meta      map[string]any
	agenda    *agenda.Agenda
	cache     cache.Provider
	renderers *renderers.Registry
	includes  *filelookup.Lookup
	warnf     func(format string, args ...any)

	uid          int
	current      int
	total        int
	css          map[string]int
	js           []string
	jsSeen       map[string]bool
	files        map[string]bool
	features     map[string]bool
	toc          *toc.TOC
	frozen       *toc.Frozen
	acronyms     *acronyms.Database
	markers      map[string]int
	prevMarkers  map[string]int
	variables    *varsub.Container
	presentation float64

	schedule       *schedule.Schedule
	scheduleLocked bool
}

// New creates the accumulator for one render invocation.
func New(opts Options) (*Presentation, error) {
	if opts.Params == nil {
		opts.Params = models.DefaultRenderingParameters()
	}
	if opts.Cache == nil {
		opts.Cache = cache.Uncached{}
	}
	if opts.Includes == nil {
		opts.Includes = filelookup.New()
	}
	if opts.Warnf == nil {
		opts.Warnf = log.Printf
	}
	if opts.Meta == nil {
		opts.Meta = make(map[string]any)
	}

	p := &Presentation{
		params:      opts.Params,
		meta:        opts.Meta,
		agenda:      opts.Agenda,
		cache:       opts.Cache,
		renderers:   opts.Renderers,
		includes:    opts.Includes,
		warnf:       opts.Warnf,
		css:         make(map[string]int),
		jsSeen:      make(map[string]bool),
		files:       make(map[string]bool),
		features:    make(map[string]bool),
		toc:         toc.New(),
		acronyms:    acronyms.New(),
		markers:     make(map[string]int),
		prevMarkers: make(map[string]int),
	}
	p.acronyms.Warnf = func(format string, args ...any) {
		p.warnf(format, args...)
	}

	vars, _ := opts.Meta["variables"].(map[string]any)
	p.variables = varsub.New(vars)

	if s, ok := opts.Meta["presentation-time"].(string); ok && s != "" {
		spec, err := schedule.ParseAbsolute(s, "h:m")
		if err != nil {
			return nil, fmt.Errorf("failed to parse presentation-time: %w", err)
		}
		p.presentation = spec.Value
	}
	p.schedule = schedule.New(p.presentation)
	return p, nil
}

// Params returns the rendering parameters.
func (p *Presentation) Params() *models.RenderingParameters {
	return p.params
}

// Meta returns the presentation metadata.
func (p *Presentation) Meta() map[string]any {
	return p.meta
}

// MetaString returns a metadata value as string, or def.
func (p *Presentation) MetaString(key, def string) string {
	if v, ok := p.meta[key].(string); ok {
		return v
	}
	return def
}

// Agenda returns the parsed metadata agenda, or nil.
func (p *Presentation) Agenda() *agenda.Agenda {
	return p.agenda
}

// Variables returns the variable container of the metadata.
func (p *Presentation) Variables() *varsub.Container {
	return p.variables
}

// Warnf reports a non-fatal problem.
func (p *Presentation) Warnf(format string, args ...any) {
	p.warnf(format, args...)
}

// NextUID returns a new identifier unique within the pass.
func (p *Presentation) NextUID() string {
	p.uid++
	return fmt.Sprintf("uid_%x", p.uid)
}

// CurrentSlideNumber returns the number of the slide being rendered.
func (p *Presentation) CurrentSlideNumber() int {
	return p.current
}

// TotalSlideCount returns the highest slide number seen in any pass.
func (p *Presentation) TotalSlideCount() int {
	return p.total
}

// AdvanceSlide starts a new slide.
func (p *Presentation) AdvanceSlide() {
	p.current++
	if p.current > p.total {
		p.total = p.current
	}
	p.toc.AtPage(p.current)
	if !p.scheduleLocked {
		p.schedule.HaveSlide(p.current)
	}
}

// SetTimeSpec assigns a time specification to the current slide. Every
// sub-slide a s:time element survives on receives the full specification.
func (p *Presentation) SetTimeSpec(spec schedule.TimeSpec) {
	if p.scheduleLocked || p.current == 0 {
		return
	}
	p.schedule.Set(p.current, spec)
}

// FinalizeTOC freezes the TOC collected so far, starts a new one and resets
// the slide counter. Markers registered in the finished pass become
// resolvable through Marker.
func (p *Presentation) FinalizeTOC() {
	p.frozen = p.toc.Freeze()
	p.toc = toc.New()
	p.current = 0
	p.uid = 0
	p.prevMarkers = p.markers
	p.markers = make(map[string]int)
}

// ResetSchedule discards all time specifications.
func (p *Presentation) ResetSchedule() {
	p.schedule = schedule.New(p.presentation)
	p.scheduleLocked = false
}

// ComputeSchedule computes the time slices. Time specifications given
// afterwards are ignored, so that later passes see a stable schedule.
func (p *Presentation) ComputeSchedule() ([]schedule.TimeSlice, error) {
	slices, err := p.schedule.Compute()
	if err != nil {
		return nil, err
	}
	p.scheduleLocked = true
	return slices, nil
}

// Schedule returns the schedule of the presentation.
func (p *Presentation) Schedule() *schedule.Schedule {
	return p.schedule
}

// PresentationSeconds returns the total presentation time, zero if unknown.
func (p *Presentation) PresentationSeconds() float64 {
	return p.presentation
}

// TOC returns the live table of contents of the current pass.
func (p *Presentation) TOC() *toc.TOC {
	return p.toc
}

// FrozenTOC returns the table of contents of the previous pass, or nil in
// the first pass.
func (p *Presentation) FrozenTOC() *toc.Frozen {
	return p.frozen
}

// Acronyms returns the acronym database.
func (p *Presentation) Acronyms() *acronyms.Database {
	return p.acronyms
}

// AddMarker registers name at the current slide.
func (p *Presentation) AddMarker(name string) error {
	if !markerRe.MatchString(name) {
		return errs.Newf(errs.KindMalformedXML, "markers may only contain a-z, A-Z, 0-9 and _, found %q", name)
	}
	p.markers[name] = p.current
	return nil
}

// Marker resolves a marker to its slide number. Markers of the previous pass
// take precedence so that forward references resolve.
func (p *Presentation) Marker(name string) (int, bool) {
	if no, ok := p.prevMarkers[name]; ok {
		return no, true
	}
	no, ok := p.markers[name]
	return no, ok
}

// Markers returns all resolvable markers.
func (p *Presentation) Markers() map[string]int {
	out := make(map[string]int, len(p.prevMarkers)+len(p.markers))
	for k, v := range p.markers {
		out[k] = v
	}
	for k, v := range p.prevMarkers {
		out[k] = v
	}
	return out
}

// AddFeature enables a feature.
func (p *Presentation) AddFeature(feature string) {
	p.features[feature] = true
}

// HasFeature reports whether a feature is enabled.
func (p *Presentation) HasFeature(feature string) bool {
	return p.features[feature]
}

// Features returns the enabled features in sorted order.
func (p *Presentation) Features() []string {
	out := make([]string, 0, len(p.features))
	for f := range p.features {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// AddCSS adds a stylesheet. Without an explicit order, stylesheets keep the
// order they were added in. Adding a stylesheet twice has no effect.
func (p *Presentation) AddCSS(name string, order *int) {
	if _, ok := p.css[name]; ok {
		return
	}
	o := len(p.css)
	if order != nil {
		o = *order
	}
	p.css[name] = o
}

// CSS returns the stylesheets sorted by order, then name.
func (p *Presentation) CSS() []string {
	out := make([]string, 0, len(p.css))
	for name := range p.css {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := p.css[out[i]], p.css[out[j]]
		if oi != oj {
			return oi < oj
		}
		return out[i] < out[j]
	})
	return out
}

// AddJS adds a script.
func (p *Presentation) AddJS(name string) {
	if p.jsSeen[name] {
		return
	}
	p.jsSeen[name] = true
	p.js = append(p.js, name)
}

// JS returns the scripts in the order they were added.
func (p *Presentation) JS() []string {
	return append([]string(nil), p.js...)
}

// AddFile writes data to relPath below the resource directory. Each
// relative path is written once per render; later writes are dropped.
func (p *Presentation) AddFile(relPath string, data []byte) error {
	return p.addFile(p.params.ResourceDir, relPath, data)
}

// AddDeployFile writes data to relPath below the deploy directory.
func (p *Presentation) AddDeployFile(relPath string, data []byte) error {
	return p.addFile(p.params.DeployDir, relPath, data)
}

// HasFile reports whether relPath was already written.
func (p *Presentation) HasFile(relPath string) bool {
	return p.files[path.Clean(relPath)]
}

func (p *Presentation) addFile(dir, relPath string, data []byte) error {
	key := path.Clean(relPath)
	if p.files[key] {
		return nil
	}
	if path.IsAbs(key) || key == ".." || strings.HasPrefix(key, "../") {
		return fmt.Errorf("refusing to write %q outside the output directory", relPath)
	}
	p.files[key] = true

	target := filepath.Join(dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// CopyFile copies an absolute source file to relPath below the resource
// directory.
func (p *Presentation) CopyFile(src, relPath string) error {
	if p.HasFile(relPath) {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return errs.Wrap(errs.KindFileLookup, err, "failed to read %s", src)
	}
	return p.AddFile(relPath, data)
}

// ResourceURI returns the URI of a file added with AddFile, as seen from
// the index page.
func (p *Presentation) ResourceURI(relPath string) string {
	return p.params.ResourceURI + relPath
}

// LookupInclude resolves a file name against the include directories.
func (p *Presentation) LookupInclude(name string) (string, error) {
	return p.includes.Find(name)
}

// Includes returns the include lookup.
func (p *Presentation) Includes() *filelookup.Lookup {
	return p.includes
}

// Render runs a named renderer through the cache.
func (p *Presentation) Render(ctx context.Context, name string, inputs map[string]any) (*cache.Result, error) {
	if p.renderers == nil {
		return nil, errs.Newf(errs.KindUnknownParameter, "no renderers available to render %s", name)
	}
	r, err := p.renderers.Get(name)
	if err != nil {
		return nil, err
	}
	return p.cache.Render(ctx, r, inputs)
}

package templates

import (
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"strings"

	"slidepress/internal/acronyms"
	"slidepress/internal/models"
	"slidepress/internal/rendered"
	"slidepress/internal/schedule"
	"slidepress/internal/toc"
)

// TargetDir is the directory below the resource directory that template
// dependencies are copied to.
const TargetDir = "template/"

var funcs = template.FuncMap{
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
	"join": strings.Join,
	"json": func(v any) (template.JS, error) {
		data, err := json.Marshal(v)
		return template.JS(data), err
	},
	"percent": func(ratio float64) string {
		return fmt.Sprintf("%.1f%%", ratio*100)
	},
	"duration": formatDuration,
}

func formatDuration(seconds float64) string {
	total := int(math.Round(seconds))
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, total/60%60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Page is the data common to every rendered page.
type Page struct {
	P       *rendered.Presentation
	Style   map[string]any
	Version string
}

// Meta returns the presentation metadata.
func (pg *Page) Meta() map[string]any {
	return pg.P.Meta()
}

// MetaString returns a metadata value, or "".
func (pg *Page) MetaString(key string) string {
	return pg.P.MetaString(key, "")
}

// Resource returns the URI of a file in the resource directory.
func (pg *Page) Resource(relPath string) string {
	return pg.P.ResourceURI(relPath)
}

// HasFeature reports whether a presentation feature is enabled.
func (pg *Page) HasFeature(feature string) bool {
	return pg.P.HasFeature(feature)
}

// Geometry returns the slide size.
func (pg *Page) Geometry() models.Geometry {
	return pg.P.Params().Geometry
}

// StyleOpt returns a template style option, or "".
func (pg *Page) StyleOpt(name string) string {
	v, ok := pg.Style[name]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// SlideData is passed to slide_<type>.html.
type SlideData struct {
	Page
	Slide *rendered.Slide
}

// Var returns a slide variable, or nil.
func (d *SlideData) Var(name string) any {
	return d.Slide.Var(name)
}

// VarString returns a slide variable as string, or "".
func (d *SlideData) VarString(name string) string {
	v := d.Slide.Var(name)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Number returns the slide number.
func (d *SlideData) Number() int {
	return d.Slide.Number()
}

// Total returns the slide count.
func (d *SlideData) Total() int {
	n, _ := d.Slide.Var("total_slide_count").(int)
	return n
}

// Content returns the HTML of a content container. An empty name selects
// the default container.
func (d *SlideData) Content(name string) template.HTML {
	return template.HTML(d.Slide.Content(name))
}

// HasContent reports whether the slide has a non-blank container.
func (d *SlideData) HasContent(name string) bool {
	return strings.TrimSpace(d.Slide.Content(name)) != ""
}

// Schedule returns the time slice of the slide.
func (d *SlideData) Schedule() schedule.TimeSlice {
	return d.P.Schedule().Slice(d.Slide.Number())
}

// Acronyms returns the acronyms of an acronym page.
func (d *SlideData) Acronyms() []acronyms.Entry {
	entries, _ := d.Slide.Var("acronyms").([]acronyms.Entry)
	return entries
}

// PartialTOC returns the nesting stream of a TOC page.
func (d *SlideData) PartialTOC() []toc.Command {
	cmds, _ := d.Slide.Var("partial_toc").([]toc.Command)
	return cmds
}

// TOCEntry returns the heading the slide belongs to, or nil.
func (d *SlideData) TOCEntry() *toc.Entry {
	e, _ := d.Slide.Var("toc_entry").(*toc.Entry)
	return e
}

// UID returns a new identifier unique within the page.
func (d *SlideData) UID() string {
	if gen, ok := d.Slide.Var("generate_uid").(func() string); ok {
		return gen()
	}
	return d.P.NextUID()
}

// IndexData is passed to base/index.html.
type IndexData struct {
	Page
	Slides []template.HTML
}

// Title returns the presentation title.
func (d *IndexData) Title() string {
	return d.P.MetaString("title", "Presentation")
}

// CSS returns the stylesheet URIs.
func (d *IndexData) CSS() []string {
	var out []string
	for _, name := range d.P.CSS() {
		out = append(out, d.P.ResourceURI(name))
	}
	return out
}

// JS returns the script URIs.
func (d *IndexData) JS() []string {
	var out []string
	for _, name := range d.P.JS() {
		out = append(out, d.P.ResourceURI(name))
	}
	return out
}

// Interactive is the presentation state the browser side scripts read.
type Interactive struct {
	SlideRatios      []float64 `json:"slide_ratios"`
	PresentationTime float64   `json:"presentation_time"`
	TotalSlides      int       `json:"total_slides"`
	Geometry         [2]int    `json:"geometry"`
	Reload           string    `json:"reload,omitempty"`
}

// ReloadPath is the websocket endpoint live reload connects to.
const ReloadPath = "/ws/reload"

// Interactive returns the browser side presentation state.
func (d *IndexData) Interactive() Interactive {
	g := d.P.Params().Geometry
	out := Interactive{
		SlideRatios:      d.P.Schedule().Ratios(),
		PresentationTime: d.P.PresentationSeconds(),
		TotalSlides:      d.P.TotalSlideCount(),
		Geometry:         [2]int{g.Width, g.Height},
	}
	if d.P.Params().InjectReload {
		out.Reload = ReloadPath
	}
	return out
}

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// PresentationMode selects the kind of index page generated
type PresentationMode string

const (
	ModeInteractive PresentationMode = "interactive"
	ModeHandout     PresentationMode = "handout"
)

// ParsePresentationMode validates a mode name
func ParsePresentationMode(s string) (PresentationMode, error) {
	switch PresentationMode(s) {
	case ModeInteractive, ModeHandout:
		return PresentationMode(s), nil
	}
	return "", fmt.Errorf("unknown presentation mode %q", s)
}

// Geometry is the slide size in pixels
type Geometry struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// ParseGeometry parses "WxH"
func ParseGeometry(s string) (Geometry, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Geometry{}, fmt.Errorf("geometry %q is not of the form WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return Geometry{}, fmt.Errorf("invalid geometry width in %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return Geometry{}, fmt.Errorf("invalid geometry height in %q", s)
	}
	return Geometry{Width: width, Height: height}, nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// RenderingParameters controls a single render of a presentation
type RenderingParameters struct {
	TemplateStyle        string            `mapstructure:"template_style"`
	TemplateStyleOpts    map[string]string `mapstructure:"template_style_opts"`
	HonorPauses          bool              `mapstructure:"honor_pauses"`
	CollapseAnimation    bool              `mapstructure:"collapse_animation"`
	ExtraTemplateDirs    []string          `mapstructure:"extra_template_dirs"`
	IncludeDirs          []string          `mapstructure:"include_dirs"`
	IndexFilename        string            `mapstructure:"index_filename"`
	ResourceURI          string            `mapstructure:"resource_uri"`
	ResourceDir          string            `mapstructure:"resource_dir"`
	DeployDir            string            `mapstructure:"deploy_dir"`
	Geometry             Geometry          `mapstructure:"geometry"`
	ImageMaxDimension    int               `mapstructure:"image_max_dimension"`
	PresentationFeatures []string          `mapstructure:"presentation_features"`
	PresentationMode     PresentationMode  `mapstructure:"presentation_mode"`
	InjectReload         bool              `mapstructure:"inject_reload"`
	Trustworthy          bool              `mapstructure:"trustworthy"`

	// InjectedMetadata is merged over the metadata of the presentation
	InjectedMetadata map[string]any `mapstructure:"-"`
}

// DefaultRenderingParameters returns the defaults used when nothing is configured
func DefaultRenderingParameters() *RenderingParameters {
	return &RenderingParameters{
		TemplateStyle:     "default",
		HonorPauses:       true,
		IndexFilename:     "index.html",
		Geometry:          Geometry{Width: 1280, Height: 720},
		ImageMaxDimension: 1920,
		PresentationMode:  ModeInteractive,
	}
}

// Validate checks the parameters for consistency
func (p *RenderingParameters) Validate() error {
	if p.TemplateStyle == "" {
		return fmt.Errorf("no template style given")
	}
	if strings.ContainsAny(p.TemplateStyle, `/\`) {
		return fmt.Errorf("template style %q must not contain path separators", p.TemplateStyle)
	}
	if p.ImageMaxDimension <= 0 {
		return fmt.Errorf("image max dimension must be positive, got %d", p.ImageMaxDimension)
	}
	if p.IndexFilename == "" {
		return fmt.Errorf("no index filename given")
	}
	if _, err := ParsePresentationMode(string(p.PresentationMode)); err != nil {
		return err
	}
	if p.ResourceURI != "" && !strings.HasSuffix(p.ResourceURI, "/") {
		p.ResourceURI += "/"
	}
	return nil
}

package presentation

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Metadata holds the recognized keys of the <meta> block. Unrecognized keys
// remain available in Extra.
type Metadata struct {
	Title             string         `mapstructure:"title" json:"title,omitempty" yaml:"title,omitempty"`
	Subtitle          string         `mapstructure:"subtitle" json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Author            string         `mapstructure:"author" json:"author,omitempty" yaml:"author,omitempty"`
	Date              string         `mapstructure:"date" json:"date,omitempty" yaml:"date,omitempty"`
	PresentationTime  string         `mapstructure:"presentation-time" json:"presentation-time,omitempty" yaml:"presentation-time,omitempty"`
	Agenda            string         `mapstructure:"agenda" json:"agenda,omitempty" yaml:"agenda,omitempty"`
	AgendaGranularity int            `mapstructure:"agenda-granularity" json:"agenda-granularity,omitempty" yaml:"agenda-granularity,omitempty"`
	FilenameKey       string         `mapstructure:"filename-key" json:"filename-key,omitempty" yaml:"filename-key,omitempty"`
	Variables         map[string]any `mapstructure:"variables" json:"variables,omitempty" yaml:"variables,omitempty"`
	Extra             map[string]any `mapstructure:",remain" json:"extra,omitempty" yaml:"extra,omitempty"`
}

// DecodeMetadata converts the generic metadata map.
func DecodeMetadata(meta map[string]any) (Metadata, error) {
	in := make(map[string]any, len(meta))
	for k, v := range meta {
		in[k] = v
	}
	if s, ok := in["variables"].(string); ok {
		if strings.TrimSpace(s) != "" {
			return Metadata{}, fmt.Errorf("variables must be a nested element, got text %q", s)
		}
		delete(in, "variables")
	}

	var md Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &md,
	})
	if err != nil {
		return Metadata{}, err
	}
	if err := dec.Decode(in); err != nil {
		return Metadata{}, err
	}
	md.Agenda = strings.TrimSpace(md.Agenda)
	return md, nil
}

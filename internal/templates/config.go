package templates

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"slidepress/internal/errs"
)

// CSSFile is a stylesheet dependency. In configuration.json it is either a
// plain file name or an object. Stylesheets with Render set are executed as
// text templates before they are written.
type CSSFile struct {
	Name   string `mapstructure:"name"`
	Render bool   `mapstructure:"render"`
	Order  *int   `mapstructure:"order"`
}

// Dependencies lists the files a template, slide type or feature needs.
type Dependencies struct {
	Static []string  `mapstructure:"static"`
	CSS    []CSSFile `mapstructure:"css"`
	JS     []string  `mapstructure:"js"`
}

// ControllerDef binds a slide type to a controller.
type ControllerDef struct {
	Controller string         `mapstructure:"controller"`
	Options    map[string]any `mapstructure:"options"`
}

// StyleParameter declares an option that can be given on the command line
// to customize a template style.
type StyleParameter struct {
	Type        string   `mapstructure:"type"`
	Description string   `mapstructure:"description"`
	Choices     []string `mapstructure:"choices"`
	Default     any      `mapstructure:"default"`
}

// Config is the configuration.json of a template style.
type Config struct {
	Files        Dependencies `mapstructure:"files"`
	Dependencies struct {
		SlideType map[string]Dependencies `mapstructure:"slidetype"`
		Feature   map[string]Dependencies `mapstructure:"feature"`
	} `mapstructure:"dependencies"`
	Controllers map[string]ControllerDef  `mapstructure:"controllers"`
	Parameters  map[string]StyleParameter `mapstructure:"parameters"`
}

// cssFileHook accepts a bare string wherever a CSSFile is expected.
func cssFileHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(CSSFile{}) || from.Kind() != reflect.String {
		return data, nil
	}
	return map[string]any{"name": data}, nil
}

// ParseConfig decodes a configuration.json.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Wrap(errs.KindMalformedJSON, err, "malformed template configuration")
	}

	cfg := new(Config)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		DecodeHook:  mapstructure.DecodeHookFuncType(cssFileHook),
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errs.Wrap(errs.KindIllegalStyle, err, "invalid template configuration")
	}

	for name, p := range cfg.Parameters {
		switch p.Type {
		case "", "str", "int", "float":
		case "choice":
			if len(p.Choices) == 0 {
				return nil, errs.Newf(errs.KindIllegalStyle, "choice parameter %s has no choices", name)
			}
		default:
			return nil, errs.Newf(errs.KindIllegalStyle, "unknown type %q of style parameter %s", p.Type, name)
		}
	}
	return cfg, nil
}

// StyleValues validates the style options given by the user against the
// declared parameters and fills in defaults.
func (c *Config) StyleValues(opts map[string]string) (map[string]any, error) {
	values := make(map[string]any)
	for name, p := range c.Parameters {
		if p.Default != nil {
			values[name] = p.Default
		}
	}

	for key, value := range opts {
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		p, ok := c.Parameters[key]
		if !ok {
			return nil, errs.Newf(errs.KindIllegalStyle, "not a valid style parameter: %s (must be one of %s)", key, strings.Join(c.ParameterNames(), ", "))
		}
		v, err := p.parse(value)
		if err != nil {
			return nil, errs.Wrap(errs.KindIllegalStyle, err, "invalid value for style parameter %s", key)
		}
		values[key] = v
	}
	return values, nil
}

func (p StyleParameter) parse(value string) (any, error) {
	switch p.Type {
	case "int":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "choice":
		for _, c := range p.Choices {
			if c == value {
				return value, nil
			}
		}
		return nil, fmt.Errorf("%q should be one of %s", value, strings.Join(p.Choices, ", "))
	}
	return value, nil
}

// ParameterNames returns the declared style parameters in sorted order.
func (c *Config) ParameterNames() []string {
	names := make([]string, 0, len(c.Parameters))
	for name := range c.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseStyleOpts parses key=value strings.
func ParseStyleOpts(opts []string) (map[string]string, error) {
	out := make(map[string]string, len(opts))
	for _, opt := range opts {
		key, value, ok := strings.Cut(opt, "=")
		if !ok {
			return nil, errs.Newf(errs.KindIllegalStyle, "expected a key=value tuple for the style parameter, but got: %s", opt)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

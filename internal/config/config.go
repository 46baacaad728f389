// Package config loads the slidepress configuration from config files, the
// environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"slidepress/internal/cache"
	"slidepress/internal/models"
	"slidepress/internal/svg"
)

// EnvPrefix prefixes every environment variable read.
const EnvPrefix = "SLIDEPRESS"

// Cache backends.
const (
	BackendFiles = "files"
	BackendBolt  = "bolt"
)

// TLSConfig holds the TLS settings of the server.
type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertFile   string `mapstructure:"cert"`
	KeyFile    string `mapstructure:"key"`
	MinVersion string `mapstructure:"min_version"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string    `mapstructure:"host"`
	Port string    `mapstructure:"port"`
	TLS  TLSConfig `mapstructure:"tls"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// CacheConfig selects the renderer cache.
type CacheConfig struct {
	Dir       string        `mapstructure:"dir"`
	Backend   string        `mapstructure:"backend"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl"`
	Disabled  bool          `mapstructure:"disabled"`
}

// Config is the complete configuration.
type Config struct {
	Cache     CacheConfig `mapstructure:"cache"`
	Templates struct {
		Dirs []string `mapstructure:"dirs"`
	} `mapstructure:"templates"`
	Include struct {
		Dirs []string `mapstructure:"dirs"`
	} `mapstructure:"include"`
	Render models.RenderingParameters `mapstructure:"render"`
	Server ServerConfig               `mapstructure:"server"`
	DB     struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`
	SVG struct {
		FontSeverity string `mapstructure:"font_severity"`
	} `mapstructure:"svg"`
}

// SetDefaults registers the default value of every key with v.
func SetDefaults(v *viper.Viper) {
	r := models.DefaultRenderingParameters()

	v.SetDefault("cache.dir", "~/.cache/slidepress")
	v.SetDefault("cache.backend", BackendFiles)
	v.SetDefault("cache.memory_ttl", "0s")
	v.SetDefault("cache.disabled", false)
	v.SetDefault("templates.dirs", []string{})
	v.SetDefault("include.dirs", []string{})

	v.SetDefault("render.template_style", r.TemplateStyle)
	v.SetDefault("render.honor_pauses", r.HonorPauses)
	v.SetDefault("render.collapse_animation", r.CollapseAnimation)
	v.SetDefault("render.index_filename", r.IndexFilename)
	v.SetDefault("render.resource_uri", r.ResourceURI)
	v.SetDefault("render.geometry", r.Geometry.String())
	v.SetDefault("render.image_max_dimension", r.ImageMaxDimension)
	v.SetDefault("render.presentation_mode", string(r.PresentationMode))
	v.SetDefault("render.inject_reload", r.InjectReload)
	v.SetDefault("render.trustworthy", r.Trustworthy)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8123")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.min_version", "1.2")

	v.SetDefault("db.path", "~/.local/share/slidepress/slidepress.db")
	v.SetDefault("svg.font_severity", "warn")
}

// New returns a viper instance searching the usual config locations and
// reading SLIDEPRESS_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "slidepress"))
	}
	v.AddConfigPath("/etc/slidepress")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// ReadInConfig reads the first config file found. A missing file is not
// an error.
func ReadInConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func geometryHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(models.Geometry{}) || from.Kind() != reflect.String {
		return data, nil
	}
	return models.ParseGeometry(data.(string))
}

func modeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(models.ModeInteractive) || from.Kind() != reflect.String {
		return data, nil
	}
	return models.ParsePresentationMode(data.(string))
}

// Load decodes the settings of v, expands home directories and validates
// the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := new(Config)
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.DecodeHookFuncType(geometryHook),
		mapstructure.DecodeHookFuncType(modeHook),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	var err error
	for _, p := range []*string{&cfg.Cache.Dir, &cfg.DB.Path, &cfg.Server.TLS.CertFile, &cfg.Server.TLS.KeyFile} {
		if *p, err = homedir.Expand(*p); err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", *p, err)
		}
	}
	for _, dirs := range [][]string{cfg.Templates.Dirs, cfg.Include.Dirs} {
		for i := range dirs {
			if dirs[i], err = homedir.Expand(dirs[i]); err != nil {
				return nil, fmt.Errorf("failed to expand %s: %w", dirs[i], err)
			}
		}
	}

	switch cfg.Cache.Backend {
	case BackendFiles, BackendBolt:
	default:
		return nil, fmt.Errorf("unknown cache backend %q (must be %s or %s)", cfg.Cache.Backend, BackendFiles, BackendBolt)
	}
	if _, err := svg.ParseSeverity(cfg.SVG.FontSeverity); err != nil {
		return nil, err
	}
	if cfg.Server.TLS.Enabled && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		return nil, fmt.Errorf("TLS is enabled but server.tls.cert or server.tls.key is missing")
	}
	return cfg, nil
}

// RenderingParameters returns the rendering parameters with the configured
// template and include directories merged in.
func (c *Config) RenderingParameters() *models.RenderingParameters {
	p := c.Render
	if p.TemplateStyleOpts == nil {
		p.TemplateStyleOpts = make(map[string]string)
	}
	p.ExtraTemplateDirs = append(append([]string(nil), c.Templates.Dirs...), p.ExtraTemplateDirs...)
	p.IncludeDirs = append(append([]string(nil), c.Include.Dirs...), p.IncludeDirs...)
	return &p
}

// FontSeverity returns the severity of missing SVG fonts.
func (c *Config) FontSeverity() svg.Severity {
	s, _ := svg.ParseSeverity(c.SVG.FontSeverity)
	return s
}

// OpenStore opens the configured cache store. The returned function
// releases the store.
func (c *Config) OpenStore() (cache.Inventory, func() error, error) {
	if err := os.MkdirAll(c.Cache.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if c.Cache.Backend == BackendBolt {
		store, err := cache.NewBoltStore(filepath.Join(c.Cache.Dir, "cache.bdb"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return cache.NewFileStore(c.Cache.Dir), func() error { return nil }, nil
}

// OpenCache opens the configured renderer cache. The returned function
// releases the store.
func (c *Config) OpenCache() (*cache.Cache, func() error, error) {
	store, release, err := c.OpenStore()
	if err != nil {
		return nil, nil, err
	}
	return cache.New(store, c.Cache.MemoryTTL), release, nil
}

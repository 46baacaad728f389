package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"slidepress/internal/models"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
			t.Fatal(err)
		}
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	home, err := homedir.Dir()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Cache.Dir != filepath.Join(home, ".cache", "slidepress") {
		t.Errorf("cache dir = %s", cfg.Cache.Dir)
	}
	if cfg.Cache.Backend != BackendFiles || cfg.Server.Addr() != "localhost:8123" {
		t.Errorf("cfg = %+v", cfg)
	}
	want := models.DefaultRenderingParameters()
	r := cfg.RenderingParameters()
	if r.TemplateStyle != want.TemplateStyle || r.Geometry != want.Geometry || r.PresentationMode != want.PresentationMode || !r.HonorPauses {
		t.Errorf("render = %+v", r)
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(newViper(t, `
cache:
  backend: bolt
  memory_ttl: 5m
templates:
  dirs: ["~/tpl"]
render:
  geometry: 800x600
  presentation_mode: handout
  template_style_opts:
    font-size: "30"
server:
  port: "9000"
svg:
  font_severity: error
`))
	if err != nil {
		t.Fatal(err)
	}
	home, _ := homedir.Dir()

	if cfg.Cache.Backend != BackendBolt || cfg.Cache.MemoryTTL != 5*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	r := cfg.RenderingParameters()
	if r.Geometry != (models.Geometry{Width: 800, Height: 600}) || r.PresentationMode != models.ModeHandout {
		t.Errorf("render = %+v", r)
	}
	if r.TemplateStyleOpts["font-size"] != "30" {
		t.Errorf("style opts = %v", r.TemplateStyleOpts)
	}
	if len(r.ExtraTemplateDirs) != 1 || r.ExtraTemplateDirs[0] != filepath.Join(home, "tpl") {
		t.Errorf("template dirs = %v", r.ExtraTemplateDirs)
	}
	if cfg.Server.Addr() != "localhost:9000" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"backend", "cache:\n  backend: redis\n"},
		{"geometry", "render:\n  geometry: huge\n"},
		{"mode", "render:\n  presentation_mode: kiosk\n"},
		{"severity", "svg:\n  font_severity: loud\n"},
		{"tls", "server:\n  tls:\n    enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(newViper(t, tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv(EnvPrefix+"_SERVER_PORT", "9999")
	t.Setenv(EnvPrefix+"_CACHE_DIR", t.TempDir())

	v := New()
	if err := ReadInConfig(v); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9999" || cfg.Cache.Dir != os.Getenv(EnvPrefix+"_CACHE_DIR") {
		t.Fatalf("environment ignored: %+v", cfg)
	}
}

func TestOpenCache(t *testing.T) {
	for _, backend := range []string{BackendFiles, BackendBolt} {
		t.Run(backend, func(t *testing.T) {
			cfg := &Config{Cache: CacheConfig{Dir: filepath.Join(t.TempDir(), "c"), Backend: backend}}
			c, closeFn, err := cfg.OpenCache()
			if err != nil {
				t.Fatal(err)
			}
			if c == nil {
				t.Fatal("nil cache")
			}
			if err := closeFn(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

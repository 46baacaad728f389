package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"slidepress/internal/cache"
	"slidepress/internal/config"
	"slidepress/internal/db"
	"slidepress/internal/errs"
	"slidepress/internal/models"
	"slidepress/internal/pipeline"
	"slidepress/internal/presentation"
	"slidepress/internal/renderers"
	"slidepress/internal/services"
	"slidepress/internal/svg"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "development"

// session bundles the long-lived objects of one command invocation.
type session struct {
	cfg      *config.Config
	params   *models.RenderingParameters
	cache    cache.Provider
	registry *services.BuildRegistry
	runner   renderers.ExecRunner

	closers []func() error
}

// openSession opens the renderer cache and, if withDB is set, the build
// database. A database that cannot be opened only disables the build
// history.
func openSession(cfg *config.Config, withDB bool) (*session, error) {
	s := &session{
		cfg:    cfg,
		params: cfg.RenderingParameters(),
		runner: renderers.ExecRunner{Verbose: verbosity > 0},
	}

	if withDB {
		database, err := db.Open(cfg.DB.Path)
		if err != nil {
			log.Printf("Warning: build history disabled: %v", err)
		} else {
			s.registry = services.NewBuildRegistry(database)
			s.closers = append(s.closers, database.Close)
		}
	}

	if cfg.Cache.Disabled {
		s.cache = cache.Uncached{}
		return s, nil
	}
	c, closeStore, err := cfg.OpenCache()
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "opening renderer cache")
	}
	if s.registry != nil {
		c.SetIndexer(s.registry)
	}
	s.cache = c
	s.closers = append(s.closers, closeStore)
	return s, nil
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	s.closers = nil
}

func (s *session) loader() *presentation.Loader {
	l := presentation.NewLoader(s.params.IncludeDirs...)
	l.Injected = s.params.InjectedMetadata
	return l
}

func (s *session) load(input string) (*presentation.Presentation, error) {
	pres, err := s.loader().Load(input)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", input)
	}
	return pres, nil
}

func (s *session) renderer() (*pipeline.Renderer, error) {
	validator := svg.NewValidator(s.cfg.FontSeverity())
	return pipeline.New(pipeline.Options{
		Params:    s.params,
		Cache:     s.cache,
		Renderers: renderers.NewRegistry(s.runner, validator),
		Runner:    s.runner,
		Version:   "slidepress " + Version,
	})
}

// render loads and renders input in one go.
func (s *session) render(ctx context.Context, input string) (*pipeline.Result, error) {
	pres, err := s.load(input)
	if err != nil {
		return nil, err
	}
	r, err := s.renderer()
	if err != nil {
		return nil, err
	}
	result, err := r.Render(ctx, pres)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering %s", input)
	}
	return result, nil
}

// renderScratch renders input into a temporary directory that is removed
// afterwards. The commands inspecting a presentation need all passes to
// have run but no output.
func (s *session) renderScratch(ctx context.Context, input string) (*pipeline.Result, error) {
	dir, err := os.MkdirTemp("", "slidepress-")
	if err != nil {
		return nil, errors.Wrap(err, "creating scratch directory")
	}
	defer os.RemoveAll(dir)

	s.params.DeployDir = dir
	s.params.ResourceDir = dir
	return s.render(ctx, input)
}

// readInjectedMetadata reads the JSON object in filename.
func readInjectedMetadata(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errs.Wrap(errs.KindFileLookup, err, "failed to read injected metadata").WithFile(filename)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.Wrap(errs.KindMalformedJSON, err, "injected metadata must be a JSON object").WithFile(filename)
	}
	return meta, nil
}

// absAll returns the absolute form of every path.
func absAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			out = append(out, abs)
		} else {
			out = append(out, p)
		}
	}
	return out
}

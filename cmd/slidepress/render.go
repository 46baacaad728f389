package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"slidepress/internal/config"
	"slidepress/internal/errs"
	"slidepress/internal/handlers"
	"slidepress/internal/models"
	"slidepress/internal/presentation"
	"slidepress/internal/services"
	"slidepress/internal/templates"
)

// renderFlagKeys maps the rendering flags to their configuration keys.
var renderFlagKeys = map[string]string{
	"template-style":      "render.template_style",
	"collapse-animation":  "render.collapse_animation",
	"index-filename":      "render.index_filename",
	"geometry":            "render.geometry",
	"image-max-dimension": "render.image_max_dimension",
	"presentation-mode":   "render.presentation_mode",
	"trustworthy":         "render.trustworthy",
	"bind":                "server.host",
	"port":                "server.port",
}

// addRenderFlags registers the flags every command rendering a
// presentation accepts.
func addRenderFlags(flags *pflag.FlagSet) {
	defaults := models.DefaultRenderingParameters()

	flags.StringP("template-style", "t", defaults.TemplateStyle, "template style to use")
	flags.StringArrayP("style-option", "o", nil, "template style option in the form key=value; can be given more than once")
	flags.BoolP("remove-pauses", "r", false, "ignore all pause directives and render only the final slides")
	flags.Bool("collapse-animation", false, "render animations as one complete slide")
	flags.StringArray("template-dir", nil, "additional template directory; can be given more than once")
	flags.StringArrayP("include-dir", "I", nil, "additional include directory; can be given more than once")
	flags.StringP("index-filename", "i", defaults.IndexFilename, "name of the presentation index file")
	flags.StringP("resource-dir", "R", "", "resource directory and the URI it is served under, as path:uri")
	flags.StringP("geometry", "g", defaults.Geometry.String(), "slide geometry in pixels, as WIDTHxHEIGHT")
	flags.Int("image-max-dimension", defaults.ImageMaxDimension, "maximum dimension images are downscaled to")
	flags.StringP("presentation-mode", "m", string(defaults.PresentationMode), "interactive or handout")
	flags.StringArrayP("feature", "e", nil, "enable a presentation feature; can be given more than once")
	flags.StringP("inject-metadata", "j", "", "JSON file whose keys override the metadata of the presentation")
	flags.Bool("trustworthy", false, "allow hooks that execute commands from the presentation")
}

// renderConfig loads the configuration and applies the rendering flags of
// cmd that have no configuration key of their own. Flags cmd does not
// define are skipped.
func renderConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd, renderFlagKeys)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	templateDirs, _ := flags.GetStringArray("template-dir")
	cfg.Render.ExtraTemplateDirs = append(cfg.Render.ExtraTemplateDirs, templateDirs...)
	includeDirs, _ := flags.GetStringArray("include-dir")
	cfg.Render.IncludeDirs = append(cfg.Render.IncludeDirs, includeDirs...)
	features, _ := flags.GetStringArray("feature")
	cfg.Render.PresentationFeatures = append(cfg.Render.PresentationFeatures, features...)
	if remove, _ := flags.GetBool("remove-pauses"); remove {
		cfg.Render.HonorPauses = false
	}

	opts, _ := flags.GetStringArray("style-option")
	parsed, err := templates.ParseStyleOpts(opts)
	if err != nil {
		return nil, err
	}
	if cfg.Render.TemplateStyleOpts == nil {
		cfg.Render.TemplateStyleOpts = make(map[string]string)
	}
	for k, v := range parsed {
		cfg.Render.TemplateStyleOpts[k] = v
	}

	if name, _ := flags.GetString("inject-metadata"); name != "" {
		meta, err := readInjectedMetadata(name)
		if err != nil {
			return nil, err
		}
		cfg.Render.InjectedMetadata = meta
	}

	if resource, _ := flags.GetString("resource-dir"); resource != "" {
		dir, uri, ok := strings.Cut(resource, ":")
		if !ok {
			return nil, errs.Newf(errs.KindUnknownParameter, "not a valid resource directory/URI combination: %s", resource)
		}
		cfg.Render.ResourceDir = dir
		cfg.Render.ResourceURI = uri
	}

	return cfg, nil
}

func newRenderCmd() *cobra.Command {
	desc := `Render a presentation

  Renders the XML presentation in <in.xml> into <outdir>. With --watch the
  presentation is rendered again whenever one of its sources, templates or
  include files changes; with --serve the output is served over HTTP and
  browsers reload after every successful render.`

	cmd := &cobra.Command{
		Use:   "render <in.xml> <outdir>",
		Short: "Render a presentation",
		Long:  desc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, outdir := args[0], args[1]

			force := MustGetBool(cmd.Flags(), "force")
			if err := checkOutdir(outdir, force); err != nil {
				return err
			}

			cfg, err := renderConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cfg, true)
			if err != nil {
				return err
			}
			defer s.Close()

			var (
				watch = MustGetBool(cmd.Flags(), "watch")
				serve = MustGetBool(cmd.Flags(), "serve")
				extra = MustGetStringArray(cmd.Flags(), "re-render-watch")
			)

			s.params.DeployDir = outdir
			if s.params.ResourceDir == "" {
				s.params.ResourceDir = outdir
			}
			if watch && serve {
				s.params.InjectReload = true
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := &builder{
				session: s,
				input:   input,
				outdir:  outdir,
				extra:   extra,
				state:   services.NewRenderState(),
			}

			if !watch && !serve {
				return b.build(ctx)
			}

			g, ctx := errgroup.WithContext(ctx)
			if serve {
				b.hub = services.NewReloadHub()
				router := handlers.SetupRoutes(outdir, handlers.NewBuildHandler(s.registry, b.state), b.hub)
				g.Go(func() error { return b.hub.Run(ctx) })
				g.Go(func() error { return serveHTTP(ctx, s.cfg.Server, router) })
			}

			if err := b.build(ctx); err != nil {
				if !watch {
					stop()
					g.Wait()
					return err
				}
				warnf("%v", err)
			}

			if watch {
				w := services.NewWatcher(b.watchPaths, b.build)
				g.Go(func() error { return w.Run(ctx) })
			}
			return g.Wait()
		},
	}

	addRenderFlags(cmd.Flags())
	cmd.Flags().BoolP("force", "f", false, "overwrite files in the output directory if it is not empty")
	cmd.Flags().BoolP("watch", "w", false, "stay running and render again whenever a source changes")
	cmd.Flags().Bool("serve", false, "serve the output directory over HTTP")
	cmd.Flags().StringArray("re-render-watch", nil, "additional file or directory whose change triggers a new render; can be given more than once")
	cmd.Flags().StringP("bind", "b", "localhost", "address to serve on")
	cmd.Flags().StringP("port", "p", "8123", "port to serve on")

	return cmd
}

// checkOutdir refuses to render into a non-empty directory unless force
// is set.
func checkOutdir(outdir string, force bool) error {
	if force {
		return nil
	}
	entries, err := os.ReadDir(outdir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading %s", outdir)
	}
	if len(entries) > 0 {
		return errs.Newf(errs.KindConfigConflict, "refusing to overwrite %s (use --force)", outdir)
	}
	return nil
}

// builder renders one presentation, possibly many times over.
type builder struct {
	*session

	input  string
	outdir string
	extra  []string
	state  *services.RenderState
	hub    *services.ReloadHub

	mu   sync.Mutex
	deps []string
}

// build renders the presentation once, recording the build in the
// registry and notifying connected browsers.
func (b *builder) build(ctx context.Context) error {
	start := time.Now()

	l := b.loader()
	pres, err := l.Load(b.input)
	if err != nil {
		err = errors.Wrapf(err, "loading %s", b.input)
		b.finish(nil, 0, err)
		return err
	}

	hash := ""
	if deps, err := pres.Dependencies(l); err != nil {
		log.Printf("Warning: unable to determine dependencies: %v", err)
	} else {
		b.mu.Lock()
		b.deps = deps
		b.mu.Unlock()
		if hash, err = presentation.HashFiles(deps); err != nil {
			log.Printf("Warning: unable to hash sources: %v", err)
		}
	}

	var record *models.BuildRecord
	if b.registry != nil {
		source, _ := filepath.Abs(b.input)
		if record, err = b.registry.StartBuild(source, b.outdir, hash); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	r, err := b.renderer()
	if err != nil {
		b.finish(record, 0, err)
		return err
	}
	result, err := r.Render(ctx, pres)
	if err != nil {
		err = errors.Wrapf(err, "rendering %s", b.input)
		b.finish(record, 0, err)
		return err
	}

	log.Printf("Rendered %d slides of %s to %s in %s", len(result.Slides), b.input, result.IndexPath, time.Since(start).Round(time.Millisecond))
	summary := b.finish(record, len(result.Slides), nil)
	summary.Schedule = result.Schedule
	summary.TotalTime = result.Presentation.PresentationSeconds()
	b.state.Set(summary)
	if b.hub != nil {
		b.hub.Reload(summary.BuildID)
	}
	return nil
}

// finish records the outcome of a build. Failed builds are reported to the
// render state and connected browsers here; successful ones by the caller
// once the schedule is known.
func (b *builder) finish(record *models.BuildRecord, slides int, buildErr error) services.RenderSummary {
	summary := services.RenderSummary{
		Source:     b.input,
		SlideCount: slides,
		FinishedAt: time.Now(),
		Successful: buildErr == nil,
	}
	if record != nil {
		summary.BuildID = record.ID
		if err := b.registry.FinishBuild(record.ID, slides, buildErr); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	if buildErr == nil {
		return summary
	}

	summary.Error = buildErr.Error()
	b.state.Set(summary)
	if b.hub != nil {
		b.hub.Publish(services.ReloadMessage{Type: services.MessageError, BuildID: summary.BuildID, Error: summary.Error})
	}
	return summary
}

// watchPaths returns the dependencies of the last successful load plus the
// template, include and explicitly watched directories that exist.
func (b *builder) watchPaths() ([]string, error) {
	b.mu.Lock()
	paths := append([]string{b.input}, b.deps...)
	b.mu.Unlock()

	if user, err := homedir.Expand(templates.UserDir); err == nil {
		paths = append(paths, user)
	}
	paths = append(paths, b.params.ExtraTemplateDirs...)
	paths = append(paths, b.params.IncludeDirs...)
	paths = append(paths, b.extra...)

	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range absAll(paths) {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("none of the sources of %s exist", b.input)
	}
	return out, nil
}

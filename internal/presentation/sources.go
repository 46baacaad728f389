package presentation

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/kballard/go-shellquote"

	"slidepress/internal/models"
	"slidepress/internal/renderers"
	"slidepress/internal/xmlutil"
)

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// srcHooks read the file named by their src attribute.
var srcHooks = map[string]bool{
	"img":      true,
	"code":     true,
	"term":     true,
	"plot":     true,
	"graphviz": true,
	"dtg":      true,
	"file":     true,
}

// Dependencies returns every file the rendered output depends on: the XML
// sources, acronym databases and files referenced by hooks. Paths are
// absolute, unique and sorted.
func (p *Presentation) Dependencies(l *Loader) ([]string, error) {
	deps := make(map[string]bool)
	for _, src := range p.Sources {
		deps[src] = true
	}

	add := func(from, name string) error {
		path, err := l.lookup(from, name)
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		deps[abs] = true
		return nil
	}

	for _, d := range p.Directives {
		switch d := d.(type) {
		case *AcronymRef:
			deps[d.Path] = true
		case *Slide:
			var walkErr error
			xmlutil.Walk(d.Element, func(el *etree.Element) bool {
				if walkErr != nil || !xmlutil.IsHook(el) {
					return walkErr == nil
				}
				if srcHooks[el.Tag] {
					if src := el.SelectAttrValue("src", ""); src != "" {
						walkErr = add(d.Source, src)
					}
				} else if el.Tag == "exec" {
					// Executables not found in the include directories come
					// from $PATH and are not tracked.
					cmd, err := shellquote.Split(el.SelectAttrValue("cmd", ""))
					if err == nil && len(cmd) > 0 {
						_ = add(d.Source, cmd[0])
					}
				}
				return true
			})
			if walkErr != nil {
				return nil, walkErr
			}
		}
	}

	out := make([]string, 0, len(deps))
	for path := range deps {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

// HashFiles returns the hex MD5 over the contents of files, in order.
func HashFiles(files []string) (string, error) {
	h := md5.New()
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", name, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hash returns the hash over all dependencies of the presentation.
func (p *Presentation) Hash(l *Loader) (string, error) {
	deps, err := p.Dependencies(l)
	if err != nil {
		return "", err
	}
	return HashFiles(deps)
}

// VersionInfo returns the SHA256 and, when the file is tracked by git, the
// last commit of every XML source. runner may be nil to skip git.
func (p *Presentation) VersionInfo(ctx context.Context, runner renderers.Runner) ([]models.SourceVersion, error) {
	out := make([]models.SourceVersion, 0, len(p.Sources))
	for _, src := range p.Sources {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src, err)
		}
		sum := sha256.Sum256(data)
		v := models.SourceVersion{Filename: src, SHA256: hex.EncodeToString(sum[:])}
		if runner != nil {
			stdout, _, err := runner.Run(ctx, renderers.Command{
				Name: "git",
				Args: []string{"rev-list", "-1", "--all", filepath.Base(src)},
				Dir:  filepath.Dir(src),
			})
			if err == nil {
				v.Git = strings.TrimSpace(string(stdout))
			}
		}
		out = append(out, v)
	}
	return out, nil
}

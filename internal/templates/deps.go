package templates

import (
	"fmt"
	"sort"

	"slidepress/internal/highlight"
	"slidepress/internal/rendered"
)

// HighlightCSS is the generated stylesheet of the highlight feature.
const HighlightCSS = TargetDir + "highlight.css"

// Install copies the files of deps to the resource directory and registers
// the stylesheets and scripts with p. Stylesheets marked for rendering are
// executed with data first.
func (s *Set) Install(p *rendered.Presentation, deps Dependencies, data any) error {
	for _, name := range deps.Static {
		if err := s.copy(p, name); err != nil {
			return err
		}
	}
	for _, css := range deps.CSS {
		if css.Render {
			content, err := s.ExecuteText(css.Name, data)
			if err != nil {
				return err
			}
			if err := p.AddFile(TargetDir+css.Name, content); err != nil {
				return err
			}
		} else if err := s.copy(p, css.Name); err != nil {
			return err
		}
		p.AddCSS(TargetDir+css.Name, css.Order)
	}
	for _, name := range deps.JS {
		if err := s.copy(p, name); err != nil {
			return err
		}
		p.AddJS(TargetDir + name)
	}
	return nil
}

func (s *Set) copy(p *rendered.Presentation, name string) error {
	if p.HasFile(TargetDir + name) {
		return nil
	}
	content, err := s.ReadFile(name)
	if err != nil {
		return err
	}
	return p.AddFile(TargetDir+name, content)
}

// InstallAll installs the files every presentation needs, then those of
// each slide type used and each enabled feature. The highlight feature
// additionally gets the code stylesheet named by the highlight-style option.
func (s *Set) InstallAll(p *rendered.Presentation, slideTypes []string, data any) error {
	if err := s.Install(p, s.Config.Files, data); err != nil {
		return fmt.Errorf("failed to install template files: %w", err)
	}

	types := append([]string(nil), slideTypes...)
	sort.Strings(types)
	for _, t := range types {
		if deps, ok := s.Config.Dependencies.SlideType[t]; ok {
			if err := s.Install(p, deps, data); err != nil {
				return fmt.Errorf("failed to install dependencies of slide type %s: %w", t, err)
			}
		}
	}

	for _, f := range p.Features() {
		if deps, ok := s.Config.Dependencies.Feature[f]; ok {
			if err := s.Install(p, deps, data); err != nil {
				return fmt.Errorf("failed to install dependencies of feature %s: %w", f, err)
			}
		}
	}

	if p.HasFeature(rendered.FeatureHighlight) {
		style, _ := s.Style["highlight-style"].(string)
		css, err := highlight.CSS(style)
		if err != nil {
			return fmt.Errorf("failed to generate highlight stylesheet: %w", err)
		}
		if err := p.AddFile(HighlightCSS, []byte(css)); err != nil {
			return err
		}
		p.AddCSS(HighlightCSS, nil)
	}
	return nil
}

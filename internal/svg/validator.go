package svg

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"slidepress/internal/errs"
)

// Severity controls how the validator reacts to problems.
type Severity int

const (
	SeverityIgnore Severity = iota
	SeverityWarn
	SeverityError
)

// ParseSeverity maps "ignore", "warn" and "error".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "ignore", "off", "":
		return SeverityIgnore, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error", "fail":
		return SeverityError, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// FontLookup reports whether a font family is installed.
type FontLookup func(ctx context.Context, family string) (bool, error)

// FontConfigLookup asks fontconfig via fc-list.
func FontConfigLookup(ctx context.Context, family string) (bool, error) {
	out, err := exec.CommandContext(ctx, "fc-list", family).Output()
	if err != nil {
		return false, fmt.Errorf("failed to run fc-list: %w", err)
	}
	return len(strings.TrimSpace(string(out))) > 0, nil
}

// Validator checks SVG files for fonts that are not available locally.
type Validator struct {
	Severity Severity
	Lookup   FontLookup
	Warnf    func(format string, args ...any)

	mu    sync.Mutex
	known map[string]bool
}

// NewValidator creates a validator using fc-list
func NewValidator(severity Severity) *Validator {
	return &Validator{
		Severity: severity,
		Lookup:   FontConfigLookup,
		Warnf:    log.Printf,
		known:    make(map[string]bool),
	}
}

func (v *Validator) haveFont(ctx context.Context, family string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if have, ok := v.known[family]; ok {
		return have, nil
	}
	have, err := v.Lookup(ctx, family)
	if err != nil {
		return false, err
	}
	v.known[family] = have
	return have, nil
}

// Validate inspects the fonts used by text and tspan elements of doc.
func (v *Validator) Validate(ctx context.Context, name string, doc *Document) error {
	if v.Severity == SeverityIgnore {
		return nil
	}

	reported := make(map[string]bool)
	for _, el := range doc.Root().FindElements(".//*") {
		if el.Tag != "text" && el.Tag != "tspan" {
			continue
		}
		family := fontFamily(el)
		if family == "" || reported[family] {
			continue
		}

		have, err := v.haveFont(ctx, family)
		if err != nil {
			return err
		}
		if have {
			continue
		}
		reported[family] = true

		if v.Severity == SeverityError {
			return errs.Newf(errs.KindUndefinedFont, "SVG file %s has missing font: %s", name, family)
		}
		v.Warnf("Warning: SVG file %s has missing font: %s", name, family)
	}
	return nil
}

func fontFamily(el *etree.Element) string {
	family := StyleOf(el).Get("font-family")
	if family == "" {
		family = el.SelectAttrValue("font-family", "")
	}
	if len(family) >= 2 && family[0] == '\'' && family[len(family)-1] == '\'' {
		family = family[1 : len(family)-1]
	}
	return family
}

// Package xmlhooks rewrites the authoring-namespace elements of a slide into
// plain HTML. Each element name is handled by a Hook; the Registry walks a
// DOM tree in document order and dispatches to them.
package xmlhooks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"

	"slidepress/internal/errs"
	"slidepress/internal/rendered"
	"slidepress/internal/xmlutil"
)

// reserved elements are structural markers consumed elsewhere. They are
// kept and descended into.
var reserved = map[string]bool{
	"var":     true,
	"pause":   true,
	"content": true,
	"param":   true,
	"format":  true,
}

type action int

const (
	actionRemove action = iota
	actionKeep
	actionReplace
)

// Result tells the registry what to do with a handled element.
type Result struct {
	action  action
	nodes   []etree.Token
	descend bool
}

// Remove deletes the element.
func Remove() Result {
	return Result{action: actionRemove}
}

// Keep leaves the element in place and descends into it.
func Keep() Result {
	return Result{action: actionKeep}
}

// Replace puts nodes where the element was. With descend set, the
// replacement is walked as well; otherwise hooks and typographic
// substitution are not applied below it.
func Replace(descend bool, nodes ...etree.Token) Result {
	return Result{action: actionReplace, nodes: nodes, descend: descend}
}

// Hook handles one element name of the authoring namespace.
type Hook interface {
	Tag() string
	Handle(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error)
}

// HandlerFunc is the signature of a hook implementation.
type HandlerFunc func(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error)

type funcHook struct {
	tag string
	fn  HandlerFunc
}

func (h funcHook) Tag() string { return h.tag }

func (h funcHook) Handle(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	return h.fn(ctx, p, el)
}

// NewHook creates a hook from a function.
func NewHook(tag string, fn HandlerFunc) Hook {
	return funcHook{tag: tag, fn: fn}
}

// Registry maps element names to hooks.
type Registry struct {
	hooks map[string]Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// Default creates a registry holding every built-in hook.
func Default() *Registry {
	r := NewRegistry()
	for _, h := range builtin() {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a hook. Names must be unique and not reserved.
func (r *Registry) Register(h Hook) error {
	name := h.Tag()
	if name == "" {
		return fmt.Errorf("hook has no tag name")
	}
	if reserved[name] {
		return fmt.Errorf("hook name %q is reserved", name)
	}
	if _, ok := r.hooks[name]; ok {
		return fmt.Errorf("duplicate hook name %q", name)
	}
	r.hooks[name] = h
	return nil
}

// Override replaces or adds a hook regardless of existing registrations.
func (r *Registry) Override(h Hook) {
	r.hooks[h.Tag()] = h
}

// Names returns the registered hook names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mangle rewrites the children of root in place. Comments are dropped and
// dashes in text are replaced by their typographic forms.
func (r *Registry) Mangle(ctx context.Context, root *etree.Element, p *rendered.Presentation) error {
	return r.walkChildren(ctx, root, p)
}

func (r *Registry) walkChildren(ctx context.Context, el *etree.Element, p *rendered.Presentation) error {
	children := append([]etree.Token(nil), el.Child...)
	for _, tok := range children {
		if err := r.walkToken(ctx, tok, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) walkToken(ctx context.Context, tok etree.Token, p *rendered.Presentation) error {
	switch t := tok.(type) {
	case *etree.Comment:
		xmlutil.Remove(t)
	case *etree.CharData:
		if !t.IsCData() {
			if s := Typography(t.Data); s != t.Data {
				t.Data = s
			}
		}
	case *etree.Element:
		return r.visit(ctx, t, p)
	}
	return nil
}

func (r *Registry) visit(ctx context.Context, el *etree.Element, p *rendered.Presentation) error {
	if !xmlutil.IsHook(el) || reserved[el.Tag] {
		return r.walkChildren(ctx, el, p)
	}

	hook, ok := r.hooks[el.Tag]
	if !ok {
		p.Warnf("Warning: Unknown hook '%s' used in source document.", el.Tag)
		return r.walkChildren(ctx, el, p)
	}

	res, err := hook.Handle(ctx, p, el)
	if err != nil {
		if e, ok := errs.As(err); ok && e.Slide == 0 {
			e.WithSlide(p.CurrentSlideNumber())
		}
		return fmt.Errorf("failed to handle <%s:%s>: %w", xmlutil.Prefix, el.Tag, err)
	}

	switch res.action {
	case actionRemove:
		xmlutil.Remove(el)
	case actionKeep:
		return r.walkChildren(ctx, el, p)
	case actionReplace:
		if err := xmlutil.Replace(el, res.nodes); err != nil {
			return err
		}
		if res.descend {
			for _, tok := range res.nodes {
				if err := r.walkToken(ctx, tok, p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

var dashes = strings.NewReplacer("---", "—", "--", "–")

// Typography replaces "---" by an em dash and "--" by an en dash.
func Typography(s string) string {
	if !strings.Contains(s, "--") {
		return s
	}
	return dashes.Replace(s)
}

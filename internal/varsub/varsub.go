// Package varsub evaluates nested variable definitions whose string values
// may embed {expression} placeholders referring to other variables.
//
// Values are evaluated lazily on first access and memoized. Expressions are
// evaluated by expr-lang with these bindings:
//
//	v(path...)              value of another variable, e.g. v("time", "hrs")
//	int(x), float(x), str(x)
//	datetm.parse(s[, fmt])  date with add_days(n) and strftime(fmt)
package varsub

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"slidepress/internal/errs"
)

type evaluated struct {
	value any
}

// Container holds a tree of maps, lists and scalar values.
type Container struct {
	root       map[string]any
	evaluating map[string]bool
	programs   map[string]*vm.Program
	env        map[string]any
}

// New wraps content. Content is modified in place as values are evaluated,
// so callers pass a copy when they need the raw form later.
func New(content map[string]any) *Container {
	if content == nil {
		content = make(map[string]any)
	}
	c := &Container{
		root:       content,
		evaluating: make(map[string]bool),
		programs:   make(map[string]*vm.Program),
	}
	c.env = map[string]any{
		"datetm": datetmModule(),
	}
	return c
}

// Merge copies src into dst, merging nested maps key by key. dst is
// returned.
func Merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				dst[k] = Merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// Get returns the evaluated value at path. Path elements are map keys, or
// list indices given as int or decimal string. Maps and lists are returned
// unevaluated; use EvaluateAll for a fully materialized tree.
func (c *Container) Get(path ...any) (any, error) {
	if len(path) == 0 {
		return nil, errs.New(errs.KindMissingVariable, "empty variable path")
	}

	var parent any = c.root
	keys := make([]string, 0, len(path))
	for i, p := range path {
		key := fmt.Sprint(p)
		keys = append(keys, key)
		child, err := lookup(parent, p)
		if err != nil {
			return nil, errs.Wrap(errs.KindMissingVariable, err, "no variable %s", strings.Join(keys, "."))
		}
		if i < len(path)-1 {
			parent = child
			continue
		}
		return c.evaluate(parent, p, child, strings.Join(keys, "."))
	}
	return nil, nil
}

func lookup(parent any, p any) (any, error) {
	switch container := parent.(type) {
	case map[string]any:
		v, ok := container[fmt.Sprint(p)]
		if !ok {
			return nil, fmt.Errorf("key %q not found", fmt.Sprint(p))
		}
		return v, nil
	case []any:
		idx, err := index(p)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(container) {
			return nil, fmt.Errorf("index %d out of range", idx)
		}
		return container[idx], nil
	case evaluated:
		return lookup(container.value, p)
	}
	return nil, fmt.Errorf("%T has no members", parent)
}

func index(p any) (int, error) {
	switch x := p.(type) {
	case int:
		return x, nil
	case string:
		return strconv.Atoi(x)
	}
	return 0, fmt.Errorf("invalid list index %v", p)
}

func store(parent any, p any, v any) {
	switch container := parent.(type) {
	case map[string]any:
		container[fmt.Sprint(p)] = evaluated{v}
	case []any:
		if idx, err := index(p); err == nil {
			container[idx] = evaluated{v}
		}
	}
}

func (c *Container) evaluate(parent, p, element any, key string) (any, error) {
	switch e := element.(type) {
	case evaluated:
		return e.value, nil
	case string:
		if c.evaluating[key] {
			return nil, errs.Newf(errs.KindInfiniteRecursion, "infinite recursion when evaluating variable %s", key)
		}
		c.evaluating[key] = true
		value, err := c.Evaluate(e)
		delete(c.evaluating, key)
		if err != nil {
			if errs.IsKind(err, errs.KindInfiniteRecursion) {
				return nil, err
			}
			return nil, errs.Wrap(errs.KindInvalidExpression, err, "failed to evaluate variable %s", key)
		}
		store(parent, p, value)
		return value, nil
	}
	return element, nil
}

// Evaluate expands the placeholders of a template string.
func (c *Container) Evaluate(template string) (string, error) {
	segs, err := parseTemplate(template)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range segs {
		if !seg.isExpr {
			b.WriteString(seg.literal)
			continue
		}
		v, err := c.Eval(seg.expr)
		if err != nil {
			return "", err
		}
		s, err := formatValue(v, seg.format)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// Eval evaluates a single expression.
func (c *Container) Eval(code string) (any, error) {
	program, ok := c.programs[code]
	if !ok {
		var err error
		program, err = expr.Compile(code,
			expr.Env(c.env),
			expr.Function("v", func(params ...any) (any, error) {
				return c.Get(params...)
			}),
			expr.Function("str", func(params ...any) (any, error) {
				if len(params) != 1 {
					return nil, fmt.Errorf("str takes one argument")
				}
				return stringify(params[0]), nil
			}),
		)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidExpression, err, "invalid expression %q", code)
		}
		c.programs[code] = program
	}
	out, err := expr.Run(program, c.env)
	if err != nil {
		if errs.IsKind(err, errs.KindInfiniteRecursion) || errs.IsKind(err, errs.KindMissingVariable) {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindInvalidExpression, err, "failed to evaluate %q", code)
	}
	return out, nil
}

// EvaluateAll evaluates every value and returns the materialized tree.
func (c *Container) EvaluateAll() (map[string]any, error) {
	out, err := c.evaluateTree(c.root, nil)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (c *Container) evaluateTree(node any, path []any) (any, error) {
	switch n := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(n))
		for _, k := range keys {
			v, err := c.evaluateChild(n[k], append(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case []any:
		out := make([]any, len(n))
		for i := range n {
			v, err := c.evaluateChild(n[i], append(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return node, nil
}

func (c *Container) evaluateChild(child any, path []any) (any, error) {
	if e, ok := child.(evaluated); ok {
		child = e.value
	}
	switch child.(type) {
	case map[string]any, []any:
		return c.evaluateTree(child, append([]any(nil), path...))
	}
	return c.Get(path...)
}

package xmlhooks

import (
	"context"
	"os/exec"
	"path/filepath"

	"github.com/beevik/etree"
	"github.com/kballard/go-shellquote"

	"slidepress/internal/errs"
	"slidepress/internal/rendered"
	"slidepress/internal/xmlutil"
)

// resolveExecutable finds name in the include directories, then in $PATH.
func resolveExecutable(p *rendered.Presentation, name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	path, includeErr := p.LookupInclude(name)
	if includeErr == nil {
		return path, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", errs.Wrap(errs.KindFileLookup, includeErr, "could not find executable %q in include directories or $PATH", name)
	}
	return path, nil
}

// stdoutNodes parses the output of an executed command. A single top-level
// element is unwrapped and its children spliced.
func stdoutNodes(stdout string) ([]etree.Token, error) {
	nodes, err := xmlutil.ParseFragment(stdout)
	if err != nil {
		return nil, err
	}

	var root *etree.Element
	for _, tok := range nodes {
		switch t := tok.(type) {
		case *etree.Element:
			if root != nil {
				return nodes, nil
			}
			root = t
		case *etree.CharData:
			if !t.IsWhitespace() {
				return nodes, nil
			}
		}
	}
	if root == nil {
		return nodes, nil
	}
	children := append([]etree.Token(nil), root.Child...)
	for _, tok := range children {
		root.RemoveChild(tok)
	}
	return children, nil
}

func handleExec(ctx context.Context, p *rendered.Presentation, el *etree.Element) (Result, error) {
	if !p.Params().Trustworthy {
		return Result{}, errs.New(errs.KindUntrusted, "s:exec requires a trustworthy source; render with --trustworthy")
	}
	cmdline, err := requireAttr(el, "cmd")
	if err != nil {
		return Result{}, err
	}
	cmd, err := shellquote.Split(cmdline)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindMalformedXML, err, "invalid command line %q", cmdline)
	}
	if len(cmd) == 0 {
		return Result{}, errs.New(errs.KindMalformedXML, "s:exec has an empty command line")
	}
	cmd[0], err = resolveExecutable(p, cmd[0])
	if err != nil {
		return Result{}, err
	}
	useCache, err := xmlutil.BoolAttr(el, "cache", true)
	if err != nil {
		return Result{}, err
	}

	args := make([]any, len(cmd))
	for i, arg := range cmd {
		args[i] = arg
	}
	res, err := p.Render(ctx, "exec", map[string]any{
		"cmd":   args,
		"cache": useCache,
	})
	if err != nil {
		return Result{}, err
	}

	nodes, err := stdoutNodes(res.Data.String("stdout"))
	if err != nil {
		return Result{}, errs.Wrap(errs.KindMalformedXML, err, "output of %s is not valid XML", shellquote.Join(cmd...))
	}
	return Replace(true, nodes...), nil
}

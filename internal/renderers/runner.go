package renderers

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os/exec"
	"strings"

	"slidepress/internal/errs"
)

// Command is an external tool invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin []byte
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external tools. A non-zero exit status is reported as an
// error; stdout and stderr are returned in either case.
type Runner interface {
	Run(ctx context.Context, cmd Command) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Verbose logs every command line before it runs.
	Verbose bool
}

// Run executes cmd and waits for it to finish.
func (r ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, []byte, error) {
	if r.Verbose {
		log.Printf("Running: %s", cmd)
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), errs.Wrap(errs.KindSubprocessFailed, err,
				"%s exited with status %d: %s", cmd.Name, exitErr.ExitCode(), firstLine(stderr.String()))
		}
		return stdout.Bytes(), stderr.Bytes(), errs.Wrap(errs.KindSubprocessFailed, err, "failed to run %s", cmd.Name)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// run invokes cmd and discards stderr on success.
func run(ctx context.Context, r Runner, cmd Command) ([]byte, error) {
	stdout, _, err := r.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return stdout, nil
}

// Package engines runs the external collaborators (downloader, converter,
// separator, lyrics generator, title renderer, composer) from argv templates.
//
// Templates are plain argument lists. Each element may reference
// {placeholders} that are substituted before execution; no shell is
// involved, so values containing spaces or quotes pass through untouched.
package engines

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"karaokeprep/internal/services"
)

// Vars maps placeholder names to substitution values.
type Vars map[string]string

// CommandRunner executes a resolved command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Expand substitutes vars into template. Unknown placeholders and placeholders
// bound to empty values are errors so a misconfigured template never runs a
// command with a blank argument.
func Expand(template []string, vars Vars) ([]string, error) {
	if len(template) == 0 || strings.TrimSpace(template[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "engines", "expand", "command template is empty", nil)
	}
	out := make([]string, 0, len(template))
	var missing []string
	for _, arg := range template {
		expanded := placeholderPattern.ReplaceAllStringFunc(arg, func(match string) string {
			key := match[1 : len(match)-1]
			value, ok := vars[key]
			if !ok || value == "" {
				missing = append(missing, key)
				return match
			}
			return value
		})
		out = append(out, expanded)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, services.Wrap(services.ErrConfiguration, "engines", "expand",
			fmt.Sprintf("unresolved placeholders in %s: %s", template[0], strings.Join(dedupe(missing), ", ")), nil)
	}
	return out, nil
}

// Placeholders lists the placeholder names referenced by template.
func Placeholders(template []string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, arg := range template {
		for _, m := range placeholderPattern.FindAllStringSubmatch(arg, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

func dedupe(values []string) []string {
	out := values[:0]
	var last string
	for i, v := range values {
		if i > 0 && v == last {
			continue
		}
		out = append(out, v)
		last = v
	}
	return out
}

// Engine binds a template to a runner.
type Engine struct {
	name     string
	template []string
	runner   CommandRunner
}

// New constructs an Engine. name labels errors and logs.
func New(name string, template []string) *Engine {
	tmpl := make([]string, len(template))
	copy(tmpl, template)
	return &Engine{name: name, template: tmpl}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner CommandRunner) *Engine {
	e.runner = runner
	return e
}

// Name returns the engine label.
func (e *Engine) Name() string { return e.name }

// Binary returns the executable named by the template, or "" when unset.
func (e *Engine) Binary() string {
	if len(e.template) == 0 {
		return ""
	}
	return strings.TrimSpace(e.template[0])
}

// Run expands the template with vars and executes it.
func (e *Engine) Run(ctx context.Context, vars Vars) error {
	argv, err := Expand(e.template, vars)
	if err != nil {
		return err
	}
	if err := e.run(ctx, argv[0], argv[1:]...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", e.name, ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, e.name, "run "+argv[0], "", err)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, name string, args ...string) error {
	if e.runner != nil {
		return e.runner(ctx, name, args...)
	}
	return ExecRunner(ctx, name, args...)
}

// ExecRunner runs name directly and folds the tail of stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := tail(strings.TrimSpace(stderr.String()), 512)
		if detail == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return nil
}

func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}

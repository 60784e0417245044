// Command builder (spec.md §4.6): a sequence of typed operations that
// render to a shell script for the environment's chosen interpreter.
// String arguments pass through a Handlebars-compatible `{{var}}`
// expansion built on text/template, with the Masterminds/sprig helper
// functions registered. Other text/template actions (pipelines,
// conditionals) are not rejected.
package environment

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/go-logr/logr"
)

// OpKind identifies a Command operation.
type OpKind int

const (
	OpChdir OpKind = iota
	OpPushd
	OpPopd
	OpCreateDir
	OpCreateNamedDir
	OpRemoveDir
	OpRemoveFile
	OpMv
	OpCopy
	OpRun
)

// Op is one step of a Command.
type Op struct {
	Kind OpKind
	Args []string // raw, pre-template-expansion arguments
	Name string   // OpCreateNamedDir's captured variable name
}

// Command is a builder that accumulates Ops and a variable map used for
// template expansion, producing a shell script for its interpreter
// (default "bash") on Send.
type Command struct {
	Interpreter string
	ops         []Op
	vars        map[string]string
}

// NewCommand starts a builder for interpreter (default "bash" if empty).
func NewCommand(interpreter string) *Command {
	if interpreter == "" {
		interpreter = "bash"
	}
	return &Command{Interpreter: interpreter, vars: map[string]string{}}
}

func (c *Command) SetVar(name, value string) *Command {
	c.vars[name] = value
	return c
}

func (c *Command) Chdir(path string) *Command       { return c.add(Op{Kind: OpChdir, Args: []string{path}}) }
func (c *Command) Pushd(path string) *Command        { return c.add(Op{Kind: OpPushd, Args: []string{path}}) }
func (c *Command) Popd() *Command                    { return c.add(Op{Kind: OpPopd}) }
func (c *Command) CreateDir(path string) *Command    { return c.add(Op{Kind: OpCreateDir, Args: []string{path}}) }
func (c *Command) RemoveDir(path string) *Command    { return c.add(Op{Kind: OpRemoveDir, Args: []string{path}}) }
func (c *Command) RemoveFile(path string) *Command   { return c.add(Op{Kind: OpRemoveFile, Args: []string{path}}) }
func (c *Command) Mv(from, to string) *Command       { return c.add(Op{Kind: OpMv, Args: []string{from, to}}) }
func (c *Command) Copy(from, to string) *Command     { return c.add(Op{Kind: OpCopy, Args: []string{from, to}}) }
func (c *Command) Run(cmdString string) *Command     { return c.add(Op{Kind: OpRun, Args: []string{cmdString}}) }

// CreateNamedDir creates path and also captures its expanded form as
// template variable varName for use by later ops in the same Command.
func (c *Command) CreateNamedDir(path, varName string) *Command {
	return c.add(Op{Kind: OpCreateNamedDir, Args: []string{path}, Name: varName})
}

func (c *Command) add(op Op) *Command {
	c.ops = append(c.ops, op)
	return c
}

// Ops exposes the accumulated operations for a Runner (environment
// implementation) to translate into native calls instead of shell text,
// when that is cheaper than shelling out (e.g. localenv's create_dir
// calling os.MkdirAll directly).
func (c *Command) Ops() []Op { return c.ops }

// bareVarPattern matches a Handlebars-style bare variable reference such
// as {{name}} or {{ name }}.
var bareVarPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// expand renders s against the accumulated variable map using
// text/template: a bare {{var}} is rewritten to {{.var}} before parsing
// (so both forms work), sprig's helpers are available, and undefined
// variables are a build-time error (missingkey=error via Option).
func (c *Command) expand(s string) (string, error) {
	s = bareVarPattern.ReplaceAllString(s, "{{.$1}}")
	tmpl, err := template.New("arg").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(s)
	if err != nil {
		return "", fmt.Errorf("command: parse template %q: %w", s, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c.vars); err != nil {
		return "", fmt.Errorf("command: expand template %q: %w", s, err)
	}
	return buf.String(), nil
}

// Script renders the full shell script for this Command's interpreter.
// Each Op becomes one line; CreateNamedDir additionally registers its
// expanded path as a variable available to every subsequent op.
func (c *Command) Script() (string, error) {
	var lines []string
	lines = append(lines, "#!/usr/bin/env "+c.Interpreter, "set -euo pipefail")

	for _, op := range c.ops {
		args := make([]string, len(op.Args))
		for i, a := range op.Args {
			expanded, err := c.expand(a)
			if err != nil {
				return "", err
			}
			args[i] = expanded
		}

		switch op.Kind {
		case OpChdir:
			lines = append(lines, fmt.Sprintf("cd %s", shq(args[0])))
		case OpPushd:
			lines = append(lines, fmt.Sprintf("pushd %s > /dev/null", shq(args[0])))
		case OpPopd:
			lines = append(lines, "popd > /dev/null")
		case OpCreateDir:
			lines = append(lines, fmt.Sprintf("mkdir -p %s", shq(args[0])))
		case OpCreateNamedDir:
			lines = append(lines, fmt.Sprintf("mkdir -p %s", shq(args[0])))
			c.vars[op.Name] = args[0]
		case OpRemoveDir:
			lines = append(lines, fmt.Sprintf("rm -rf %s", shq(args[0])))
		case OpRemoveFile:
			lines = append(lines, fmt.Sprintf("rm -f %s", shq(args[0])))
		case OpMv:
			lines = append(lines, fmt.Sprintf("mv %s %s", shq(args[0]), shq(args[1])))
		case OpCopy:
			lines = append(lines, fmt.Sprintf("cp -r %s %s", shq(args[0]), shq(args[1])))
		case OpRun:
			lines = append(lines, args[0])
		}
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// shq single-quotes s for safe inclusion in the generated shell script.
func shq(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Send finalizes the Command and invokes env.Run, per spec.md §4.6.
func (c *Command) Send(ctx context.Context, log logr.Logger, env Environment, id, path string) (bool, error) {
	return env.Run(ctx, log, id, path, c)
}

// Package localenv implements environment.Farm/Environment by spawning
// plain OS processes (os/exec) rooted at a temp directory — the
// lightest-weight of Edo's two farms, used for local development and
// for environments that don't need container isolation. No pack example
// wires a process-execution library for this; os/exec is the
// unambiguous stdlib tool for the job (see DESIGN.md).
package localenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/edo-build/edo/pkg/environment"
)

// Farm mints Environments rooted under Root (a scratch directory; each
// Create gets its own subdirectory).
type Farm struct {
	Root string
}

var _ environment.Farm = Farm{}

func (f Farm) Setup(_ context.Context, log logr.Logger, _ environment.StorageManager) error {
	log.V(1).Info("localenv farm setup: nothing to pull, processes run on the host")
	return nil
}

func (f Farm) Create(_ context.Context, _ logr.Logger, path string) (environment.Environment, error) {
	root := filepath.Join(f.Root, path)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("localenv: create root %s: %w", root, err)
	}
	return &Environment{root: root, env: map[string]string{}}, nil
}

// Environment is a directory-rooted, os/exec-backed environment.Environment.
type Environment struct {
	root string

	mu  sync.Mutex
	env map[string]string

	dirStack []string
}

var _ environment.Environment = (*Environment)(nil)

// Expand resolves path within e.root, confining it there via SecureJoin
// even if path contains ".." segments or looks absolute — a
// transform-supplied, template-expanded path must never be able to
// escape the environment root (mirrors tar.go's unpackTar path-traversal
// rejection, applied here to single-path expansion instead of archive
// entries).
func (e *Environment) Expand(path string) string {
	safe, err := securejoin.SecureJoin(e.root, path)
	if err != nil {
		return e.root
	}
	return safe
}

func (e *Environment) CreateDir(_ context.Context, path string) error {
	return os.MkdirAll(e.Expand(path), 0o755)
}

func (e *Environment) SetEnv(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env[key] = value
}

func (e *Environment) GetEnv(key string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.env[key]
	return v, ok
}

func (e *Environment) Setup(_ context.Context, _ logr.Logger, _ environment.StorageManager) error {
	return os.MkdirAll(e.root, 0o755)
}

func (e *Environment) Up(_ context.Context, _ logr.Logger) error { return nil }

func (e *Environment) Down(_ context.Context, _ logr.Logger) error { return nil }

func (e *Environment) Clean(_ context.Context, _ logr.Logger) error {
	return os.RemoveAll(e.root)
}

func (e *Environment) Write(_ context.Context, path string, r io.Reader) error {
	full := e.Expand(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (e *Environment) Unpack(ctx context.Context, path string, r io.Reader) error {
	return unpackTar(e.Expand(path), r)
}

func (e *Environment) Read(_ context.Context, path string, w io.Writer) error {
	f, err := os.Open(e.Expand(path))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (e *Environment) envSlice() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := os.Environ()
	for k, v := range e.env {
		out = append(out, k+"="+v)
	}
	return out
}

func (e *Environment) Cmd(ctx context.Context, log logr.Logger, id, path, cmdString string) (bool, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", cmdString)
	cmd.Dir = e.Expand(path)
	cmd.Env = e.envSlice()
	out, err := cmd.CombinedOutput()
	log.V(1).Info("ran one-shot command", "id", id, "cmd", cmdString, "output", string(out))
	if err != nil {
		return false, nil //nolint:nilerr // non-zero exit is a reported failure, not a Go error
	}
	return true, nil
}

func (e *Environment) Run(ctx context.Context, log logr.Logger, id, path string, command *environment.Command) (bool, error) {
	script, err := command.Script()
	if err != nil {
		return false, fmt.Errorf("localenv: build script: %w", err)
	}
	return e.Cmd(ctx, log, id, path, script)
}

func (e *Environment) Shell(ctx context.Context, log logr.Logger, path string) error {
	sessionID := uuid.NewString()
	log.V(1).Info("opening shell session", "session_id", sessionID, "path", path)
	cmd := exec.CommandContext(ctx, "bash")
	cmd.Dir = e.Expand(path)
	cmd.Env = e.envSlice()
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
)

// Spec describes one invocation of an external command.
type Spec struct {
	Command string
	Args    []string
	// Env entries are added on top of the current process environment.
	Env map[string]string
	Dir string

	// Optional live mirrors of the captured streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Result carries captured output. ExitCode is -1 when the process never
// started or was killed by a signal.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// CmdRunner runs commands with os/exec.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), EnvList(spec.Env)...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if spec.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, spec.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if spec.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, spec.Stderr)
	}

	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	err := cmd.Run()
	res := Result{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), ExitCode: -1}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	return res, err
}

var _ Runner = CmdRunner{}

// EnvList renders env as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// IsExitError reports whether err came from a process that ran and exited
// non-zero, as opposed to one that could not be started.
func IsExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

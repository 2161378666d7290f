// Package toolexec runs the external analysis tools the inspection depends on.
//
// The pipeline never calls os/exec directly. It describes each run as an
// [Invocation] (program, argument vector, stdio wiring) and hands it to an
// [Invoker]. [ExecInvoker] runs real processes; tests substitute an
// [InvokerFunc] that writes canned output.
//
// A process that runs to completion is not an error, whatever its exit
// status: the status is reported in [Result] and each caller decides
// whether a non-zero exit is fatal. Invoke only returns an error when the
// program could not be started or the context was cancelled.
package toolexec

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ExitCode is a process exit status. The zero value means success.
type ExitCode int

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Invocation describes one run of an external tool.
// Nil Stdin reads from the null device; nil Stdout or Stderr discards.
type Invocation struct {
	Name   string
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the invocation as a command line, for logs.
func (inv Invocation) String() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Name)
	for _, a := range inv.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = strconv.Quote(a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a tool that ran to completion.
type Result struct {
	ExitCode ExitCode
	Duration time.Duration
}

// Success reports whether the tool exited with status 0.
func (r Result) Success() bool { return r.ExitCode.IsSuccess() }

// Invoker runs external tools.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, inv Invocation) (Result, error)

// Invoke calls f(ctx, inv).
func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// ExecInvoker runs tools as local processes looked up in $PATH.
type ExecInvoker struct {
	// Env, when non-nil, replaces the environment of the child process.
	Env []string
}

// Invoke starts the tool, waits for it to exit and reports its status.
func (e ExecInvoker) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Stdin = inv.Stdin
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	if e.Env != nil {
		cmd.Env = e.Env
	}

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start)}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = ExitCode(-1)
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = ExitCode(exitErr.ExitCode())
		return res, nil
	}
	res.ExitCode = ExitCode(127)
	return res, err
}

var _ Invoker = ExecInvoker{}

// Package cli provides the command execution layer used to drive
// container tooling such as podman.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"

	"github.com/opdev/registry-push/internal/errors"
	"github.com/opdev/registry-push/internal/log"
)

// Options adjusts how a single command execution is handled.
type Options struct {
	// GroupLabel labels the command's captured output in the log. An
	// empty label falls back to the executable name.
	GroupLabel string
	// FailOnNonZero treats a non-zero exit code as an error. The error
	// carries the captured stderr.
	FailOnNonZero bool
}

// Report captures the outcome of a single command execution.
type Report struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
}

// CommandRunner executes a single external command to completion,
// capturing its exit code and output.
type CommandRunner interface {
	Run(ctx context.Context, executable string, args []string, opts Options) (*Report, error)
}

// NewCommandRunner returns a CommandRunner backed by os/exec.
func NewCommandRunner() CommandRunner {
	return execRunner{}
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, executable string, args []string, opts Options) (*Report, error) {
	logger := logr.FromContextOrDiscard(ctx)

	label := opts.GroupLabel
	if label == "" {
		label = executable
	}
	logger.V(log.TRC).Info("running command", "label", label, "executable", executable, "args", args)

	cmd := exec.CommandContext(ctx, executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	report := &Report{
		Stdout: splitLines(stdout.String()),
		Stderr: splitLines(stderr.String()),
	}
	if cmd.ProcessState != nil {
		report.ExitCode = cmd.ProcessState.ExitCode()
	}

	for _, line := range report.Stdout {
		logger.V(log.TRC).Info(label + ": " + line)
	}
	for _, line := range report.Stderr {
		logger.V(log.TRC).Info(label + " (stderr): " + line)
	}

	if err != nil {
		// An ExitError is reported through the exit code. Anything else
		// means the command never ran.
		if _, ok := err.(*exec.ExitError); !ok {
			return report, fmt.Errorf("%w: could not run %s: %v", errors.ErrCommandFailed, executable, err)
		}
	}

	if opts.FailOnNonZero && report.ExitCode != 0 {
		return report, fmt.Errorf("%w: %s exited with code %d: %s",
			errors.ErrCommandFailed, executable, report.ExitCode, strings.Join(report.Stderr, "; "))
	}

	return report, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

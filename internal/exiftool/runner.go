package exiftool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"photo-librarian/internal/logging"
	"photo-librarian/internal/metrics"
)

// ErrKind classifies how an external tool invocation failed.
type ErrKind int

const (
	// KindExit means the tool ran and returned a non-zero exit status.
	KindExit ErrKind = iota
	// KindMissing means the tool binary was not found on PATH.
	KindMissing
	// KindTimeout means the invocation exceeded its deadline and was killed.
	KindTimeout
)

// String returns the kind as a lowercase label, usable as a metric value.
func (k ErrKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindTimeout:
		return "timeout"
	default:
		return "exit"
	}
}

// ToolError is a failed external tool invocation. Callers classify rejection
// reasons from Kind and Stderr rather than parsing Error() text.
type ToolError struct {
	Tool   string
	Kind   ErrKind
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed (%s): %v: %s", e.Tool, e.Kind, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// AsToolError unwraps err to a *ToolError if one is in the chain.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Runner invokes external media tools with a per-invocation deadline.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a Runner. timeout bounds every invocation; zero disables
// the per-call deadline.
func NewRunner(timeout time.Duration) *Runner {
	return &Runner{timeout: timeout}
}

// Run executes tool with args and returns its stdout. Failures come back as
// *ToolError with the invocation classified and stderr captured.
func (r *Runner) Run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	metrics.ToolInvocationDuration.WithLabelValues(tool).Observe(elapsed.Seconds())

	if err == nil {
		metrics.ToolInvocationsTotal.WithLabelValues(tool, "ok").Inc()
		return stdout.Bytes(), nil
	}

	te := &ToolError{
		Tool:   tool,
		Stderr: strings.TrimSpace(stderr.String()),
		Err:    err,
	}
	switch {
	case errors.Is(err, exec.ErrNotFound):
		te.Kind = KindMissing
	case ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded):
		te.Kind = KindTimeout
	default:
		te.Kind = KindExit
	}

	metrics.ToolInvocationsTotal.WithLabelValues(tool, te.Kind.String()).Inc()
	logging.Debug("%s %s: %v", tool, strings.Join(args, " "), te)
	return nil, te
}

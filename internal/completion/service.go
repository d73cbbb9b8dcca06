// Package completion is the seam to the external text-completion
// service. The engine only needs one blocking call: prompt in, response
// text out. Retries, if any, belong to the caller.
package completion

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Service accepts a rendered prompt and returns the raw response text.
// No structure is assumed beyond the resolution-marker conventions the
// conflict codec knows how to parse.
type Service interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to the Service interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// CLIService runs a completion CLI in one-shot print mode, feeding the
// prompt on stdin and returning stdout.
type CLIService struct {
	command string
	timeout time.Duration
}

// NewCLIService creates a CLIService. An empty command defaults to
// "claude"; timeoutSeconds of zero means no timeout beyond the caller's
// context.
func NewCLIService(command string, timeoutSeconds int) *CLIService {
	if command == "" {
		command = "claude"
	}
	return &CLIService{
		command: command,
		timeout: time.Duration(timeoutSeconds) * time.Second,
	}
}

// Complete runs the CLI and returns its stdout.
func (s *CLIService) Complete(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.command, "--print")
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("completion command failed: %w (stderr: %s)",
			err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

package cmdserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SandboxConfig configures the restricted Python runner.
type SandboxConfig struct {
	PythonBin      string        `yaml:"python_bin"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxOutputBytes int           `yaml:"max_output_bytes"`
}

// DefaultSandboxConfig returns secure defaults.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		PythonBin:      "python3",
		Timeout:        30 * time.Second,
		MaxOutputBytes: 1024 * 1024, // 1MB
	}
}

// CodeRunner validates and executes submitted code.
type CodeRunner interface {
	// Validate statically checks the code. A non-nil error means the
	// code must be rejected before execution.
	Validate(code string) error
	// Run executes the code and returns captured stdout.
	Run(ctx context.Context, code string) (string, error)
}

// blockedPattern pairs a regexp with the rejection message reported to
// the caller.
type blockedPattern struct {
	re  *regexp.Regexp
	msg string
}

var blockedPatterns = []blockedPattern{
	{regexp.MustCompile(`(?m)^\s*import\s`), "imports are not allowed"},
	{regexp.MustCompile(`(?m)^\s*from\s+\S+\s+import\b`), "imports are not allowed"},
	{regexp.MustCompile(`__import__`), "imports are not allowed"},
	{regexp.MustCompile(`\bexec\s*\(`), "call to 'exec' is not allowed"},
	{regexp.MustCompile(`\beval\s*\(`), "call to 'eval' is not allowed"},
	{regexp.MustCompile(`\bcompile\s*\(`), "call to 'compile' is not allowed"},
	{regexp.MustCompile(`\bopen\s*\(`), "call to 'open' is not allowed"},
}

// PythonRunner executes Python snippets in an isolated interpreter
// (-I: no site packages, no environment, no user directory) after a
// static safety scan.
type PythonRunner struct {
	config SandboxConfig
	logger *zap.Logger
}

// NewPythonRunner creates a runner with the given configuration.
func NewPythonRunner(config SandboxConfig, logger *zap.Logger) *PythonRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultSandboxConfig()
	if config.PythonBin == "" {
		config.PythonBin = def.PythonBin
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxOutputBytes <= 0 {
		config.MaxOutputBytes = def.MaxOutputBytes
	}
	return &PythonRunner{
		config: config,
		logger: logger.With(zap.String("component", "python_runner")),
	}
}

// Validate rejects code containing imports or calls to the interpreter
// escape hatches (exec, eval, compile, open).
func (r *PythonRunner) Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("code is empty")
	}
	for _, p := range blockedPatterns {
		if p.re.MatchString(code) {
			return errors.New(p.msg)
		}
	}
	return nil
}

// Run executes the code and returns captured stdout, truncated at the
// configured output limit. Validate must have been called first.
func (r *PythonRunner) Run(ctx context.Context, code string) (string, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.config.PythonBin, "-I", "-c", code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("execution timed out after %s", r.config.Timeout)
	}
	if err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return "", errors.New(msg)
		}
		return "", err
	}

	out := stdout.String()
	if len(out) > r.config.MaxOutputBytes {
		out = out[:r.config.MaxOutputBytes]
	}

	r.logger.Debug("code executed",
		zap.Int("code_length", len(code)),
		zap.Int("stdout_bytes", len(out)),
		zap.Duration("duration", time.Since(start)))

	return out, nil
}

// lastLine returns the final non-empty line of interpreter stderr,
// which carries the exception summary.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

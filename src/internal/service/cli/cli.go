package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/logging"
)

const (
	DefaultTimeout = 30 * time.Second
	waitDelay      = time.Second

	notFoundMessage          = "logseq CLI not found. Install with: npm install -g @logseq/cli"
	converterNotFoundMessage = "jet not found. Install with: brew install borkdude/brew/jet"
)

// Executor runs the logseq CLI. The binary is resolved once at startup.
type Executor struct {
	Binary    string
	Converter string
	WorkDir   string
	Timeout   time.Duration
	logger    *slog.Logger
}

func New(cfg domain.Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		Binary:    cfg.Binary,
		Converter: cfg.Converter,
		WorkDir:   cfg.WorkDir,
		Timeout:   cfg.CommandTimeout,
		logger:    logger,
	}
}

type output struct {
	stdout string
	stderr string
	code   int
}

// Execute runs `<binary> <command> <args...>`. Output of "query" is converted
// from EDN to JSON by a second process fed with the CLI's stdout.
//
// A non-nil error is always a *domain.UpstreamError. When the process ran but
// exited non-zero the returned result is still fully populated.
func (e *Executor) Execute(ctx context.Context, command string, args ...string) (domain.CommandResult, error) {
	argv := append([]string{e.Binary, command}, args...)
	logging.Request(e.logger).Info("Executing", "argv", FormatCommand(argv))

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	out, err := e.run(ctx, nil, argv)
	if err != nil {
		return e.fail(err, notFoundMessage)
	}

	if command == "query" && out.code == 0 {
		converted, err := e.run(ctx, strings.NewReader(out.stdout), []string{e.Converter, "--to", "json"})
		if err != nil {
			return e.fail(err, converterNotFoundMessage)
		}
		converted.stderr = out.stderr + converted.stderr
		out = converted
	}

	result := newResult(out)
	if !result.Success {
		logging.Failure(e.logger).Error("Command exited non-zero", "command", command, "returncode", out.code)
		return result, &domain.UpstreamError{Kind: domain.UpstreamFailure, Message: result.Error}
	}
	return result, nil
}

// Append runs `<binary> append <content> -a <token>`. Neither value is logged.
func (e *Executor) Append(ctx context.Context, content, token string) error {
	logging.Request(e.logger).Info("Executing: logseq append <content> -a <token>")

	ctx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	out, err := e.run(ctx, nil, []string{e.Binary, "append", content, "-a", token})
	if err != nil {
		_, err = e.fail(err, notFoundMessage)
		return err
	}
	if out.code != 0 {
		msg := upstreamMessage(out)
		logging.Failure(e.logger).Error("Append command failed", "returncode", out.code, "error", msg)
		return &domain.UpstreamError{Kind: domain.UpstreamFailure, Message: msg}
	}
	return nil
}

func (e *Executor) run(ctx context.Context, stdin io.Reader, argv []string) (output, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Env = os.Environ()
	cmd.Stdin = stdin
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output{}, &domain.UpstreamError{
			Kind:    domain.UpstreamTimeout,
			Message: "Command execution timed out after " + domain.Seconds(e.timeout()),
			Err:     ctx.Err(),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output{stdout: stdout.String(), stderr: stderr.String(), code: exitErr.ExitCode()}, nil
	}
	if err != nil {
		return output{}, err
	}
	return output{stdout: stdout.String(), stderr: stderr.String()}, nil
}

// fail turns an invocation error into an UpstreamError and logs it without argv.
func (e *Executor) fail(err error, missing string) (domain.CommandResult, error) {
	var upstream *domain.UpstreamError
	switch {
	case errors.As(err, &upstream):
	case isNotFound(err):
		upstream = &domain.UpstreamError{Kind: domain.UpstreamUnavailable, Message: missing, Err: err}
	default:
		upstream = &domain.UpstreamError{Kind: domain.UpstreamFailure, Message: err.Error(), Err: err}
	}
	logging.Failure(e.logger).Error("Command failed", "kind", upstream.Kind.String(), "error", upstream.Message)
	return domain.CommandResult{Success: false, Error: upstream.Message}, upstream
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func newResult(out output) domain.CommandResult {
	result := domain.CommandResult{
		Success:    out.code == 0,
		Stdout:     &out.stdout,
		Stderr:     &out.stderr,
		ReturnCode: &out.code,
	}
	trimmed := strings.TrimSpace(out.stdout)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			result.Data = json.RawMessage(trimmed)
		}
	}
	if !result.Success {
		result.Error = upstreamMessage(out)
	}
	return result
}

func upstreamMessage(out output) string {
	if msg := strings.TrimSpace(out.stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(out.stdout); msg != "" {
		return msg
	}
	return "Unknown error"
}

func isNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && pathErr.Op == "chdir" {
		return false
	}
	return errors.Is(err, fs.ErrNotExist)
}

// FormatCommand returns a shell-like string for logging only (no execution).
func FormatCommand(argv []string) string {
	q := make([]string, 0, len(argv))
	for _, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n'\"") {
			q = append(q, fmt.Sprintf("%q", a))
		} else {
			q = append(q, a)
		}
	}
	return strings.Join(q, " ")
}

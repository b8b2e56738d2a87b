package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/aretw0/yolotrain/internal/logging"
)

const (
	stderrTail    = 8 << 10
	maxEventBytes = 32 << 20
	waitDelay     = 10 * time.Second
)

// ErrBridgeReported wraps an "error" event emitted by the bridge.
var ErrBridgeReported = errors.New("bridge reported an error")

// ExitError is returned when the bridge exits unsuccessfully.
type ExitError struct {
	Op     string
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("bridge %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("bridge %s failed: %v. Stderr: %s", e.Op, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner executes bridge operations as child processes.
type Runner struct {
	cfg    BridgeConfig
	logger *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger that receives progress output.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a bridge runner.
func NewRunner(cfg BridgeConfig, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes op and hands every protocol event to handle, in order, on the
// calling goroutine. If handle fails the child is killed and the handler's
// error is returned.
func (r *Runner) Run(ctx context.Context, op string, args map[string]any, handle func(Event) error) error {
	argv := append(append([]string{}, r.cfg.Args...), op)
	cmd := exec.CommandContext(ctx, r.cfg.Command, argv...)
	cmd.Dir = r.cfg.Dir
	cmd.Env = append(cmd.Environ(), r.cfg.environ()...)
	cmd.Env = append(cmd.Env, EncodeArgs(args)...)
	cmd.WaitDelay = waitDelay

	stderr := newTailBuffer(stderrTail)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to bridge stdout: %w", err)
	}

	r.logger.Debug("starting bridge", "op", op, "command", r.cfg.Command, "args", argv)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64<<10), maxEventBytes)

	var handleErr error
	for scanner.Scan() {
		ev, ok := parseEvent(scanner.Bytes())
		if !ok {
			r.logger.Debug("bridge output", "op", op, "line", scanner.Text())
			continue
		}
		if ev.Type == EventError {
			handleErr = fmt.Errorf("%w: %s", ErrBridgeReported, ev.Message)
			break
		}
		if err := handle(ev); err != nil {
			handleErr = err
			break
		}
	}

	if handleErr == nil && scanner.Err() != nil {
		handleErr = fmt.Errorf("failed to read bridge output: %w", scanner.Err())
	}
	if handleErr != nil {
		// The child's own outcome no longer matters.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return handleErr
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ExitError{Op: op, Err: err, Stderr: stderr.String()}
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.buf)
}

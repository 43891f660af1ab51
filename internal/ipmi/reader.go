package ipmi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/config"

	"go.uber.org/zap"
)

var (
	// ErrTimeout the sensor query exceeded its deadline; no output is usable.
	ErrTimeout = errors.New("ipmi-sensors timed out")
	// ErrExecution the sensor query could not be run.
	ErrExecution = errors.New("ipmi-sensors execution failed")
)

// waitDelay bounds how long Fetch waits for output pipes after the process
// was killed on timeout. Children that inherited them are abandoned.
const waitDelay = 500 * time.Millisecond

// Result of one sensor query. A non-zero ExitCode is a failed query
// regardless of what Output contains.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Reader runs ipmi-sensors with a hard timeout.
type Reader struct {
	config *config.IPMIConfig
	logger *zap.Logger
}

// NewReader creates a Reader for cfg.
func NewReader(cfg *config.IPMIConfig, logger *zap.Logger) *Reader {
	return &Reader{
		config: cfg,
		logger: logger,
	}
}

// Args returns the command line arguments passed to ipmi-sensors.
// Credentials are left out when empty so in-band access keeps working.
func (r *Reader) Args() []string {
	args := []string{
		"--comma-separated-output",
		"--ignore-not-available-sensors",
		"--hostname=" + r.config.Host,
	}
	if r.config.User != "" {
		args = append(args, "--username="+r.config.User)
	}
	if r.config.Password != "" {
		args = append(args, "--password="+r.config.Password)
	}
	return args
}

// Fetch runs one sensor query. It returns ErrTimeout when the configured
// timeout expires and an error wrapping ErrExecution when the command could
// not be started. A process that ran and exited non-zero is not an error:
// the exit code is reported in Result.
func (r *Reader) Fetch(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, r.config.Command, r.Args()...)
	cmd.Stdout = &stdout
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	result := Result{Duration: time.Since(start)}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w after %s", ErrTimeout, r.config.Timeout)
		}
		return result, fmt.Errorf("%w: %w", ErrExecution, ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	result.Output = stdout.String()

	r.logger.Debug("ipmi-sensors result",
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.String("output", result.Output),
	)

	return result, nil
}

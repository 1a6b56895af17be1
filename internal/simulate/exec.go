package simulate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/headline-goat/abpower/internal/trial"
)

const (
	// Stderr beyond this many bytes is dropped from failure reasons.
	maxReasonBytes = 2048
	// How long to wait for output pipes after the process is killed.
	waitDelay = time.Second
)

// Exec runs an external generator process per trial. The command receives
// --start --days --users --uplift --seed --output flags, the same surface as
// the simulate subcommand.
type Exec struct {
	Path   string
	Args   []string // leading arguments, e.g. "simulate"
	Logger *slog.Logger
}

// NewSelfExec returns an Exec that re-invokes the running binary's
// simulate subcommand.
func NewSelfExec(logger *slog.Logger) (*Exec, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{Path: path, Args: []string{"simulate"}, Logger: logger}, nil
}

// Generate implements trial.Generator. The context deadline bounds the
// process lifetime.
func (e *Exec) Generate(ctx context.Context, req trial.GenerateRequest) trial.StepResult {
	args := append(append([]string{}, e.Args...),
		"--start", req.Date.Format(trial.DateLayout),
		"--days", strconv.Itoa(req.Days),
		"--users", strconv.Itoa(req.UsersPerDay),
		"--uplift", strconv.FormatFloat(req.Uplift, 'f', -1, 64),
		"--seed", strconv.FormatInt(req.Seed, 10),
		"--output", req.OutputDir,
	)

	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if res, done := trial.FromContext(ctx); done {
		e.logger().Warn("generator process interrupted", "status", res.Status, "seed", req.Seed)
		return res
	}
	if err != nil {
		reason := err.Error()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason = fmt.Sprintf("exit code %d", exitErr.ExitCode())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			if len(msg) > maxReasonBytes {
				msg = msg[len(msg)-maxReasonBytes:]
			}
			reason += ": " + msg
		}
		return trial.Failed(reason)
	}

	return trial.OK()
}

func (e *Exec) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

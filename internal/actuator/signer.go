package actuator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// SignerActuator sends bets through the tg-signer CLI.
type SignerActuator struct {
	Binary  string
	Timeout time.Duration
	WorkDir string
}

// NewSignerActuator creates an actuator that runs binary with a per-call timeout.
func NewSignerActuator(binary string, timeout time.Duration, workDir string) *SignerActuator {
	return &SignerActuator{Binary: binary, Timeout: timeout, WorkDir: workDir}
}

// Args builds the argument list. The chat id and text are positional after "--"
// so a negative id such as -1001234 is never read as a flag.
func Args(alias, chatID, text string) []string {
	return []string{"-a", alias, "send-text", "--", chatID, text}
}

// Dispatch runs one send-text invocation and reports its outcome.
func (s *SignerActuator) Dispatch(ctx context.Context, alias, chatID, text string) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.Binary, Args(alias, chatID, text)...)
	cmd.Dir = s.WorkDir
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return nil
	}
	output := strings.TrimSpace(out.String())
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timed out after %v: %s", s.Binary, s.Timeout, output)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s not found in PATH: %w", s.Binary, err)
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return fmt.Errorf("%s exited with code %d: %s", s.Binary, ee.ExitCode(), output)
	}
	return fmt.Errorf("run %s: %w", s.Binary, err)
}

package actuator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs_NegativeChatIDIsPositional(t *testing.T) {
	args := Args("main", "-1001234567", "大4")
	assert.Equal(t, []string{"-a", "main", "send-text", "--", "-1001234567", "大4"}, args)
}

// script writes an executable shell script and returns its path.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "tg-signer")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestSignerActuator_PassesArgumentsVerbatim(t *testing.T) {
	dir := t.TempDir()
	bin := script(t, `printf '%s\n' "$@" > "`+filepath.Join(dir, "args.txt")+`"`)
	a := NewSignerActuator(bin, 5*time.Second, "")

	require.NoError(t, a.Dispatch(context.Background(), "acc1", "-100987", "单2"))

	data, err := os.ReadFile(filepath.Join(dir, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"-a", "acc1", "send-text", "--", "-100987", "单2"}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestSignerActuator_NonZeroExit(t *testing.T) {
	bin := script(t, `echo "chat not found" >&2; exit 3`)
	err := NewSignerActuator(bin, 5*time.Second, "").Dispatch(context.Background(), "a", "1", "大1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSignerActuator_Timeout(t *testing.T) {
	bin := script(t, `exec sleep 5`)
	start := time.Now()
	err := NewSignerActuator(bin, 200*time.Millisecond, "").Dispatch(context.Background(), "a", "1", "大1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSignerActuator_MissingBinary(t *testing.T) {
	err := NewSignerActuator("definitely-not-a-real-tg-signer", time.Second, "").
		Dispatch(context.Background(), "a", "1", "大1")
	assert.Error(t, err)
}

func TestFake_RecordsAndFails(t *testing.T) {
	f := &Fake{FailAliases: map[string]bool{"broken": true}}
	ctx := context.Background()

	assert.NoError(t, f.Dispatch(ctx, "ok", "-1", "大1"))
	assert.ErrorIs(t, f.Dispatch(ctx, "broken", "-2", "小1"), ErrFakeFailure)
	assert.Equal(t, []Call{{"ok", "-1", "大1"}, {"broken", "-2", "小1"}}, f.Calls())
}

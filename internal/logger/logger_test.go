package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	require.NoError(t, Init(Config{Level: "debug", File: path, MaxSizeMB: 1}))
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })

	For("engine").Info("draw settled")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "draw settled")
	assert.Contains(t, string(data), "component=engine")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "loud"}))
	t.Cleanup(func() { logrus.SetOutput(os.Stderr) })
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

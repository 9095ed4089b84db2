package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amirphl/likebounty/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "file",
		FilePath:   path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	require.NoError(t, err)

	log.Info("campaign created")
	log.Debug("hidden")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "campaign created")
	assert.NotContains(t, string(data), "hidden")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose"})
	assert.Error(t, err)
}

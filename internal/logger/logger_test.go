package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestNewWritesFile expects JSON log lines in the configured file.
func TestNewWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "contacts.log")
	log, err := New(Options{Level: "info", File: file})
	require.NoError(t, err)

	log.Debug("not written")
	log.Info("contact created", zap.Int64("id", 42))
	_ = log.Sync()

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"contact created"`)
	assert.Contains(t, string(content), `"id":42`)
	assert.NotContains(t, string(content), "not written")
}

// TestNewInvalidLevel expects unknown levels to be rejected.
func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

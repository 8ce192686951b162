package main

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"quorum/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsNonZeroOnBadConfig(t *testing.T) {
	t.Setenv("QUORUM_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, run())
}

func TestSetupLogOutputTeesToFile(t *testing.T) {
	t.Cleanup(func() {
		logger.SetOutput(os.Stdout)
		log.SetOutput(os.Stderr)
	})
	path := filepath.Join(t.TempDir(), "logs", "quorum.log")
	f, err := setupLogOutput(path)
	require.NoError(t, err)
	require.NotNil(t, f)

	logger.Errorf("order pipeline stalled")
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "order pipeline stalled")

	f, err = setupLogOutput("  ")
	require.NoError(t, err)
	assert.Nil(t, f)
}

package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugbot/internal/version"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version", "--test-mode")
	assert.Contains(t, out, "plugbot v"+version.Version)
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	t.Setenv("PLUGBOT_TOKEN", "123:secret")
	t.Setenv("PLUGBOT_STORE_REDIS_PASSWORD", "hunter2")

	out := execute(t, "config", "--test-mode", "--store", "redis")

	assert.Contains(t, out, "token: <redacted>")
	assert.Contains(t, out, "backend: redis")
	assert.NotContains(t, out, "123:secret")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "name: help")
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("RECORDER_POLL_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Recorder.PollInterval)
	assert.Equal(t, 800*time.Millisecond, cfg.Recorder.SettleDelay)
	assert.Equal(t, 200*time.Millisecond, cfg.Recorder.FinalizePollInterval)
	assert.Equal(t, 2500*time.Millisecond, cfg.Recorder.FinalizeDeadline)
	assert.False(t, cfg.Store.EvictDeletesFiles)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("RECORDER_POLL_INTERVAL", "250")
	t.Setenv("FINALIZE_DEADLINE", "4s")
	t.Setenv("EVICT_DELETES_FILES", "true")
	t.Setenv("CAPTURE_AUDIO_INPUT", "-f alsa -i hw:0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Recorder.PollInterval)
	assert.Equal(t, 4*time.Second, cfg.Recorder.FinalizeDeadline)
	assert.True(t, cfg.Store.EvictDeletesFiles)
	assert.Equal(t, []string{"-f", "alsa", "-i", "hw:0"}, cfg.Capture.AudioInput)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/db"
	assert.Equal(t, "postgres://elsewhere/db", c.DSN())
}

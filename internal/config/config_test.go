package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{Addr: ":8080", EventBuffer: 256, LoopQueue: 64}, cfg)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PVBRIDGE_ADDR", "127.0.0.1:9000")
	t.Setenv("PVBRIDGE_DEFINITIONS_DIR", "/tmp/defs")
	t.Setenv("PVBRIDGE_JOURNAL_DSN", "file:journal.db")
	t.Setenv("PVBRIDGE_UI_ADVANCED", "true")
	t.Setenv("PVBRIDGE_EVENT_BUFFER", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "/tmp/defs", cfg.DefinitionsDir)
	assert.Equal(t, "file:journal.db", cfg.JournalDSN)
	assert.True(t, cfg.UIAdvanced)
	assert.Equal(t, 16, cfg.EventBuffer)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("PVBRIDGE_EVENT_BUFFER", "lots")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("PVBRIDGE_EVENT_BUFFER", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "event buffer")
}

func TestValidate(t *testing.T) {
	assert.ErrorContains(t, Config{EventBuffer: 1, LoopQueue: 1}.Validate(), "listen address")
	assert.ErrorContains(t, Config{Addr: ":1", EventBuffer: 1}.Validate(), "loop queue")
	assert.NoError(t, Config{Addr: ":1", EventBuffer: 1, LoopQueue: 1}.Validate())
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogWriter_JSONRecord(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv(EnvFormat, "")

	buf := &bytes.Buffer{}
	l := NewSlogWriter(buf, InfoLevel, false).With("device", "laser")
	l.Info("transaction", "command", "$STATUS ?")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "transaction", rec["msg"])
	assert.Equal(t, "laser", rec["device"])
	assert.Equal(t, "$STATUS ?", rec["command"])
	assert.Contains(t, rec, "ts")
}

func TestSlogWriter_LevelFiltering(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv(EnvFormat, "")

	buf := &bytes.Buffer{}
	l := NewSlogWriter(buf, WarnLevel, false)
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	child := l.With("device", "pdu")
	child.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())

	l.Debug("visible")
	assert.NotZero(t, buf.Len())
}

func TestSlogWriter_ConsoleFormat(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv(EnvFormat, "console")

	buf := &bytes.Buffer{}
	NewSlogWriter(buf, InfoLevel, false).Info("outlet switched", "outlet", 3)

	assert.Contains(t, buf.String(), "outlet switched")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		ok    bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"fatal", FatalLevel, true},
		{"verbose", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.name)
			assert.Equal(t, tt.level, level)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

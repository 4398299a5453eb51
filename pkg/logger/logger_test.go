package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tweetwatch/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug json", cfg: &config.LoggingConfig{Level: "debug", JSON: true}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "chatty"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "tw.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		level, err := parseLogLevel(tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
		}
		if level != tt.expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
		}
	}
}

func TestFieldsArePropagated(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	child := base.WithField("account", "alice").WithFields(map[string]interface{}{
		"posts":    3,
		"duration": 2 * time.Second,
	})
	child.Info("cycle done")

	out := buf.String()
	assert.Contains(t, out, `"account":"alice"`)
	assert.Contains(t, out, `"posts":3`)
	assert.Contains(t, out, `"message":"cycle done"`)

	// the parent must not see child fields
	buf.Reset()
	base.Info("plain")
	assert.NotContains(t, buf.String(), "alice")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.WithError(errors.New("navigation timed out")).Warn("fetch degraded")
	assert.Contains(t, buf.String(), "navigation timed out")

	if l.WithError(nil) != Logger(l) {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestStructuredLevels(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	l.DebugWithFields("d", map[string]interface{}{"k": "v"})
	l.WarnWithFields("w", map[string]interface{}{"n": int64(7)})
	l.ErrorWithFields("e", map[string]interface{}{"ok": false})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"debug"`)
	assert.Contains(t, lines[1], `"n":7`)
	assert.Contains(t, lines[2], `"ok":false`)
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("account", "bob").WithError(errors.New("boom")).Error("dispatch failed")
	tl.Info("hello")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "bob", msgs[0].Fields["account"])
	assert.EqualError(t, msgs[0].Error, "boom")
	assert.True(t, tl.HasError())
	assert.True(t, tl.HasMessage("hello"))
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	LogNewPost("alice", "42", "View")
	LogCycle("c-1", 2, 0, time.Second, errors.New("session closed"))

	assert.True(t, tl.HasMessage("New post detected"))
	errs := tl.GetMessagesByLevel("ERROR")
	require.Len(t, errs, 1)
	assert.Equal(t, "c-1", errs[0].Fields["cycle_id"])
}

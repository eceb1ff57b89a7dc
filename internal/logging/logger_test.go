// Rumisync - Rumi Livestock Telemetry Connector
// Copyright 2026 Rumisync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rumisync/rumisync

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// capture swaps the global logger for one writing to a buffer and restores
// it when the test finishes.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(orig) })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{input: "trace", want: zerolog.TraceLevel},
		{input: "debug", want: zerolog.DebugLevel},
		{input: "info", want: zerolog.InfoLevel},
		{input: "warn", want: zerolog.WarnLevel},
		{input: "warning", want: zerolog.WarnLevel},
		{input: "error", want: zerolog.ErrorLevel},
		{input: "disabled", want: zerolog.Disabled},
		{input: "WARN", want: zerolog.WarnLevel},
		{input: "bogus", want: zerolog.InfoLevel},
		{input: "", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitSetsGlobalLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Output: &buf})
	t.Cleanup(func() { Init(Config{}) })

	if GetLevel() != zerolog.DebugLevel {
		t.Errorf("GetLevel = %v, want debug", GetLevel())
	}
}

func TestStructuredFieldsEmitted(t *testing.T) {
	buf := capture(t)

	Info().Str("farm_id", "farm-1").Int("observations", 3).Msg("Cycle completed")

	line := buf.String()
	for _, want := range []string{`"farm_id":"farm-1"`, `"observations":3`, "Cycle completed"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestErrAttachesError(t *testing.T) {
	buf := capture(t)

	Err(errors.New("vendor unreachable")).Msg("Sync failed")

	line := buf.String()
	if !strings.Contains(line, `"error":"vendor unreachable"`) {
		t.Errorf("error field missing: %s", line)
	}
	if !strings.Contains(line, `"level":"error"`) {
		t.Errorf("level not error: %s", line)
	}
}

func TestTraceRespectsLevel(t *testing.T) {
	buf := capture(t)

	Init(Config{Level: "trace", Output: buf})
	t.Cleanup(func() { Init(Config{}) })
	SetLogger(NewTestLogger(buf))

	Trace().Msg("very detailed")
	if !strings.Contains(buf.String(), "very detailed") {
		t.Errorf("trace message not emitted at trace level: %s", buf.String())
	}

	buf.Reset()
	Init(Config{Level: "info", Output: buf})
	SetLogger(NewTestLogger(buf))
	Trace().Msg("too detailed")
	if strings.Contains(buf.String(), "too detailed") {
		t.Errorf("trace message emitted at info level: %s", buf.String())
	}
}

func TestWithChildLogger(t *testing.T) {
	buf := capture(t)

	child := With().Str("component", "sync").Logger()
	child.Info().Msg("Scoped")

	if !strings.Contains(buf.String(), `"component":"sync"`) {
		t.Errorf("child logger field missing: %s", buf.String())
	}
}

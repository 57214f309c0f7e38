// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: true})
	defer Init(DefaultConfig())

	Info().Str("source", "/data/run-a.parquet").Msg("Artifact loaded")

	out := buf.String()
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("Expected JSON level field, got %s", out)
	}
	if !strings.Contains(out, `"source":"/data/run-a.parquet"`) {
		t.Errorf("Expected structured field, got %s", out)
	}
	if !strings.Contains(out, `"message":"Artifact loaded"`) {
		t.Errorf("Expected message field, got %s", out)
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Debug().Msg("dropped")
	Info().Msg("dropped")
	Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("Expected sub-warn messages to be filtered, got %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("Expected warn message to pass, got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"WARN":     zerolog.WarnLevel,
		"unknown":  zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
		"disabled": zerolog.Disabled,
	}

	for input, want := range tests {
		if got := parseLevel(input); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCtx_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-123")
	Ctx(ctx).Info().Msg("handled")

	if !strings.Contains(buf.String(), `"request_id":"req-123"`) {
		t.Errorf("Expected request_id in output, got %s", buf.String())
	}
}

func TestRequestIDFromContext_Missing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty request ID, got %q", got)
	}
}

func TestSlogHandler_RoutesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := slog.New(NewSlogHandler())
	slogger.Info("service started", "service", "sweeper", "interval", int64(60))

	out := buf.String()
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("Expected slog message through zerolog, got %s", out)
	}
	if !strings.Contains(out, `"service":"sweeper"`) {
		t.Errorf("Expected slog attr through zerolog, got %s", out)
	}
}

func TestSlogHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := slog.New(NewSlogHandler()).WithGroup("cache")
	slogger.Warn("over budget", "bytes", int64(1024))

	if !strings.Contains(buf.String(), `"cache.bytes":1024`) {
		t.Errorf("Expected grouped key, got %s", buf.String())
	}
}

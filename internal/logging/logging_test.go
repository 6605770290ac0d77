package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{JSON: true, Writer: &buf})

	logger.Info().Str("cluster", "Alt-2").Msg("scored")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["cluster"] != "Alt-2" || line["message"] != "scored" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{JSON: true, Writer: &buf})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}

	Setup(Options{JSON: true, Verbose: true, Writer: &buf})
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %s", zerolog.GlobalLevel())
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(Options{JSON: true, Writer: &buf})

	l := Component("ranker")
	l.Warn().Msg("vector search timed out")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if line["component"] != "ranker" {
		t.Errorf("expected component field, got %v", line)
	}
}

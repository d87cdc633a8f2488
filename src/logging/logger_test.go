package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetup_JSONOutput(t *testing.T) {
	original := log.Logger
	defer func() {
		log.Logger = original
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	var buf bytes.Buffer
	Setup(Config{Level: "debug", Format: "json", Output: &buf})

	logger := ComponentLogger("pool_manager", "req-1")
	logger.Debug().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "pool_manager" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["request_id"] != "req-1" {
		t.Errorf("expected request_id field, got %v", entry["request_id"])
	}
	if entry["message"] != "hello" {
		t.Errorf("expected message 'hello', got %v", entry["message"])
	}
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	original := log.Logger
	defer func() {
		log.Logger = original
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}()

	var buf bytes.Buffer
	Setup(Config{Level: "loud", Output: &buf})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %s", zerolog.GlobalLevel())
	}

	logger := NewLogger("test")
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output should be suppressed at info level, got %q", buf.String())
	}
}

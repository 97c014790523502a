package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevel(t *testing.T) {
	if got := newLogger(&bytes.Buffer{}, "dev").GetLevel(); got != zerolog.DebugLevel {
		t.Fatalf("ожидали debug в dev, получили %s", got)
	}
	if got := newLogger(&bytes.Buffer{}, "prod").GetLevel(); got != zerolog.InfoLevel {
		t.Fatalf("ожидали info вне dev, получили %s", got)
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "prod"), "reconcile")
	logger.Info().Msg("тик")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if entry["component"] != "reconcile" {
		t.Fatalf("ожидали поле component, получили %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("ожидали метку времени")
	}
}

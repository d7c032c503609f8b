package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Info("position reloaded", "token_id", uint64(5), "staked", true)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "position reloaded" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["token_id"] != float64(5) {
		t.Errorf("unexpected token_id: %v", entry["token_id"])
	}
}

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	SetTextOutput(&buf)
	defer SetOutput(os.Stdout)

	Debug("watcher subscribed", "subscription", "stake")
	if !strings.Contains(buf.String(), "watcher subscribed") {
		t.Errorf("expected message in text output, got %q", buf.String())
	}
}

func TestFieldHelpers(t *testing.T) {
	if got := TokenID(7).Value.Uint64(); got != 7 {
		t.Errorf("TokenID: got %d", got)
	}
	if got := Incentive("0xabc").Value.String(); got != "0xabc" {
		t.Errorf("Incentive: got %q", got)
	}
	if got := Err(nil).Value.String(); got != "" {
		t.Errorf("Err(nil): got %q", got)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer SetOutput(os.Stdout)

	With("component", "synchronizer").Info("reload complete")
	if !strings.Contains(buf.String(), "synchronizer") {
		t.Errorf("expected component attr, got %q", buf.String())
	}
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"verbose", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := New(tt.level)
			if log.GetLevel() != tt.expected {
				t.Errorf("New(%q).GetLevel() = %v, want %v", tt.level, log.GetLevel(), tt.expected)
			}
		})
	}
}

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)

	log.WithField("provider", "coingecko").Info("cycle finished")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["provider"] != "coingecko" {
		t.Errorf("provider field = %v, want coingecko", entry["provider"])
	}
	if entry["msg"] != "cycle finished" {
		t.Errorf("msg field = %v, want cycle finished", entry["msg"])
	}
}

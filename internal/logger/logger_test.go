package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/lao-tseu-is-alive/go-flock-kernel/pkg/simulation"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     simulation.LoggingConfig
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{"console debug", simulation.LoggingConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"json warn", simulation.LoggingConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel, zapcore.InfoLevel},
		{"unknown level falls back to info", simulation.LoggingConfig{Level: "loud"}, zapcore.InfoLevel, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !l.Core().Enabled(tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if l.Core().Enabled(tt.muted) {
				t.Errorf("level %s should be muted", tt.muted)
			}
		})
	}
}

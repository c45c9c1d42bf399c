package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDurationFromYAML(t *testing.T) {
	// 1. "10s"-style strings parse
	var cfg Config
	data := "probe_timeout: 5s\ntool_timeout: 2m\n"
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.ProbeTimeout.Std() != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.ProbeTimeout.Std())
	}
	if cfg.ToolTimeout.Std() != 2*time.Minute {
		t.Errorf("expected 2m, got %s", cfg.ToolTimeout.Std())
	}

	// 2. raw nanosecond integers still work
	cfg = Config{}
	if err := yaml.Unmarshal([]byte("probe_timeout: 3000000000\n"), &cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.ProbeTimeout.Std() != 3*time.Second {
		t.Errorf("expected 3s from nanoseconds, got %s", cfg.ProbeTimeout.Std())
	}

	// 3. junk is an error, not a silent zero
	cfg = Config{}
	if err := yaml.Unmarshal([]byte("probe_timeout: soon\n"), &cfg); err == nil {
		t.Error("expected an error for an unparseable duration")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	cfg := defaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "probe_timeout: 10s") {
		t.Errorf("durations must serialize human-readable, got:\n%s", data)
	}

	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.ProbeTimeout != cfg.ProbeTimeout || back.ToolTimeout != cfg.ToolTimeout {
		t.Errorf("round trip changed timeouts: %s / %s", back.ProbeTimeout.Std(), back.ToolTimeout.Std())
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scheduler.Slice != 8*time.Millisecond || cfg.Scheduler.Interval != 16*time.Millisecond || cfg.Scheduler.MinSlice != time.Millisecond {
		t.Errorf("scheduler: got %+v", cfg.Scheduler)
	}
	if cfg.Host.Kind != "memory" || cfg.Host.Chrome.URL != "about:blank" {
		t.Errorf("host: got %+v", cfg.Host)
	}
	if cfg.Snapshot.Every != 10 {
		t.Errorf("snapshot.every: got %d, want 10", cfg.Snapshot.Every)
	}
	if !cfg.CompressEnabled() {
		t.Error("compress should default to on")
	}
	if d := Default(); d.HTTP.Addr != ":8095" || d.Scheduler != cfg.Scheduler {
		t.Errorf("Default: got %+v", d)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fibre.yaml")
	data := `
scheduler:
  slice: 4ms
  min_slice: 500us
host:
  kind: chrome
  chrome:
    remote: ws://127.0.0.1:9222
store:
  path: /tmp/fibre.db
snapshot:
  every: 3
compress: false
sinks:
  - type: stdout
  - type: webhook
    url: http://localhost:9000/hook
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scheduler.Slice != 4*time.Millisecond || cfg.Scheduler.MinSlice != 500*time.Microsecond {
		t.Errorf("scheduler: got %+v", cfg.Scheduler)
	}
	if cfg.Host.Kind != "chrome" || cfg.Host.Chrome.Remote != "ws://127.0.0.1:9222" || cfg.Host.Chrome.Stealth != "headless" {
		t.Errorf("host: got %+v", cfg.Host)
	}
	if cfg.CompressEnabled() {
		t.Error("compress: got true, want false")
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].Retries != 3 {
		t.Errorf("sinks: got %+v", cfg.Sinks)
	}
}

func TestParse_Rejects(t *testing.T) {
	for name, data := range map[string]string{
		"host kind":      "host: {kind: gtk}",
		"webhook url":    "sinks: [{type: webhook}]",
		"sink type":      "sinks: [{type: nats}]",
		"malformed yaml": "scheduler: [",
	} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

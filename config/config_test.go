package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8080" || cfg.PresenceTimeout.Std() != 45*time.Second || cfg.RingTimeout.Std() != 60*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Mongo.Database != "callbridge" {
		t.Fatalf("mongo database default missing: %q", cfg.Mongo.Database)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cb.yaml")
	body := `
gateway_id: cb-east-1
listen: ":9090"
presence_timeout: 30s
redis:
  addr: localhost:6379
nats:
  url: nats://localhost:4222
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CB_LISTEN", ":7070")
	t.Setenv("CB_GATEWAY_ID", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GatewayID != "cb-east-1" {
		t.Fatalf("gateway_id = %q", cfg.GatewayID)
	}
	if cfg.Listen != ":7070" {
		t.Fatalf("env must win over file, listen = %q", cfg.Listen)
	}
	if cfg.PresenceTimeout.Std() != 30*time.Second {
		t.Fatalf("presence_timeout = %v", cfg.PresenceTimeout.Std())
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Nats.URL != "nats://localhost:4222" {
		t.Fatalf("backends not loaded: %+v", cfg)
	}
	// ring_timeout untouched by the file, falls back
	if cfg.RingTimeout.Std() != 60*time.Second {
		t.Fatalf("ring_timeout = %v", cfg.RingTimeout.Std())
	}
}

func TestDurationAcceptsBareSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cb.yaml")
	if err := os.WriteFile(path, []byte("presence_timeout: 20\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PresenceTimeout.Std() != 20*time.Second {
		t.Fatalf("presence_timeout = %v", cfg.PresenceTimeout.Std())
	}
}

func TestNormalizeRejectsNonPositiveDurations(t *testing.T) {
	c := Config{PresenceTimeout: Duration(-time.Second)}
	c.normalize()
	if c.PresenceTimeout.Std() != 45*time.Second || c.SweepEvery.Std() != 5*time.Second {
		t.Fatalf("normalize: %+v", c)
	}
}

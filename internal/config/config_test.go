package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/recorder"
identity:
  issuer: "https://members.example.org"
  hmac_secret: "secret"
recorder:
  base_url: "http://localhost:8080"
  s2s_token: "s2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("default shutdown timeout not applied: %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Recorder.Timeout != 5*time.Second {
		t.Fatalf("default recorder timeout not applied: %v", cfg.Recorder.Timeout)
	}
	if cfg.RateLimit.Burst != 50 || cfg.RateLimit.PerSecond != 25 {
		t.Fatalf("default rate limits not applied: %+v", cfg.RateLimit)
	}
}

func TestLoadRequiresKeyMaterial(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error without identity key material")
	}
}

func TestLoadRejectsBothKeys(t *testing.T) {
	path := writeConfig(t, `
identity:
  hmac_secret: "secret"
  public_key_pem: "-----BEGIN PUBLIC KEY-----"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error with both key kinds configured")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
plugin_name = "ontap"
socket_dir = "/tmp/stormgmt-test"
idle_timeout_ms = 5000
rate_limit = 100.0
rate_burst = 20
etcd_endpoints = ["localhost:2379", "localhost:22379"]
log_level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PluginName != "ontap" {
		t.Fatalf("unexpected plugin name: %q", cfg.PluginName)
	}
	if cfg.IdleTimeout != 5*time.Second {
		t.Fatalf("unexpected idle timeout: %v", cfg.IdleTimeout)
	}
	if cfg.RateLimit != 100.0 || cfg.RateBurst != 20 {
		t.Fatalf("unexpected rate limit: %v burst %d", cfg.RateLimit, cfg.RateBurst)
	}
	if len(cfg.EtcdEndpoints) != 2 {
		t.Fatalf("unexpected etcd endpoints: %v", cfg.EtcdEndpoints)
	}
	// Keys absent from the file keep their defaults.
	if cfg.RegistryTTL != Default().RegistryTTL {
		t.Fatalf("registry ttl default lost: %d", cfg.RegistryTTL)
	}
	if cfg.SocketPath() != "/tmp/stormgmt-test/ontap.sock" {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty plugin name", `plugin_name = ""`},
		{"slash in plugin name", `plugin_name = "a/b"`},
		{"negative timeout", `idle_timeout_ms = -1`},
		{"negative rate", `rate_limit = -5.0`},
		{"zero burst with rate", "rate_limit = 10.0\nrate_burst = 0"},
		{"bad log level", `log_level = "loud"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Fatalf("config %q loaded without error", tc.content)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("loading a missing file succeeded")
	}
}

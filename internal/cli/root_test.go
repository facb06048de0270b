package cli

import (
	"os"
	"path/filepath"
	"testing"

	"trivia-room-service/internal/config"
)

func TestLoadConfigAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\nbus:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(&options{configPath: path, port: "9100", busDriver: config.BusRedis, redisAddr: "localhost:6380"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Fatalf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Bus.Driver != config.BusRedis || cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("unexpected bus config: %+v %+v", cfg.Bus, cfg.Redis)
	}
}

func TestLoadConfigRejectsUnknownBus(t *testing.T) {
	if _, err := loadConfig(&options{busDriver: "kafka"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("subcommand %s not registered: %v", name, err)
		}
	}
}

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
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout default = %s", cfg.Server.ReadTimeout)
	}
	if cfg.Game.InitialLives != 3 || cfg.Game.InitialCredits != 3 || cfg.Game.Stipend != 3 {
		t.Errorf("game defaults = %d lives / %d credits / %d stipend",
			cfg.Game.InitialLives, cfg.Game.InitialCredits, cfg.Game.Stipend)
	}
	if cfg.Game.StipendMode != StipendReplace {
		t.Errorf("stipend mode default = %q, want replace", cfg.Game.StipendMode)
	}
	if cfg.Game.ScoreInterval != 3*time.Second {
		t.Errorf("score interval default = %s", cfg.Game.ScoreInterval)
	}
	if cfg.Cycle.BountyAmount != 0.01 || cfg.Cycle.PayoutAttempts != 3 {
		t.Errorf("cycle defaults = %f / %d", cfg.Cycle.BountyAmount, cfg.Cycle.PayoutAttempts)
	}
	if cfg.Payment.CreditPrice != 0.001 {
		t.Errorf("credit price default = %f", cfg.Payment.CreditPrice)
	}
	if cfg.Kafka.Topic != "frame-scores" {
		t.Errorf("kafka topic default = %q", cfg.Kafka.Topic)
	}

	wantChains := []string{"ethereum", "polygon", "base", "zora"}
	if len(cfg.Entitlement.Chains) != len(wantChains) {
		t.Fatalf("chains default = %v", cfg.Entitlement.Chains)
	}
	for i, chain := range wantChains {
		if cfg.Entitlement.Chains[i] != chain {
			t.Errorf("chain %d = %q, want %q", i, cfg.Entitlement.Chains[i], chain)
		}
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("FRAME_TEST_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FRAME_TEST_PG_PASSWORD", "s3cret")

	path := writeConfig(t, `
redis:
  addr: ${FRAME_TEST_REDIS_ADDR}
postgres:
  password: ${FRAME_TEST_PG_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	if cfg.Postgres.Password != "s3cret" {
		t.Errorf("postgres password not expanded")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadOverridesStickOverDefaults(t *testing.T) {
	path := writeConfig(t, `
game:
  initial_lives: 5
  stipend_mode: add
cycle:
  payout_attempts: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Game.InitialLives != 5 {
		t.Errorf("initial lives = %d, want 5", cfg.Game.InitialLives)
	}
	if cfg.Game.StipendMode != StipendAdd {
		t.Errorf("stipend mode = %q, want add", cfg.Game.StipendMode)
	}
	if cfg.Cycle.PayoutAttempts != 1 {
		t.Errorf("payout attempts = %d, want 1", cfg.Cycle.PayoutAttempts)
	}
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "frame",
		Password: "pw",
		Database: "frame",
	}
	want := "postgres://frame:pw@db.internal:5433/frame?sslmode=disable"
	if got := cfg.ConnectionString(); got != want {
		t.Errorf("connection string = %q, want %q", got, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Archive.Enabled {
		t.Error("archive should be enabled by default")
	}
	if cfg.Kafka.Enabled {
		t.Error("kafka should be disabled by default")
	}
}

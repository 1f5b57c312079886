package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("INPUT_DIR", "")
	cfg := Load()
	if cfg.Priority != "Kørsel 1" {
		t.Fatalf("priority = %q", cfg.Priority)
	}
	if cfg.DayAssistUnit != "Ass.Dag" || cfg.NightAssistUnit != "Ass.Nat" {
		t.Fatalf("assist units = %q / %q", cfg.DayAssistUnit, cfg.NightAssistUnit)
	}
	if cfg.FuzzyMinScore != 0.72 {
		t.Fatalf("min score = %v", cfg.FuzzyMinScore)
	}
	if cfg.AddressesPath != filepath.Join("./input", "adresser.csv") {
		t.Fatalf("addresses path = %q", cfg.AddressesPath)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("INPUT_DIR", "/data")
	t.Setenv("PRIORITY", "Kørsel 2")
	t.Setenv("ROTA_TIMEOUT", "3s")
	t.Setenv("FUZZY_LIMIT", "5000")
	cfg := Load()
	if cfg.Priority != "Kørsel 2" {
		t.Fatalf("priority = %q", cfg.Priority)
	}
	if cfg.RotaTimeout != 3*time.Second {
		t.Fatalf("timeout = %v", cfg.RotaTimeout)
	}
	if cfg.FuzzyLimit != 200 {
		t.Fatalf("limit = %d, want clamp", cfg.FuzzyLimit)
	}
	if cfg.AddressesPath != filepath.Join("/data", "adresser.csv") {
		t.Fatalf("addresses path = %q", cfg.AddressesPath)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "priority: Kørsel 2\naddresses_path: /custom/adresser.csv\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PRIORITY", "")
	cfg := Load()
	if cfg.Priority != "Kørsel 2" {
		t.Fatalf("priority = %q", cfg.Priority)
	}
	if cfg.AddressesPath != "/custom/adresser.csv" {
		t.Fatalf("addresses path = %q", cfg.AddressesPath)
	}

	// Environment still wins over the file.
	t.Setenv("PRIORITY", "Kørsel 1")
	if cfg := Load(); cfg.Priority != "Kørsel 1" {
		t.Fatalf("priority = %q", cfg.Priority)
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("Expected no error for an empty config path, got %v", err)
	}
	if cfg.TickMS != 1 {
		t.Errorf("Expected default tick of 1ms, got %d", cfg.TickMS)
	}
	if cfg.CheckPeriodTicks != 1000 {
		t.Errorf("Expected default check period of 1000 ticks, got %d", cfg.CheckPeriodTicks)
	}
	if len(cfg.Suites) != 5 {
		t.Errorf("Expected all 5 suites by default, got %v", cfg.Suites)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	data := []byte("tick_ms: 5\nsuites: [countsem, timerdemo]\nserial: /dev/ttyACM1\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("Expected the config to parse, got %v", err)
	}
	if cfg.TickMS != 5 {
		t.Errorf("Expected tick_ms 5, got %d", cfg.TickMS)
	}
	if len(cfg.Suites) != 2 || cfg.Suites[0] != "countsem" || cfg.Suites[1] != "timerdemo" {
		t.Errorf("Expected the suite list from the file, got %v", cfg.Suites)
	}
	if cfg.Serial != "/dev/ttyACM1" {
		t.Errorf("Expected serial device from the file, got %q", cfg.Serial)
	}
	if cfg.TimerBaseTicks != 10 {
		t.Errorf("Expected the timer base default to apply, got %d", cfg.TimerBaseTicks)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("tick_mss: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Errorf("Expected an unknown key to be rejected")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http_port: 9090
poll_interval_s: 5
vessel_ttl_s: 300
ais_api_key: testkey
ais_bounds:
  north: 61
  south: 49
  east: 3
  west: -11
repair_status: false
airports_of_interest: [EGLL, EGKK]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load[Config](path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg.ApplyDefaults()

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.PollIntervalS != 5 {
		t.Errorf("PollIntervalS = %d, want 5", cfg.PollIntervalS)
	}
	if cfg.VesselTTLS != 300 {
		t.Errorf("VesselTTLS = %d, want 300", cfg.VesselTTLS)
	}
	if cfg.AISAPIKey != "testkey" {
		t.Errorf("AISAPIKey = %q, want testkey", cfg.AISAPIKey)
	}
	if cfg.AISBounds.North != 61 || cfg.AISBounds.West != -11 {
		t.Errorf("AISBounds = %+v", cfg.AISBounds)
	}
	if cfg.RepairEnabled() {
		t.Error("RepairEnabled() = true, want false")
	}
	if len(cfg.AirportsOfInterest) != 2 {
		t.Errorf("AirportsOfInterest = %v", cfg.AirportsOfInterest)
	}

	// Defaults fill unset fields.
	if cfg.RebuildIntervalS != 15 {
		t.Errorf("RebuildIntervalS = %d, want default 15", cfg.RebuildIntervalS)
	}
	if cfg.EmbedDim != 768 {
		t.Errorf("EmbedDim = %d, want default 768", cfg.EmbedDim)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load[Config]("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRepairEnabledDefault(t *testing.T) {
	cfg := Default()
	if !cfg.RepairEnabled() {
		t.Error("RepairEnabled() = false for default config, want true")
	}
}

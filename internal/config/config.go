// Package config loads the skyradar YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BoundingBox is a lat/lon subscription box for the AIS stream.
type BoundingBox struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// ClickHouse holds optional ClickHouse archive connection settings.
type ClickHouse struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Config is the full skyradar configuration.
type Config struct {
	HTTPPort int `yaml:"http_port"`

	// Ingest cadences and cache lifetimes, in seconds.
	PollIntervalS    int `yaml:"poll_interval_s"`
	RebuildIntervalS int `yaml:"rebuild_interval_s"`
	VesselTTLS       int `yaml:"vessel_ttl_s"`
	NotamTTLS        int `yaml:"notam_ttl_s"`
	MetarTTLS        int `yaml:"metar_ttl_s"`
	WeatherTTLS      int `yaml:"weather_ttl_s"`
	RetentionDays    int `yaml:"retention_days"`

	// Upstream ADS-B snapshot: URL first, file fallback.
	UpstreamADSBURL  string `yaml:"upstream_adsb_url"`
	UpstreamADSBFile string `yaml:"upstream_adsb_file"`

	// Static assets.
	AirspaceDir  string `yaml:"airspace_dir"`
	SSRFile      string `yaml:"ssr_file"`
	RegistryPath string `yaml:"registry_path"`

	// History database and semantic index files.
	HistoryDB string `yaml:"history_db"`
	IndexPath string `yaml:"index_path"`

	// Semantic index.
	EmbedURL           string   `yaml:"embed_url"`
	EmbedDim           int      `yaml:"embed_dim"`
	AirportsOfInterest []string `yaml:"airports_of_interest"`

	// AIS stream.
	AISAPIKey string      `yaml:"ais_api_key"`
	AISBounds BoundingBox `yaml:"ais_bounds"`

	// Consistency repair of upstream status labels (see flightstate.Repair).
	RepairStatus *bool `yaml:"repair_status"`

	// Optional integrations.
	NATSURL    string      `yaml:"nats_url"`
	ClickHouse *ClickHouse `yaml:"clickhouse"`
}

// Load reads and parses a YAML config file into T.
func Load[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		HTTPPort:         8080,
		PollIntervalS:    2,
		RebuildIntervalS: 15,
		VesselTTLS:       600,
		NotamTTLS:        1800,
		MetarTTLS:        600,
		WeatherTTLS:      600,
		RetentionDays:    30,
		UpstreamADSBURL:  "http://localhost:8080/data/aircraft.json",
		UpstreamADSBFile: "/tmp/aircraft.json",
		AirspaceDir:      "data/airspace",
		SSRFile:          "data/SSR_CODES.txt",
		RegistryPath:     "data/BaseStation.sqb",
		HistoryDB:        "data/radar_history.db",
		IndexPath:        "data/radar_index",
		EmbedDim:         768,
		AirportsOfInterest: []string{
			"EGPK", "EGLL", "EGCC", "EGBB", "EGPH",
		},
		AISBounds: BoundingBox{North: 60, South: 50, East: 2, West: -10},
	}
}

// ApplyDefaults fills zero-valued fields of cfg from Default.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.HTTPPort == 0 {
		c.HTTPPort = def.HTTPPort
	}
	if c.PollIntervalS == 0 {
		c.PollIntervalS = def.PollIntervalS
	}
	if c.RebuildIntervalS == 0 {
		c.RebuildIntervalS = def.RebuildIntervalS
	}
	if c.VesselTTLS == 0 {
		c.VesselTTLS = def.VesselTTLS
	}
	if c.NotamTTLS == 0 {
		c.NotamTTLS = def.NotamTTLS
	}
	if c.MetarTTLS == 0 {
		c.MetarTTLS = def.MetarTTLS
	}
	if c.WeatherTTLS == 0 {
		c.WeatherTTLS = def.WeatherTTLS
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = def.RetentionDays
	}
	if c.UpstreamADSBURL == "" {
		c.UpstreamADSBURL = def.UpstreamADSBURL
	}
	if c.UpstreamADSBFile == "" {
		c.UpstreamADSBFile = def.UpstreamADSBFile
	}
	if c.AirspaceDir == "" {
		c.AirspaceDir = def.AirspaceDir
	}
	if c.SSRFile == "" {
		c.SSRFile = def.SSRFile
	}
	if c.RegistryPath == "" {
		c.RegistryPath = def.RegistryPath
	}
	if c.HistoryDB == "" {
		c.HistoryDB = def.HistoryDB
	}
	if c.IndexPath == "" {
		c.IndexPath = def.IndexPath
	}
	if c.EmbedDim == 0 {
		c.EmbedDim = def.EmbedDim
	}
	if len(c.AirportsOfInterest) == 0 {
		c.AirportsOfInterest = def.AirportsOfInterest
	}
	if c.AISBounds == (BoundingBox{}) {
		c.AISBounds = def.AISBounds
	}
}

// RepairEnabled reports whether status consistency repair is on. Defaults to
// true when the option is absent from the config file.
func (c *Config) RepairEnabled() bool {
	if c.RepairStatus == nil {
		return true
	}
	return *c.RepairStatus
}

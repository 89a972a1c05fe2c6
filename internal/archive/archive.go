// Package archive mirrors enriched aircraft contacts into ClickHouse for
// long-term analytical storage, beyond the SQLite retention window.
package archive

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"skyradar/internal/history"
)

// Config holds ClickHouse connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// DB wraps a ClickHouse connection for contact archival.
type DB struct {
	conn driver.Conn

	mu      sync.Mutex
	pending []*history.Contact
}

// flushThreshold is how many buffered contacts trigger an immediate flush.
const flushThreshold = 500

// Open connects to ClickHouse and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close flushes any buffered contacts and closes the connection.
func (d *DB) Close() error {
	if err := d.Flush(context.Background()); err != nil {
		log.Printf("archive: flush on close: %v", err)
	}
	return d.conn.Close()
}

// CreateSchema creates the archive table.
func (d *DB) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS aircraft_contacts (
		hex             LowCardinality(String),
		ts              DateTime64(3),
		callsign        LowCardinality(String),
		lat             Nullable(Float64),
		lon             Nullable(Float64),
		alt_baro        Nullable(Float64),
		ground_speed    Nullable(Float64),
		track           Nullable(Float64),
		vert_rate       Nullable(Float64),
		squawk          LowCardinality(String),
		airspace        String,
		phase           LowCardinality(String),
		atc_sector      LowCardinality(String),
		intent          String,
		ssr_priority    LowCardinality(String),
		registration    LowCardinality(String),
		type_code       LowCardinality(String),
		created_at      DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (hex, ts)
	SETTINGS index_granularity = 8192`

	if err := d.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Add buffers one contact for the next batch flush.
func (d *DB) Add(ctx context.Context, c *history.Contact) {
	d.mu.Lock()
	d.pending = append(d.pending, c)
	flush := len(d.pending) >= flushThreshold
	d.mu.Unlock()

	if flush {
		if err := d.Flush(ctx); err != nil {
			log.Printf("archive: flush: %v", err)
		}
	}
}

// Flush sends all buffered contacts in one batch.
func (d *DB) Flush(ctx context.Context) error {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := d.InsertBatch(ctx, batch); err != nil {
		// Put the batch back so the next flush retries it.
		d.mu.Lock()
		d.pending = append(batch, d.pending...)
		d.mu.Unlock()
		return err
	}
	return nil
}

// InsertBatch stores contacts in ClickHouse in a single batch.
func (d *DB) InsertBatch(ctx context.Context, contacts []*history.Contact) error {
	if len(contacts) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO aircraft_contacts (hex, ts, callsign, lat, lon, alt_baro, ground_speed, track, vert_rate, squawk, airspace, phase, atc_sector, intent, ssr_priority, registration, type_code)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range contacts {
		err = batch.Append(c.Hex, time.Unix(c.T, 0), c.Callsign, c.Lat, c.Lon, c.AltBaro,
			c.GroundSpeed, c.Track, c.VertRate, c.Squawk, c.Airspace, c.Phase,
			c.ATCSector, c.Intent, c.SSRPriority, c.Registration, c.TypeCode)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// QueryParams filters archive queries.
type QueryParams struct {
	Hex      string
	Callsign string
	Phase    string
	Squawk   string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// Contact is one archived row.
type Contact struct {
	Hex          string     `json:"hex"`
	TS           time.Time  `json:"ts"`
	Callsign     string     `json:"callsign,omitempty"`
	Lat          *float64   `json:"lat,omitempty"`
	Lon          *float64   `json:"lon,omitempty"`
	AltBaro      *float64   `json:"alt_baro,omitempty"`
	GroundSpeed  *float64   `json:"ground_speed,omitempty"`
	Track        *float64   `json:"track,omitempty"`
	VertRate     *float64   `json:"vert_rate,omitempty"`
	Squawk       string     `json:"squawk,omitempty"`
	Airspace     string     `json:"airspace,omitempty"`
	Phase        string     `json:"phase,omitempty"`
	ATCSector    string     `json:"atc_sector,omitempty"`
	Intent       string     `json:"intent,omitempty"`
	SSRPriority  string     `json:"ssr_priority,omitempty"`
	Registration string     `json:"registration,omitempty"`
	TypeCode     string     `json:"type_code,omitempty"`
}

// Query retrieves archived contacts matching the parameters, newest first.
func (d *DB) Query(ctx context.Context, p QueryParams) ([]Contact, error) {
	var conditions []string
	var args []interface{}

	if p.Hex != "" {
		conditions = append(conditions, "hex = ?")
		args = append(args, strings.ToUpper(p.Hex))
	}
	if p.Callsign != "" {
		conditions = append(conditions, "callsign LIKE ?")
		args = append(args, "%"+p.Callsign+"%")
	}
	if p.Phase != "" {
		conditions = append(conditions, "phase = ?")
		args = append(args, p.Phase)
	}
	if p.Squawk != "" {
		conditions = append(conditions, "squawk = ?")
		args = append(args, p.Squawk)
	}
	if !p.Since.IsZero() {
		conditions = append(conditions, "ts >= ?")
		args = append(args, p.Since)
	}
	if !p.Until.IsZero() {
		conditions = append(conditions, "ts <= ?")
		args = append(args, p.Until)
	}

	query := `SELECT hex, ts, callsign, lat, lon, alt_baro, ground_speed, track, vert_rate, squawk, airspace, phase, atc_sector, intent, ssr_priority, registration, type_code FROM aircraft_contacts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY ts DESC"

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		err := rows.Scan(&c.Hex, &c.TS, &c.Callsign, &c.Lat, &c.Lon, &c.AltBaro,
			&c.GroundSpeed, &c.Track, &c.VertRate, &c.Squawk, &c.Airspace, &c.Phase,
			&c.ATCSector, &c.Intent, &c.SSRPriority, &c.Registration, &c.TypeCode)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return contacts, nil
}

// Stats contains aggregate archive statistics.
type Stats struct {
	TotalContacts   uint64            `json:"total_contacts"`
	UniqueAircraft  uint64            `json:"unique_aircraft"`
	ByPhase         map[string]uint64 `json:"by_phase"`
	AlertContacts   uint64            `json:"alert_contacts"`
}

// GetStats returns aggregate statistics about the archive.
func (d *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByPhase: make(map[string]uint64)}

	row := d.conn.QueryRow(ctx, "SELECT count(), uniqExact(hex) FROM aircraft_contacts")
	if err := row.Scan(&stats.TotalContacts, &stats.UniqueAircraft); err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(ctx, "SELECT phase, count() FROM aircraft_contacts WHERE phase != '' GROUP BY phase ORDER BY count() DESC LIMIT 20")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var phase string
		var count uint64
		if err := rows.Scan(&phase, &count); err != nil {
			return nil, fmt.Errorf("scan phase stats: %w", err)
		}
		stats.ByPhase[phase] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phase stats: %w", err)
	}

	row = d.conn.QueryRow(ctx, "SELECT count() FROM aircraft_contacts WHERE ssr_priority = 'CRITICAL'")
	if err := row.Scan(&stats.AlertContacts); err != nil {
		return nil, err
	}

	return stats, nil
}

// RunFlusher flushes buffered contacts on an interval until the context
// ends.
func (d *DB) RunFlusher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Flush(ctx); err != nil {
				log.Printf("archive: flush: %v", err)
			}
		}
	}
}

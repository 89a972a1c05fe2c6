// Package basestation reads aircraft registration data from a BaseStation
// format sqlite database (BaseStation.sqb), as produced by kinetic-style
// receivers and community registry dumps.
package basestation

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Aircraft is one registry record keyed by 24-bit ICAO hex address.
type Aircraft struct {
	ModeS        string `json:"hex"`
	Registration string `json:"registration,omitempty"`
	ICAOTypeCode string `json:"icao_type,omitempty"`
	OperatorFlag string `json:"operator_flag,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Type         string `json:"type,omitempty"`
	Owner        string `json:"registered_owner,omitempty"`
}

// Registry provides read-only lookups against a BaseStation database. The
// underlying pool is safe for concurrent callers.
type Registry struct {
	db *sql.DB
}

// Open opens a BaseStation database read-only.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping registry: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the connection pool.
func (r *Registry) Close() error {
	return r.db.Close()
}

const selectCols = `ModeS, Registration, ICAOTypeCode, OperatorFlagCode, Manufacturer, Type, RegisteredOwners`

func scanAircraft(row interface{ Scan(...any) error }) (*Aircraft, error) {
	var a Aircraft
	var reg, typ, flag, man, desc, owner sql.NullString
	if err := row.Scan(&a.ModeS, &reg, &typ, &flag, &man, &desc, &owner); err != nil {
		return nil, err
	}
	a.Registration = reg.String
	a.ICAOTypeCode = typ.String
	a.OperatorFlag = flag.String
	a.Manufacturer = man.String
	a.Type = desc.String
	a.Owner = owner.String
	return &a, nil
}

// Lookup returns the registry record for an ICAO hex address, or nil when no
// record exists. Some database dumps store the ModeS column with embedded
// quotes, so both forms are tried.
func (r *Registry) Lookup(hex string) (*Aircraft, error) {
	for _, key := range []string{hex, "'" + hex + "'"} {
		row := r.db.QueryRow(
			`SELECT `+selectCols+` FROM Aircraft WHERE ModeS = ?`, key)
		a, err := scanAircraft(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", hex, err)
		}
		return a, nil
	}
	return nil, nil
}

func (r *Registry) search(query string, args ...any) ([]*Aircraft, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search registry: %w", err)
	}
	defer rows.Close()

	var out []*Aircraft
	for rows.Next() {
		a, err := scanAircraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry rows: %w", err)
	}
	return out, nil
}

// SearchRegistration returns up to 50 aircraft whose registration contains
// the given fragment.
func (r *Registry) SearchRegistration(fragment string) ([]*Aircraft, error) {
	return r.search(
		`SELECT `+selectCols+` FROM Aircraft WHERE Registration LIKE ? ORDER BY Registration LIMIT 50`,
		"%"+fragment+"%")
}

// SearchType returns up to 100 aircraft matching an ICAO type code or type
// description fragment.
func (r *Registry) SearchType(fragment string) ([]*Aircraft, error) {
	return r.search(
		`SELECT `+selectCols+` FROM Aircraft WHERE ICAOTypeCode LIKE ? OR Type LIKE ? ORDER BY ModeS LIMIT 100`,
		"%"+fragment+"%", "%"+fragment+"%")
}

// Stats returns the number of registry records.
func (r *Registry) Stats() (int64, error) {
	var n int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM Aircraft`).Scan(&n); err != nil {
		return 0, fmt.Errorf("registry stats: %w", err)
	}
	return n, nil
}

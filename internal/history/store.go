// Package history persists enriched aircraft and vessel contacts, maintains
// rolling per-entity summaries, and detects flight events.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// detectWindow is how far back the event detector looks, in seconds.
const detectWindow = 300

// detectTail is how many recent contacts the detector considers.
const detectTail = 5

// Store is the historical contact store. Writes are serialized through a
// single mutex; reads go straight to the pool and may run concurrently.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	onEvent func(*Event)
}

// Open opens (or creates) a history database. An empty path uses an
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if path == "" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnEvent sets a callback invoked for each newly detected flight event,
// after the owning transaction commits.
func (s *Store) OnEvent(fn func(*Event)) {
	s.onEvent = fn
}

// StoreContact appends a contact, updates the aircraft summary, and runs the
// event detector, all in one transaction. Contacts without a hex or
// timestamp are rejected.
func (s *Store) StoreContact(c *Contact) error {
	if c.Hex == "" {
		return fmt.Errorf("contact has no hex")
	}
	if c.T == 0 {
		return fmt.Errorf("contact has no timestamp")
	}

	s.mu.Lock()
	events, err := s.storeContactLocked(c)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.onEvent != nil {
		for _, e := range events {
			s.onEvent(e)
		}
	}
	return nil
}

func (s *Store) storeContactLocked(c *Contact) ([]*Event, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Detector needs the tail *before* this contact.
	recent, err := recentAltitudes(tx, c.Hex, c.T)
	if err != nil {
		return nil, fmt.Errorf("read recent contacts: %w", err)
	}

	var raw any
	if len(c.Raw) > 0 {
		raw = string(c.Raw)
	}
	_, err = tx.Exec(`
		INSERT INTO aircraft_contacts (
			hex, t, callsign, lat, lon, alt_baro, alt_geom, ground_speed, track,
			vert_rate, seen_age, rssi, msg_count, squawk, category,
			airspace, airspace_count, phase, atc_sector, intent, ssr_priority,
			registration, type_code, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Hex, c.T, nullStr(c.Callsign), c.Lat, c.Lon, c.AltBaro, c.AltGeom,
		c.GroundSpeed, c.Track, c.VertRate, c.SeenAge, c.RSSI, c.MsgCount,
		nullStr(c.Squawk), nullStr(c.Category), nullStr(c.Airspace), c.AirspaceCount,
		nullStr(c.Phase), nullStr(c.ATCSector), nullStr(c.Intent),
		nullStr(c.SSRPriority), nullStr(c.Registration), nullStr(c.TypeCode), raw)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	if err := upsertSummary(tx, c); err != nil {
		return nil, fmt.Errorf("update summary: %w", err)
	}

	events := detectEvents(c, recent)
	var emitted []*Event
	for _, e := range events {
		inserted, err := insertEvent(tx, e)
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		if inserted {
			emitted = append(emitted, e)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return emitted, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// recentAltitudes returns altitudes of the last contacts for hex within the
// detection window before t, newest first.
func recentAltitudes(tx *sql.Tx, hex string, t int64) ([]float64, error) {
	rows, err := tx.Query(`
		SELECT alt_baro FROM aircraft_contacts
		WHERE hex = ? AND t >= ? AND t < ? AND alt_baro IS NOT NULL
		ORDER BY t DESC LIMIT ?`,
		hex, t-detectWindow, t, detectTail)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var alts []float64
	for rows.Next() {
		var a float64
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		alts = append(alts, a)
	}
	return alts, rows.Err()
}

// detectEvents applies the event rules to the new contact given the recent
// altitude tail.
func detectEvents(c *Contact, recent []float64) []*Event {
	var events []*Event

	switch c.Squawk {
	case "7500", "7600", "7700":
		squawkType := map[string]string{
			"7500": "HIJACK",
			"7600": "RADIO_FAILURE",
			"7700": "EMERGENCY",
		}[c.Squawk]
		events = append(events, &Event{
			Hex: c.Hex, T: c.T, Kind: EventEmergencySquawk,
			Lat: c.Lat, Lon: c.Lon, Alt: c.AltBaro, Squawk: c.Squawk,
			Details: map[string]string{"squawk_type": squawkType},
		})
	}

	if c.AltBaro != nil && len(recent) >= 3 {
		alt := *c.AltBaro
		minAlt, maxAlt := recent[0], recent[0]
		for _, a := range recent[1:] {
			if a < minAlt {
				minAlt = a
			}
			if a > maxAlt {
				maxAlt = a
			}
		}

		if alt > 1000 && minAlt < 500 && alt-minAlt > 800 {
			events = append(events, &Event{
				Hex: c.Hex, T: c.T, Kind: EventTakeoff,
				Lat: c.Lat, Lon: c.Lon, Alt: c.AltBaro, Squawk: c.Squawk,
			})
		}
		if alt < 500 && maxAlt > 2000 {
			events = append(events, &Event{
				Hex: c.Hex, T: c.T, Kind: EventLanding,
				Lat: c.Lat, Lon: c.Lon, Alt: c.AltBaro, Squawk: c.Squawk,
			})
		}
	}

	return events
}

// insertEvent stores an event, reporting false when the (hex, t, kind) row
// already existed.
func insertEvent(tx *sql.Tx, e *Event) (bool, error) {
	var details any
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return false, err
		}
		details = string(b)
	}

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO flight_events (hex, t, kind, lat, lon, alt, squawk, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Hex, e.T, e.Kind, e.Lat, e.Lon, e.Alt, nullStr(e.Squawk), details)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func appendUnique(set []string, v string) []string {
	if v == "" {
		return set
	}
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

func marshalSet(set []string) any {
	if len(set) == 0 {
		return nil
	}
	b, _ := json.Marshal(set)
	return string(b)
}

func unmarshalSet(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func upsertSummary(tx *sql.Tx, c *Contact) error {
	row := tx.QueryRow(`
		SELECT first_seen, last_seen, contact_count, callsigns, phases, squawks,
		       alt_max, alt_min, airspace_history
		FROM aircraft_summary WHERE hex = ?`, c.Hex)

	sum := Summary{Hex: c.Hex, FirstSeen: c.T, LastSeen: c.T}
	var callsigns, phases, squawks, airspaces sql.NullString
	var altMax, altMin sql.NullFloat64
	err := row.Scan(&sum.FirstSeen, &sum.LastSeen, &sum.ContactCount,
		&callsigns, &phases, &squawks, &altMax, &altMin, &airspaces)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	sum.Callsigns = unmarshalSet(callsigns)
	sum.Phases = unmarshalSet(phases)
	sum.Squawks = unmarshalSet(squawks)
	sum.AirspaceHistory = unmarshalSet(airspaces)
	if altMax.Valid {
		v := altMax.Float64
		sum.AltMax = &v
	}
	if altMin.Valid {
		v := altMin.Float64
		sum.AltMin = &v
	}

	if c.T < sum.FirstSeen {
		sum.FirstSeen = c.T
	}
	if c.T > sum.LastSeen {
		sum.LastSeen = c.T
	}
	sum.ContactCount++
	sum.Callsigns = appendUnique(sum.Callsigns, c.Callsign)
	sum.Phases = appendUnique(sum.Phases, c.Phase)
	sum.Squawks = appendUnique(sum.Squawks, c.Squawk)
	sum.AirspaceHistory = appendUnique(sum.AirspaceHistory, c.Airspace)
	if c.AltBaro != nil {
		if sum.AltMax == nil || *c.AltBaro > *sum.AltMax {
			sum.AltMax = c.AltBaro
		}
		if sum.AltMin == nil || *c.AltBaro < *sum.AltMin {
			sum.AltMin = c.AltBaro
		}
	}

	_, err = tx.Exec(`
		INSERT INTO aircraft_summary (hex, first_seen, last_seen, contact_count,
			callsigns, phases, squawks, alt_max, alt_min, airspace_history)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hex) DO UPDATE SET
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			contact_count = excluded.contact_count,
			callsigns = excluded.callsigns,
			phases = excluded.phases,
			squawks = excluded.squawks,
			alt_max = excluded.alt_max,
			alt_min = excluded.alt_min,
			airspace_history = excluded.airspace_history`,
		sum.Hex, sum.FirstSeen, sum.LastSeen, sum.ContactCount,
		marshalSet(sum.Callsigns), marshalSet(sum.Phases), marshalSet(sum.Squawks),
		sum.AltMax, sum.AltMin, marshalSet(sum.AirspaceHistory))
	return err
}

// StoreShipContact appends a vessel contact and updates the ship summary.
// Ships have no event detector.
func (s *Store) StoreShipContact(c *ShipContact) error {
	if c.MMSI == "" {
		return fmt.Errorf("ship contact has no mmsi")
	}
	if c.T == 0 {
		return fmt.Errorf("ship contact has no timestamp")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO ship_contacts (mmsi, t, name, lat, lon, sog, cog, heading, nav_status, ship_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.MMSI, c.T, nullStr(c.Name), c.Lat, c.Lon, c.SOG, c.COG, c.Heading,
		nullStr(c.NavStatus), nullStr(c.ShipType))
	if err != nil {
		return fmt.Errorf("insert ship contact: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO ship_summary (mmsi, first_seen, last_seen, contact_count, name, ship_type)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(mmsi) DO UPDATE SET
			last_seen = MAX(last_seen, excluded.last_seen),
			first_seen = MIN(first_seen, excluded.first_seen),
			contact_count = contact_count + 1,
			name = COALESCE(excluded.name, name),
			ship_type = COALESCE(excluded.ship_type, ship_type)`,
		c.MMSI, c.T, c.T, nullStr(c.Name), nullStr(c.ShipType))
	if err != nil {
		return fmt.Errorf("update ship summary: %w", err)
	}

	return tx.Commit()
}

// History returns the contacts for hex within the last N hours, oldest
// first.
func (s *Store) History(hex string, hours int) ([]*Contact, error) {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	rows, err := s.db.Query(`
		SELECT hex, t, callsign, lat, lon, alt_baro, alt_geom, ground_speed, track,
		       vert_rate, seen_age, rssi, msg_count, squawk, category,
		       airspace, airspace_count, phase, atc_sector, intent, ssr_priority,
		       registration, type_code, raw
		FROM aircraft_contacts
		WHERE hex = ? AND t >= ?
		ORDER BY t ASC`, hex, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContact(rows *sql.Rows) (*Contact, error) {
	var c Contact
	var callsign, squawk, category, airspace, phase, atc, intent, prio, reg, typeCode, raw sql.NullString
	var airspaceCount sql.NullInt64
	var msgCount sql.NullInt64
	var lat, lon, altBaro, altGeom, gs, track, vrate, seen, rssi sql.NullFloat64

	err := rows.Scan(&c.Hex, &c.T, &callsign, &lat, &lon, &altBaro, &altGeom,
		&gs, &track, &vrate, &seen, &rssi, &msgCount, &squawk, &category,
		&airspace, &airspaceCount, &phase, &atc, &intent, &prio, &reg, &typeCode, &raw)
	if err != nil {
		return nil, err
	}

	c.Callsign = callsign.String
	c.Squawk = squawk.String
	c.Category = category.String
	c.Airspace = airspace.String
	c.AirspaceCount = int(airspaceCount.Int64)
	c.Phase = phase.String
	c.ATCSector = atc.String
	c.Intent = intent.String
	c.SSRPriority = prio.String
	c.Registration = reg.String
	c.TypeCode = typeCode.String
	c.Lat = nullFloat(lat)
	c.Lon = nullFloat(lon)
	c.AltBaro = nullFloat(altBaro)
	c.AltGeom = nullFloat(altGeom)
	c.GroundSpeed = nullFloat(gs)
	c.Track = nullFloat(track)
	c.VertRate = nullFloat(vrate)
	c.SeenAge = nullFloat(seen)
	c.RSSI = nullFloat(rssi)
	if msgCount.Valid {
		v := msgCount.Int64
		c.MsgCount = &v
	}
	if raw.Valid && raw.String != "" {
		c.Raw = json.RawMessage(raw.String)
	}
	return &c, nil
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// Summary returns the rolling aggregate for hex, or nil when the aircraft
// has never been seen.
func (s *Store) Summary(hex string) (*Summary, error) {
	row := s.db.QueryRow(`
		SELECT hex, first_seen, last_seen, contact_count, callsigns, phases,
		       squawks, alt_max, alt_min, airspace_history
		FROM aircraft_summary WHERE hex = ?`, hex)

	var sum Summary
	var callsigns, phases, squawks, airspaces sql.NullString
	var altMax, altMin sql.NullFloat64
	err := row.Scan(&sum.Hex, &sum.FirstSeen, &sum.LastSeen, &sum.ContactCount,
		&callsigns, &phases, &squawks, &altMax, &altMin, &airspaces)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}

	sum.Callsigns = unmarshalSet(callsigns)
	sum.Phases = unmarshalSet(phases)
	sum.Squawks = unmarshalSet(squawks)
	sum.AirspaceHistory = unmarshalSet(airspaces)
	sum.AltMax = nullFloat(altMax)
	sum.AltMin = nullFloat(altMin)
	return &sum, nil
}

// Events returns flight events, newest first. Hex and kind filters are
// optional.
func (s *Store) Events(hex, kind string, hours int) ([]*Event, error) {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()

	query := `SELECT id, hex, t, kind, lat, lon, alt, squawk, details FROM flight_events WHERE t >= ?`
	args := []any{cutoff}
	if hex != "" {
		query += " AND hex = ?"
		args = append(args, hex)
	}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY t DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Event
	for rows.Next() {
		var e Event
		var squawk, details sql.NullString
		var lat, lon, alt sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.Hex, &e.T, &e.Kind, &lat, &lon, &alt, &squawk, &details); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Lat = nullFloat(lat)
		e.Lon = nullFloat(lon)
		e.Alt = nullFloat(alt)
		e.Squawk = squawk.String
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &e.Details)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Active lists aircraft seen within the last N minutes with their latest
// position.
func (s *Store) Active(minutes int) ([]*ActiveAircraft, error) {
	if minutes <= 0 {
		minutes = 10
	}
	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute).Unix()

	rows, err := s.db.Query(`
		SELECT c.hex, c.t, c.callsign, c.lat, c.lon, c.alt_baro
		FROM aircraft_contacts c
		JOIN (
			SELECT hex, MAX(t) AS max_t FROM aircraft_contacts
			WHERE t >= ? GROUP BY hex
		) latest ON c.hex = latest.hex AND c.t = latest.max_t
		GROUP BY c.hex
		ORDER BY c.t DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query active: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ActiveAircraft
	for rows.Next() {
		var a ActiveAircraft
		var callsign sql.NullString
		var lat, lon, alt sql.NullFloat64
		if err := rows.Scan(&a.Hex, &a.LastSeen, &callsign, &lat, &lon, &alt); err != nil {
			return nil, fmt.Errorf("scan active: %w", err)
		}
		a.Callsign = callsign.String
		a.Lat = nullFloat(lat)
		a.Lon = nullFloat(lon)
		a.Alt = nullFloat(alt)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DetectLostContacts emits LOST_CONTACT events for aircraft whose last
// contact is older than quietAfter but newer than window. Returns the newly
// emitted events.
func (s *Store) DetectLostContacts(quietAfter, window time.Duration) ([]*Event, error) {
	now := time.Now().Unix()
	upper := now - int64(quietAfter.Seconds())
	lower := now - int64(window.Seconds())

	rows, err := s.db.Query(`
		SELECT hex, last_seen FROM aircraft_summary
		WHERE last_seen <= ? AND last_seen > ?`, upper, lower)
	if err != nil {
		return nil, fmt.Errorf("query quiet aircraft: %w", err)
	}
	var candidates []*Event
	for rows.Next() {
		var hex string
		var lastSeen int64
		if err := rows.Scan(&hex, &lastSeen); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan quiet aircraft: %w", err)
		}
		candidates = append(candidates, &Event{Hex: hex, T: lastSeen, Kind: EventLostContact})
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var emitted []*Event
	for _, e := range candidates {
		inserted, err := insertEvent(tx, e)
		if err != nil {
			return nil, fmt.Errorf("insert lost-contact event: %w", err)
		}
		if inserted {
			emitted = append(emitted, e)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if s.onEvent != nil {
		for _, e := range emitted {
			s.onEvent(e)
		}
	}
	return emitted, nil
}

// Cleanup deletes contacts older than the retention window, recomputes
// first_seen on surviving summaries, and drops summaries left with no
// contacts. Returns the number of deleted contact rows.
func (s *Store) Cleanup(days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM aircraft_contacts WHERE t < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old contacts: %w", err)
	}
	deleted, _ := res.RowsAffected()

	if _, err := tx.Exec(`DELETE FROM ship_contacts WHERE t < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("delete old ship contacts: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM flight_events WHERE t < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE aircraft_summary SET first_seen = (
			SELECT MIN(t) FROM aircraft_contacts WHERE aircraft_contacts.hex = aircraft_summary.hex
		) WHERE EXISTS (
			SELECT 1 FROM aircraft_contacts WHERE aircraft_contacts.hex = aircraft_summary.hex
		)`)
	if err != nil {
		return 0, fmt.Errorf("recompute first_seen: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM aircraft_summary WHERE NOT EXISTS (
			SELECT 1 FROM aircraft_contacts WHERE aircraft_contacts.hex = aircraft_summary.hex
		)`)
	if err != nil {
		return 0, fmt.Errorf("drop orphan summaries: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM ship_summary WHERE NOT EXISTS (
			SELECT 1 FROM ship_contacts WHERE ship_contacts.mmsi = ship_summary.mmsi
		)`)
	if err != nil {
		return 0, fmt.Errorf("drop orphan ship summaries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return deleted, nil
}

// RecordTick logs one enrichment-tick timing row into performance_stats.
func (s *Store) RecordTick(contacts int, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO performance_stats (t, contacts, duration_ms) VALUES (?, ?, ?)`,
		time.Now().Unix(), contacts, float64(duration.Microseconds())/1000.0)
	return err
}

// Stats returns aggregate store statistics.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}

	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(MIN(t), 0), COALESCE(MAX(t), 0) FROM aircraft_contacts`)
	if err := row.Scan(&st.AircraftContacts, &st.OldestContact, &st.NewestContact); err != nil {
		return nil, fmt.Errorf("contact stats: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM aircraft_summary`).Scan(&st.AircraftTracked); err != nil {
		return nil, fmt.Errorf("summary stats: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ship_contacts`).Scan(&st.ShipContacts); err != nil {
		return nil, fmt.Errorf("ship stats: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ship_summary`).Scan(&st.ShipsTracked); err != nil {
		return nil, fmt.Errorf("ship summary stats: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM flight_events`).Scan(&st.FlightEvents); err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}

	if s.path != "" {
		if fi, err := os.Stat(s.path); err == nil {
			st.DBSizeBytes = fi.Size()
		}
	}
	return st, nil
}

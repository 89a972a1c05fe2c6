package history

// schema defines the history database tables. Set-valued summary columns
// (callsigns, phases, squawks, airspace_history) are JSON arrays.
const schema = `
CREATE TABLE IF NOT EXISTS aircraft_contacts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	hex           TEXT NOT NULL,
	t             INTEGER NOT NULL,
	callsign      TEXT,
	lat           REAL,
	lon           REAL,
	alt_baro      REAL,
	alt_geom      REAL,
	ground_speed  REAL,
	track         REAL,
	vert_rate     REAL,
	seen_age      REAL,
	rssi          REAL,
	msg_count     INTEGER,
	squawk        TEXT,
	category      TEXT,
	airspace      TEXT,
	airspace_count INTEGER,
	phase         TEXT,
	atc_sector    TEXT,
	intent        TEXT,
	ssr_priority  TEXT,
	registration  TEXT,
	type_code     TEXT,
	raw           TEXT
);

CREATE INDEX IF NOT EXISTS idx_aircraft_hex_time ON aircraft_contacts(hex, t);
CREATE INDEX IF NOT EXISTS idx_aircraft_time ON aircraft_contacts(t);
CREATE INDEX IF NOT EXISTS idx_aircraft_callsign ON aircraft_contacts(callsign);

CREATE TABLE IF NOT EXISTS aircraft_summary (
	hex              TEXT PRIMARY KEY,
	first_seen       INTEGER NOT NULL,
	last_seen        INTEGER NOT NULL,
	contact_count    INTEGER NOT NULL DEFAULT 0,
	callsigns        TEXT,
	phases           TEXT,
	squawks          TEXT,
	alt_max          REAL,
	alt_min          REAL,
	airspace_history TEXT
);

CREATE TABLE IF NOT EXISTS ship_contacts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	mmsi       TEXT NOT NULL,
	t          INTEGER NOT NULL,
	name       TEXT,
	lat        REAL,
	lon        REAL,
	sog        REAL,
	cog        REAL,
	heading    REAL,
	nav_status TEXT,
	ship_type  TEXT
);

CREATE INDEX IF NOT EXISTS idx_ship_mmsi_time ON ship_contacts(mmsi, t);

CREATE TABLE IF NOT EXISTS ship_summary (
	mmsi          TEXT PRIMARY KEY,
	first_seen    INTEGER NOT NULL,
	last_seen     INTEGER NOT NULL,
	contact_count INTEGER NOT NULL DEFAULT 0,
	name          TEXT,
	ship_type     TEXT
);

CREATE TABLE IF NOT EXISTS flight_events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	hex     TEXT NOT NULL,
	t       INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	lat     REAL,
	lon     REAL,
	alt     REAL,
	squawk  TEXT,
	details TEXT,
	UNIQUE(hex, t, kind)
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON flight_events(kind);

CREATE TABLE IF NOT EXISTS performance_stats (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	t           INTEGER NOT NULL,
	contacts    INTEGER NOT NULL,
	duration_ms REAL NOT NULL
);
`

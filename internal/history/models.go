package history

import "encoding/json"

// Contact is one enriched ADS-B observation of an aircraft. Hex and T are
// required; everything else is optional and left nil/empty when the upstream
// record lacked it. Contacts are append-only.
type Contact struct {
	Hex      string `json:"hex"`
	T        int64  `json:"t"`
	Callsign string `json:"callsign,omitempty"`

	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	AltBaro     *float64 `json:"alt_baro,omitempty"`
	AltGeom     *float64 `json:"alt_geom,omitempty"`
	GroundSpeed *float64 `json:"gs,omitempty"`
	Track       *float64 `json:"track,omitempty"`
	VertRate    *float64 `json:"vert_rate,omitempty"`
	SeenAge     *float64 `json:"seen_age,omitempty"`
	RSSI        *float64 `json:"rssi,omitempty"`
	MsgCount    *int64   `json:"msg_count,omitempty"`

	Squawk   string `json:"squawk,omitempty"`
	Category string `json:"category,omitempty"`

	// Enrichment labels.
	Airspace      string `json:"airspace,omitempty"`
	AirspaceCount int    `json:"airspace_count,omitempty"`
	Phase         string `json:"phase,omitempty"`
	ATCSector     string `json:"atc_sector,omitempty"`
	Intent        string `json:"intent,omitempty"`
	SSRPriority   string `json:"ssr_priority,omitempty"`
	Registration  string `json:"registration,omitempty"`
	TypeCode      string `json:"type_code,omitempty"`

	// Raw preserves upstream fields the enrichment pipeline does not model.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Summary is the rolling per-aircraft aggregate, updated atomically with
// each contact insert.
type Summary struct {
	Hex             string   `json:"hex"`
	FirstSeen       int64    `json:"first_seen"`
	LastSeen        int64    `json:"last_seen"`
	ContactCount    int64    `json:"contact_count"`
	Callsigns       []string `json:"callsigns,omitempty"`
	Phases          []string `json:"phases,omitempty"`
	Squawks         []string `json:"squawks,omitempty"`
	AltMax          *float64 `json:"alt_max,omitempty"`
	AltMin          *float64 `json:"alt_min,omitempty"`
	AirspaceHistory []string `json:"airspace_history,omitempty"`
}

// Flight event kinds emitted by the detector and janitors.
const (
	EventTakeoff         = "TAKEOFF"
	EventLanding         = "LANDING"
	EventEmergencySquawk = "EMERGENCY_SQUAWK"
	EventRadioFailure    = "RADIO_FAILURE"
	EventHijackSquawk    = "HIJACK_SQUAWK"
	EventLostContact     = "LOST_CONTACT"
)

// Event is one detected flight event, append-only and idempotent per
// (hex, t, kind).
type Event struct {
	ID      int64             `json:"id"`
	Hex     string            `json:"hex"`
	T       int64             `json:"t"`
	Kind    string            `json:"kind"`
	Lat     *float64          `json:"lat,omitempty"`
	Lon     *float64          `json:"lon,omitempty"`
	Alt     *float64          `json:"alt,omitempty"`
	Squawk  string            `json:"squawk,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ShipContact is one AIS observation of a vessel.
type ShipContact struct {
	MMSI      string   `json:"mmsi"`
	T         int64    `json:"t"`
	Name      string   `json:"name,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	SOG       *float64 `json:"sog,omitempty"`
	COG       *float64 `json:"cog,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	NavStatus string   `json:"nav_status,omitempty"`
	ShipType  string   `json:"ship_type,omitempty"`
}

// ActiveAircraft is one row of the recently-seen listing.
type ActiveAircraft struct {
	Hex      string   `json:"hex"`
	LastSeen int64    `json:"last_seen"`
	Callsign string   `json:"callsign,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Alt      *float64 `json:"alt,omitempty"`
}

// Stats summarizes the store for the database/stats endpoint.
type Stats struct {
	AircraftContacts int64 `json:"aircraft_contacts"`
	AircraftTracked  int64 `json:"aircraft_tracked"`
	ShipContacts     int64 `json:"ship_contacts"`
	ShipsTracked     int64 `json:"ships_tracked"`
	FlightEvents     int64 `json:"flight_events"`
	OldestContact    int64 `json:"oldest_contact,omitempty"`
	NewestContact    int64 `json:"newest_contact,omitempty"`
	DBSizeBytes      int64 `json:"db_size_bytes,omitempty"`
}

// Package adsb polls a dump1090/readsb aircraft.json feed and enriches each
// contact with airspace, squawk, registry, and flight-state context.
package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"skyradar/internal/airspace"
	"skyradar/internal/basestation"
	"skyradar/internal/flightstate"
	"skyradar/internal/history"
	"skyradar/internal/ssr"
)

// altitude handles the alt_baro field, which is a number in feet or the
// string "ground".
type altitude struct {
	Ft     *float64
	Ground bool
}

func (a *altitude) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.Ground = s == "ground"
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	a.Ft = &f
	return nil
}

type rawAircraft struct {
	Hex      string   `json:"hex"`
	Flight   string   `json:"flight"`
	AltBaro  altitude `json:"alt_baro"`
	AltGeom  *float64 `json:"alt_geom"`
	GS       *float64 `json:"gs"`
	Track    *float64 `json:"track"`
	BaroRate *float64 `json:"baro_rate"`
	GeomRate *float64 `json:"geom_rate"`
	Squawk   string   `json:"squawk"`
	Category string   `json:"category"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Seen     *float64 `json:"seen"`
	SeenPos  *float64 `json:"seen_pos"`
	RSSI     *float64 `json:"rssi"`
	Messages *int64   `json:"messages"`
}

type feed struct {
	Now      float64       `json:"now"`
	Messages int64         `json:"messages"`
	Aircraft []rawAircraft `json:"aircraft"`
}

// Aircraft is one enriched contact as served to clients.
type Aircraft struct {
	Hex      string   `json:"hex"`
	Flight   string   `json:"flight,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	AltBaro  *float64 `json:"alt_baro,omitempty"`
	AltGeom  *float64 `json:"alt_geom,omitempty"`
	OnGround bool     `json:"on_ground,omitempty"`
	GS       *float64 `json:"gs,omitempty"`
	Track    *float64 `json:"track,omitempty"`
	VertRate *float64 `json:"vert_rate,omitempty"`
	Squawk   string   `json:"squawk,omitempty"`
	Category string   `json:"category,omitempty"`
	Seen     *float64 `json:"seen,omitempty"`
	RSSI     *float64 `json:"rssi,omitempty"`
	Messages *int64   `json:"messages,omitempty"`

	Airspace        []string `json:"airspace,omitempty"`
	AirspaceSummary string   `json:"airspace_summary,omitempty"`
	Phase           string   `json:"phase,omitempty"`
	ATCSector       string   `json:"atc_sector,omitempty"`
	Intent          string   `json:"intent,omitempty"`

	SquawkInfo *ssr.Code `json:"squawk_info,omitempty"`

	Registration string `json:"registration,omitempty"`
	TypeCode     string `json:"type_code,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty"`
	Operator     string `json:"operator,omitempty"`
}

// Status reports poller health.
type Status struct {
	Source        string    `json:"source"`
	LastPoll      time.Time `json:"last_poll,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	AircraftCount int       `json:"aircraft_count"`
	Polls         int64     `json:"polls"`
}

// Config wires the poller's inputs.
type Config struct {
	URL      string
	File     string
	Interval time.Duration
	Repair   bool

	Airspace *airspace.Index
	Catalog  *ssr.Catalog
	Registry *basestation.Registry
	Store    *history.Store
}

// Poller fetches the feed on an interval and keeps the current enriched
// picture in memory.
type Poller struct {
	cfg    Config
	client *http.Client

	mu       sync.RWMutex
	current  map[string]*Aircraft
	lastPoll time.Time
	lastErr  error
	polls    int64

	regMu    sync.Mutex
	regCache map[string]*basestation.Aircraft

	onAlert   func(*Aircraft, *ssr.Code)
	onContact func(*history.Contact)
}

// New creates a poller. URL is tried first; File is the fallback when the
// upstream is unreachable.
func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Poller{
		cfg:      cfg,
		client:   &http.Client{Timeout: 5 * time.Second},
		current:  make(map[string]*Aircraft),
		regCache: make(map[string]*basestation.Aircraft),
	}
}

// OnAlert registers a callback fired for each contact squawking an
// alert-worthy code.
func (p *Poller) OnAlert(fn func(*Aircraft, *ssr.Code)) {
	p.onAlert = fn
}

// OnContact registers a callback fired for each enriched contact, after it
// is persisted. Used to mirror contacts into the long-term archive.
func (p *Poller) OnContact(fn func(*history.Contact)) {
	p.onContact = fn
}

// Poll runs one fetch-enrich-store cycle. Per-aircraft failures are logged
// and skipped so one bad record never drops the tick.
func (p *Poller) Poll(ctx context.Context) error {
	started := time.Now()

	body, err := p.fetch(ctx)
	if err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return err
	}

	var f feed
	if err := json.Unmarshal(body, &f); err != nil {
		err = fmt.Errorf("decode feed: %w", err)
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return err
	}

	now := time.Now().Unix()
	next := make(map[string]*Aircraft, len(f.Aircraft))
	for i := range f.Aircraft {
		raw := &f.Aircraft[i]
		if raw.Hex == "" {
			continue
		}
		ac := p.enrich(raw)
		next[ac.Hex] = ac

		contact := p.toContact(ac, raw, now)
		if p.cfg.Store != nil {
			if err := p.cfg.Store.StoreContact(contact); err != nil {
				log.Printf("adsb: store %s: %v", ac.Hex, err)
			}
		}
		if p.onContact != nil {
			p.onContact(contact)
		}
	}

	p.mu.Lock()
	p.current = next
	p.lastPoll = time.Now()
	p.lastErr = nil
	p.polls++
	p.mu.Unlock()

	if p.cfg.Store != nil {
		if err := p.cfg.Store.RecordTick(len(next), time.Since(started)); err != nil {
			log.Printf("adsb: record tick: %v", err)
		}
	}
	return nil
}

// fetch tries the upstream URL, then the local file.
func (p *Poller) fetch(ctx context.Context) ([]byte, error) {
	var netErr error
	if p.cfg.URL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
			}
			netErr = fmt.Errorf("upstream status %d", resp.StatusCode)
		} else {
			netErr = err
		}
	}

	if p.cfg.File != "" {
		body, err := os.ReadFile(p.cfg.File)
		if err == nil {
			return body, nil
		}
		if netErr == nil {
			netErr = err
		}
	}
	if netErr == nil {
		netErr = fmt.Errorf("no feed source configured")
	}
	return nil, fmt.Errorf("fetch aircraft: %w", netErr)
}

// enrich runs the classification chain over one raw record.
func (p *Poller) enrich(raw *rawAircraft) *Aircraft {
	ac := &Aircraft{
		Hex:      strings.ToUpper(strings.TrimSpace(raw.Hex)),
		Flight:   strings.TrimSpace(raw.Flight),
		Lat:      raw.Lat,
		Lon:      raw.Lon,
		AltBaro:  raw.AltBaro.Ft,
		AltGeom:  raw.AltGeom,
		OnGround: raw.AltBaro.Ground,
		GS:       raw.GS,
		Track:    raw.Track,
		Squawk:   strings.TrimSpace(raw.Squawk),
		Category: raw.Category,
		Seen:     raw.Seen,
		RSSI:     raw.RSSI,
		Messages: raw.Messages,
	}
	if raw.BaroRate != nil {
		ac.VertRate = raw.BaroRate
	} else {
		ac.VertRate = raw.GeomRate
	}

	var zones []*airspace.Zone
	if p.cfg.Airspace != nil && ac.Lat != nil && ac.Lon != nil {
		zones = p.cfg.Airspace.Classify(*ac.Lat, *ac.Lon)
		for _, z := range zones {
			ac.Airspace = append(ac.Airspace, z.Name)
		}
		ac.AirspaceSummary = airspace.Describe(zones)
	}

	if p.cfg.Catalog != nil && ac.Squawk != "" {
		if code := p.cfg.Catalog.Lookup(ac.Squawk); code != nil {
			ac.SquawkInfo = code
			if code.Alert && p.onAlert != nil {
				p.onAlert(ac, code)
			}
		}
	}

	if p.cfg.Registry != nil {
		if reg := p.lookupRegistry(ac.Hex); reg != nil {
			ac.Registration = reg.Registration
			ac.TypeCode = reg.ICAOTypeCode
			ac.AircraftType = reg.Type
			ac.Operator = reg.Owner
		}
	}

	tel := flightstate.Telemetry{}
	if ac.AltBaro != nil {
		tel.Alt = *ac.AltBaro
	}
	if ac.GS != nil {
		tel.GS = *ac.GS
	}
	if ac.VertRate != nil {
		tel.VRate = *ac.VertRate
	}
	ac.Phase = flightstate.Phase(tel, zones)
	if ac.OnGround {
		ac.Phase = flightstate.PhaseParked
		if ac.GS != nil && *ac.GS > 2 {
			ac.Phase = flightstate.PhaseTaxiing
		}
	}
	if p.cfg.Repair {
		ac.Phase = flightstate.Repair(ac.Phase, tel.GS, tel.Alt)
	}
	ac.ATCSector = flightstate.ATCSector(ac.Squawk)
	ac.Intent = flightstate.Intent(ac.Phase, zones, ac.Squawk)

	return ac
}

// lookupRegistry caches per-hex registry answers, including misses.
func (p *Poller) lookupRegistry(hex string) *basestation.Aircraft {
	p.regMu.Lock()
	if reg, ok := p.regCache[hex]; ok {
		p.regMu.Unlock()
		return reg
	}
	p.regMu.Unlock()

	reg, err := p.cfg.Registry.Lookup(hex)
	if err != nil {
		log.Printf("adsb: registry lookup %s: %v", hex, err)
		return nil
	}
	p.regMu.Lock()
	p.regCache[hex] = reg
	p.regMu.Unlock()
	return reg
}

func (p *Poller) toContact(ac *Aircraft, raw *rawAircraft, t int64) *history.Contact {
	c := &history.Contact{
		Hex:           ac.Hex,
		T:             t,
		Callsign:      ac.Flight,
		Lat:           ac.Lat,
		Lon:           ac.Lon,
		AltBaro:       ac.AltBaro,
		AltGeom:       ac.AltGeom,
		GroundSpeed:   ac.GS,
		Track:         ac.Track,
		VertRate:      ac.VertRate,
		SeenAge:       raw.Seen,
		RSSI:          raw.RSSI,
		MsgCount:      raw.Messages,
		Squawk:        ac.Squawk,
		Category:      ac.Category,
		AirspaceCount: len(ac.Airspace),
		Phase:         ac.Phase,
		ATCSector:     ac.ATCSector,
		Intent:        ac.Intent,
		Registration:  ac.Registration,
		TypeCode:      ac.TypeCode,
	}
	if len(ac.Airspace) > 0 {
		c.Airspace = strings.Join(ac.Airspace, "; ")
	}
	if ac.SquawkInfo != nil {
		c.SSRPriority = ac.SquawkInfo.Priority
	}
	if rawJSON, err := json.Marshal(raw); err == nil {
		c.Raw = rawJSON
	}
	return c
}

// Snapshot returns the current enriched aircraft, sorted by hex.
func (p *Poller) Snapshot() []*Aircraft {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Aircraft, 0, len(p.current))
	for _, ac := range p.current {
		cp := *ac
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Hex < out[b].Hex })
	return out
}

// Aircraft returns one tracked contact, or nil.
func (p *Poller) Aircraft(hex string) *Aircraft {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ac, ok := p.current[strings.ToUpper(hex)]
	if !ok {
		return nil
	}
	cp := *ac
	return &cp
}

// Status reports poller health for the status endpoint.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := Status{
		Source:        p.cfg.URL,
		LastPoll:      p.lastPoll,
		AircraftCount: len(p.current),
		Polls:         p.polls,
	}
	if st.Source == "" {
		st.Source = p.cfg.File
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

// Run polls until the context ends. Poll failures are logged, never fatal.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				log.Printf("adsb: poll: %v", err)
			}
		}
	}
}

// Summarize renders the one-line description indexed for semantic search.
func Summarize(ac *Aircraft) string {
	name := ac.Flight
	if name == "" {
		name = ac.Registration
	}
	if name == "" {
		name = ac.Hex
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ADS-B: %s (%s)", name, ac.Hex)
	if ac.AircraftType != "" {
		fmt.Fprintf(&b, " %s", ac.AircraftType)
	}
	if ac.AltBaro != nil {
		fmt.Fprintf(&b, " at %.0f ft", *ac.AltBaro)
	} else if ac.OnGround {
		b.WriteString(" on the ground")
	}
	if ac.GS != nil {
		fmt.Fprintf(&b, ", speed %.0f knots", *ac.GS)
	}
	if ac.Lat != nil && ac.Lon != nil {
		fmt.Fprintf(&b, ", position %.4f, %.4f", *ac.Lat, *ac.Lon)
	}
	if ac.Phase != "" {
		fmt.Fprintf(&b, ", phase %s", ac.Phase)
	}
	if ac.AirspaceSummary != "" {
		fmt.Fprintf(&b, ", in %s", ac.AirspaceSummary)
	}
	if ac.Intent != "" {
		fmt.Fprintf(&b, ", intent %s", ac.Intent)
	}
	if ac.SquawkInfo != nil && ac.SquawkInfo.Alert {
		fmt.Fprintf(&b, ", ALERT squawk %s (%s)", ac.Squawk, ac.SquawkInfo.Description)
	}
	return b.String()
}

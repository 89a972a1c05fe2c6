// Package ais maintains a live vessel picture from an aisstream.io
// WebSocket subscription: per-vessel partial state merge, staleness
// eviction, and great-circle range queries.
package ais

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"skyradar/internal/geo"
)

// DefaultURL is the public aisstream.io endpoint.
const DefaultURL = "wss://stream.aisstream.io/v0/stream"

// maxReconnects is the number of consecutive failed connection attempts
// before the consumer halts.
const maxReconnects = 5

// Bounds is the lat/lon subscription box.
type Bounds struct {
	North, South, East, West float64
}

// UKBounds covers the UK and surrounding waters.
var UKBounds = Bounds{North: 60, South: 50, East: 2, West: -10}

// Vessel is the merged state of one tracked vessel. Fields arriving in
// different message types accumulate; a known field is never overwritten by
// an absent one.
type Vessel struct {
	MMSI        string    `json:"mmsi"`
	LastUpdate  time.Time `json:"last_update"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	SOG         *float64  `json:"sog,omitempty"`
	COG         *float64  `json:"cog,omitempty"`
	Heading     *float64  `json:"heading,omitempty"`
	NavStatus   string    `json:"nav_status,omitempty"`
	TypeCode    *int      `json:"type_code,omitempty"`
	TypeName    string    `json:"type_name,omitempty"`
	Name        string    `json:"name,omitempty"`
	Callsign    string    `json:"callsign,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Length      *float64  `json:"length,omitempty"`
	Width       *float64  `json:"width,omitempty"`
}

// VesselInRange is a vessel annotated with distance and bearing from the
// query point.
type VesselInRange struct {
	Vessel
	DistanceNM float64 `json:"distance_nm"`
	BearingDeg float64 `json:"bearing_deg"`
}

// Status reports the consumer's connection state for the status endpoint.
type Status struct {
	Connected    bool      `json:"connected"`
	Halted       bool      `json:"halted"`
	VesselCount  int       `json:"vessel_count"`
	MessageCount int64     `json:"message_count"`
	LastMessage  time.Time `json:"last_message,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Config holds AIS consumer settings.
type Config struct {
	URL       string
	APIKey    string
	Bounds    Bounds
	VesselTTL time.Duration
}

// Consumer is the long-lived AIS client. All vessel-map mutations happen on
// the consumer's own goroutine; readers get copies.
type Consumer struct {
	cfg Config

	mu      sync.RWMutex
	vessels map[string]*Vessel

	stMu      sync.Mutex
	connected bool
	halted    bool
	msgCount  int64
	lastMsg   time.Time
	lastErr   string
	cancel    context.CancelFunc
	done      chan struct{}

	onShipContact func(*Vessel)
}

// New creates a consumer. Call Start to open the stream.
func New(cfg Config) *Consumer {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Bounds == (Bounds{}) {
		cfg.Bounds = UKBounds
	}
	if cfg.VesselTTL == 0 {
		cfg.VesselTTL = 10 * time.Minute
	}
	return &Consumer{cfg: cfg, vessels: make(map[string]*Vessel)}
}

// OnShipContact sets a callback invoked after each position-bearing merge,
// with a copy of the merged vessel.
func (c *Consumer) OnShipContact(fn func(*Vessel)) {
	c.onShipContact = fn
}

// subscription is the aisstream.io subscription message.
type subscription struct {
	APIKey             string        `json:"APIKey"`
	BoundingBoxes      [][][]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string      `json:"FilterMessageTypes"`
}

var filterMessageTypes = []string{
	"PositionReport",
	"BaseStationReport",
	"StaticAndVoyageData",
	"StandardClassBPositionReport",
	"AidToNavigationReport",
	"StaticDataReport",
}

// envelope is the inbound aisstream.io message frame.
type envelope struct {
	MessageType string                     `json:"MessageType"`
	MetaData    metaData                   `json:"MetaData"`
	Message     map[string]json.RawMessage `json:"Message"`
}

type metaData struct {
	MMSI      json.Number `json:"MMSI"`
	ShipName  string      `json:"ShipName"`
	Latitude  *float64    `json:"latitude"`
	Longitude *float64    `json:"longitude"`
}

// positionPayload covers the kinematic fields shared by position-bearing
// message types.
type positionPayload struct {
	SOG         *float64 `json:"Sog"`
	COG         *float64 `json:"Cog"`
	TrueHeading *float64 `json:"TrueHeading"`
	NavStatus   *int     `json:"NavigationalStatus"`
}

// staticPayload covers static and voyage data fields.
type staticPayload struct {
	Name        string `json:"Name"`
	CallSign    string `json:"CallSign"`
	Destination string `json:"Destination"`
	Type        *int   `json:"Type"`
	Dimension   *struct {
		A float64 `json:"A"`
		B float64 `json:"B"`
		C float64 `json:"C"`
		D float64 `json:"D"`
	} `json:"Dimension"`
}

// Start opens the stream on a background goroutine. Returns an error when
// already running.
func (c *Consumer) Start(ctx context.Context) error {
	c.stMu.Lock()
	defer c.stMu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("ais consumer already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.halted = false
	c.done = make(chan struct{})
	go c.run(runCtx)
	return nil
}

// Stop closes the stream and waits for the consumer goroutine to exit, with
// a bounded wait.
func (c *Consumer) Stop() {
	c.stMu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.stMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("ais: consumer did not stop within 5s")
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	defer c.setConnected(false)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			attempt++
			c.setError(fmt.Sprintf("dial: %v", err))
			if attempt >= maxReconnects {
				log.Printf("ais: giving up after %d connection attempts", attempt)
				c.setHalted()
				return
			}
			if !sleepCtx(ctx, backoff(attempt)) {
				return
			}
			continue
		}

		if err := c.subscribe(conn); err != nil {
			c.setError(fmt.Sprintf("subscribe: %v", err))
			_ = conn.Close()
			attempt++
			if attempt >= maxReconnects {
				c.setHalted()
				return
			}
			if !sleepCtx(ctx, backoff(attempt)) {
				return
			}
			continue
		}

		c.setConnected(true)
		log.Printf("ais: connected to %s", c.cfg.URL)

		err = c.readLoop(ctx, conn, &attempt)
		c.setConnected(false)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		attempt++
		c.setError(fmt.Sprintf("read: %v", err))
		if attempt >= maxReconnects {
			log.Printf("ais: giving up after %d consecutive failures", attempt)
			c.setHalted()
			return
		}
		log.Printf("ais: reconnecting in %s (attempt %d)", backoff(attempt), attempt)
		if !sleepCtx(ctx, backoff(attempt)) {
			return
		}
	}
}

func (c *Consumer) subscribe(conn *websocket.Conn) error {
	sub := subscription{
		APIKey: c.cfg.APIKey,
		BoundingBoxes: [][][]float64{{
			{c.cfg.Bounds.South, c.cfg.Bounds.West},
			{c.cfg.Bounds.North, c.cfg.Bounds.East},
		}},
		FilterMessageTypes: filterMessageTypes,
	}
	return conn.WriteJSON(sub)
}

// readLoop reads until the connection fails or ctx is cancelled. Any
// successful read resets the reconnect attempt counter. Decode errors are
// logged and skipped without disconnecting.
func (c *Consumer) readLoop(ctx context.Context, conn *websocket.Conn, attempt *int) error {
	// Unblock ReadMessage on cancellation with a close frame.
	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("stream closed: %w", err)
			}
			return err
		}
		*attempt = 0

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("ais: skipping undecodable message: %v", err)
			continue
		}
		c.handle(&env)
	}
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// handle merges one inbound message into the vessel map.
func (c *Consumer) handle(env *envelope) {
	mmsi := env.MetaData.MMSI.String()
	if mmsi == "" || mmsi == "0" {
		return
	}

	c.stMu.Lock()
	c.msgCount++
	c.lastMsg = time.Now()
	c.stMu.Unlock()

	c.mu.Lock()
	v, ok := c.vessels[mmsi]
	if !ok {
		v = &Vessel{MMSI: mmsi}
		c.vessels[mmsi] = v
	}
	v.LastUpdate = time.Now()

	if env.MetaData.ShipName != "" && trimShipName(env.MetaData.ShipName) != "" {
		v.Name = trimShipName(env.MetaData.ShipName)
	}
	if env.MetaData.Latitude != nil {
		v.Lat = env.MetaData.Latitude
	}
	if env.MetaData.Longitude != nil {
		v.Lon = env.MetaData.Longitude
	}

	if raw, ok := env.Message[env.MessageType]; ok {
		switch env.MessageType {
		case "PositionReport", "StandardClassBPositionReport":
			var p positionPayload
			if err := json.Unmarshal(raw, &p); err == nil {
				if p.SOG != nil {
					v.SOG = p.SOG
				}
				if p.COG != nil {
					v.COG = p.COG
				}
				if p.TrueHeading != nil && *p.TrueHeading < 360 {
					v.Heading = p.TrueHeading
				}
				if p.NavStatus != nil {
					v.NavStatus = NavStatusName(*p.NavStatus)
				}
			}
		case "StaticAndVoyageData", "StaticDataReport":
			var sp staticPayload
			if err := json.Unmarshal(raw, &sp); err == nil {
				if name := trimShipName(sp.Name); name != "" {
					v.Name = name
				}
				if sp.CallSign != "" {
					v.Callsign = sp.CallSign
				}
				if sp.Destination != "" {
					v.Destination = sp.Destination
				}
				if sp.Type != nil {
					v.TypeCode = sp.Type
					v.TypeName = ShipTypeName(*sp.Type)
				}
				if sp.Dimension != nil {
					length := sp.Dimension.A + sp.Dimension.B
					width := sp.Dimension.C + sp.Dimension.D
					if length > 0 {
						v.Length = &length
					}
					if width > 0 {
						v.Width = &width
					}
				}
			}
		}
	}

	var snapshot *Vessel
	if c.onShipContact != nil && v.Lat != nil && v.Lon != nil {
		cp := *v
		snapshot = &cp
	}
	c.mu.Unlock()

	if snapshot != nil {
		c.onShipContact(snapshot)
	}
}

func trimShipName(name string) string {
	// AIS pads names with trailing spaces and @ fill characters.
	end := len(name)
	for end > 0 && (name[end-1] == ' ' || name[end-1] == '@') {
		end--
	}
	return name[:end]
}

// Merge applies an envelope directly. Exposed for feeding recorded data in
// tests and replays.
func (c *Consumer) Merge(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode ais message: %w", err)
	}
	c.handle(&env)
	return nil
}

// Vessels returns a copy of every tracked vessel.
func (c *Consumer) Vessels() []*Vessel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Vessel, 0, len(c.vessels))
	for _, v := range c.vessels {
		cp := *v
		out = append(out, &cp)
	}
	return out
}

// Vessel returns a copy of one vessel, or nil.
func (c *Consumer) Vessel(mmsi string) *Vessel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vessels[mmsi]
	if !ok {
		return nil
	}
	cp := *v
	return &cp
}

// InRange returns vessels with known positions within radiusNM of the
// center, sorted by ascending distance.
func (c *Consumer) InRange(lat, lon, radiusNM float64) []*VesselInRange {
	c.mu.RLock()
	var out []*VesselInRange
	for _, v := range c.vessels {
		if v.Lat == nil || v.Lon == nil {
			continue
		}
		d := geo.DistanceNM(lat, lon, *v.Lat, *v.Lon)
		if d > radiusNM {
			continue
		}
		cp := *v
		out = append(out, &VesselInRange{
			Vessel:     cp,
			DistanceNM: d,
			BearingDeg: geo.BearingDeg(lat, lon, *v.Lat, *v.Lon),
		})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DistanceNM < out[j].DistanceNM })
	return out
}

// EvictStale removes vessels whose last update is older than the TTL.
// Returns the number evicted.
func (c *Consumer) EvictStale() int {
	cutoff := time.Now().Add(-c.cfg.VesselTTL)

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for mmsi, v := range c.vessels {
		if v.LastUpdate.Before(cutoff) {
			delete(c.vessels, mmsi)
			n++
		}
	}
	return n
}

// RunJanitor evicts stale vessels every interval until ctx is cancelled.
func (c *Consumer) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.EvictStale(); n > 0 {
				log.Printf("ais: evicted %d stale vessels", n)
			}
		}
	}
}

// Status reports connection state and counters.
func (c *Consumer) Status() Status {
	c.mu.RLock()
	count := len(c.vessels)
	c.mu.RUnlock()

	c.stMu.Lock()
	defer c.stMu.Unlock()
	return Status{
		Connected:    c.connected,
		Halted:       c.halted,
		VesselCount:  count,
		MessageCount: c.msgCount,
		LastMessage:  c.lastMsg,
		LastError:    c.lastErr,
	}
}

func (c *Consumer) setConnected(v bool) {
	c.stMu.Lock()
	c.connected = v
	c.stMu.Unlock()
}

func (c *Consumer) setHalted() {
	c.stMu.Lock()
	c.halted = true
	c.connected = false
	c.cancel = nil
	c.stMu.Unlock()
}

func (c *Consumer) setError(msg string) {
	c.stMu.Lock()
	c.lastErr = msg
	c.stMu.Unlock()
}

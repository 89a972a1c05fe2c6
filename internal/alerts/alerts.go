// Package alerts publishes safety-relevant notifications over NATS so
// downstream consumers (dashboards, pagers) can react without polling.
package alerts

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects.
const (
	SubjectSquawkAlert = "skyradar.alerts.squawk"
	SubjectEvent       = "skyradar.events"
)

// SquawkAlert is published when an aircraft transmits an alert-worthy code.
type SquawkAlert struct {
	Hex         string    `json:"hex"`
	Flight      string    `json:"flight,omitempty"`
	Squawk      string    `json:"squawk"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Message     string    `json:"message"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	Time        time.Time `json:"time"`
}

// FlightEvent is published for detected takeoffs, landings, and emergencies.
type FlightEvent struct {
	Hex    string            `json:"hex"`
	Kind   string            `json:"kind"`
	Time   time.Time         `json:"time"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Alt    *float64          `json:"alt,omitempty"`
	Squawk string            `json:"squawk,omitempty"`
	Detail map[string]string `json:"detail,omitempty"`
}

// Publisher sends alerts to NATS. Publishing is best effort: a broker
// outage never blocks the ingest path.
type Publisher struct {
	nc *nats.Conn
}

// Connect dials the NATS server with reconnect handling.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("skyradar"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("alerts: nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("alerts: nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{nc: nc}, nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// PublishAlert sends a squawk alert. Safe to call on a nil publisher.
func (p *Publisher) PublishAlert(a *SquawkAlert) {
	if p == nil || p.nc == nil {
		return
	}
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	p.publish(fmt.Sprintf("%s.%s", SubjectSquawkAlert, a.Squawk), a)
}

// PublishEvent sends a flight event. Safe to call on a nil publisher.
func (p *Publisher) PublishEvent(e *FlightEvent) {
	if p == nil || p.nc == nil {
		return
	}
	p.publish(fmt.Sprintf("%s.%s", SubjectEvent, e.Kind), e)
}

func (p *Publisher) publish(subject string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("alerts: marshal %s: %v", subject, err)
		return
	}
	if err := p.nc.Publish(subject, payload); err != nil {
		log.Printf("alerts: publish %s: %v", subject, err)
	}
}

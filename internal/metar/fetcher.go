package metar

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Source URL templates, tried in order. First success wins. The VATSIM
// mirror is the fallback of last resort; it serves raw single-line reports
// for UK aerodromes the primaries sometimes lag on.
var defaultSources = []string{
	"https://tgftp.nws.noaa.gov/data/observations/metar/stations/%s.TXT",
	"https://aviationweather.gov/api/data/metar?ids=%s&format=raw",
	"https://metar.vatsim.net/metar.php?id=%s",
}

// Fetcher retrieves METARs with a per-ICAO TTL cache.
type Fetcher struct {
	client  *http.Client
	sources []string
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]*Metar
}

// NewFetcher creates a fetcher with the default source chain.
func NewFetcher(ttl time.Duration) *Fetcher {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Fetcher{
		client:  &http.Client{Timeout: 5 * time.Second},
		sources: defaultSources,
		ttl:     ttl,
		cache:   make(map[string]*Metar),
	}
}

// SetSources replaces the source URL templates. Each template must contain
// one %s for the ICAO code.
func (f *Fetcher) SetSources(sources []string) {
	f.sources = sources
}

// Get returns the current METAR for an aerodrome, from cache when fresh.
func (f *Fetcher) Get(ctx context.Context, icao string) (*Metar, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if len(icao) != 4 {
		return nil, fmt.Errorf("invalid ICAO code %q", icao)
	}

	f.mu.Lock()
	if m, ok := f.cache[icao]; ok && time.Since(m.FetchedAt) < f.ttl {
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	var lastErr error
	for _, tmpl := range f.sources {
		raw, err := f.fetchOne(ctx, fmt.Sprintf(tmpl, icao))
		if err != nil {
			lastErr = err
			continue
		}
		m := Parse(raw)
		if m.ICAO == "" {
			m.ICAO = icao
		}
		m.FetchedAt = time.Now()

		f.mu.Lock()
		f.cache[icao] = m
		f.mu.Unlock()
		return m, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no METAR sources configured")
	}
	// Serve a stale cache entry rather than nothing.
	f.mu.Lock()
	stale := f.cache[icao]
	f.mu.Unlock()
	if stale != nil {
		log.Printf("metar: serving stale %s after fetch failure: %v", icao, lastErr)
		return stale, nil
	}
	return nil, fmt.Errorf("fetch metar %s: %w", icao, lastErr)
}

// fetchOne retrieves one source and returns the METAR line. NOAA responses
// carry a date line before the report; the last non-empty line wins.
func (f *Fetcher) fetchOne(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}

	var report string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			report = line
		}
	}
	if report == "" {
		return "", fmt.Errorf("empty response from %s", url)
	}
	return report, nil
}

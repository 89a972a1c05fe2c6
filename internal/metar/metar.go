// Package metar fetches and parses aerodrome weather observations.
package metar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cloud is one cloud group: coverage type plus base height in feet.
type Cloud struct {
	Type     string `json:"type"`
	HeightFt int    `json:"height_ft"`
}

// Metar is a best-effort parsed observation. Fields the report lacks stay
// nil or empty; Raw always carries the original text.
type Metar struct {
	Raw       string    `json:"raw"`
	ICAO      string    `json:"icao"`
	Observed  time.Time `json:"observed,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`

	WindDir      *int   `json:"wind_dir,omitempty"`
	WindVariable bool   `json:"wind_variable,omitempty"`
	WindSpeed    *int   `json:"wind_speed,omitempty"`
	WindGust     *int   `json:"wind_gust,omitempty"`
	WindUnit     string `json:"wind_unit,omitempty"`

	VisibilityM *int `json:"visibility_m,omitempty"`
	CAVOK       bool `json:"cavok,omitempty"`

	TempC     *int `json:"temp_c,omitempty"`
	DewpointC *int `json:"dewpoint_c,omitempty"`
	QNH       *int `json:"qnh_hpa,omitempty"`

	Clouds  []Cloud  `json:"clouds,omitempty"`
	Weather []string `json:"weather,omitempty"`
}

var (
	icaoRe = regexp.MustCompile(`^(?:METAR\s+|SPECI\s+)?([A-Z]{4})\b`)
	timeRe = regexp.MustCompile(`\b(\d{2})(\d{2})(\d{2})Z\b`)
	windRe = regexp.MustCompile(`\b(\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?(KT|MPS)\b`)
	visRe  = regexp.MustCompile(`\b(\d{4})\b`)
	tempRe = regexp.MustCompile(`\b(M?\d{2})/(M?\d{2})\b`)
	qnhRe  = regexp.MustCompile(`\bQ(\d{4})\b`)
	cldRe  = regexp.MustCompile(`\b(FEW|SCT|BKN|OVC|VV)(\d{3})\b`)
	wxRe   = regexp.MustCompile(`(^|\s)([-+]?)(VC)?((?:MI|BC|PR|DR|BL|SH|TS|FZ)?(?:DZ|RA|SN|SG|IC|PL|GR|GS|UP|BR|FG|FU|VA|DU|SA|HZ|PO|SQ|FC|SS|DS))(\s|$)`)
)

// Parse extracts the standard groups from a raw METAR. Parsing is best
// effort and never fails; an unrecognizable report yields a record with
// only Raw set.
func Parse(raw string) *Metar {
	raw = strings.TrimSpace(raw)
	m := &Metar{Raw: raw}

	if g := icaoRe.FindStringSubmatch(raw); g != nil {
		m.ICAO = g[1]
	}

	if g := timeRe.FindStringSubmatch(raw); g != nil {
		day, _ := strconv.Atoi(g[1])
		hour, _ := strconv.Atoi(g[2])
		min, _ := strconv.Atoi(g[3])
		now := time.Now().UTC()
		obs := time.Date(now.Year(), now.Month(), day, hour, min, 0, 0, time.UTC)
		// Reports from the end of last month.
		if obs.After(now.Add(24 * time.Hour)) {
			obs = obs.AddDate(0, -1, 0)
		}
		m.Observed = obs
	}

	if g := windRe.FindStringSubmatch(raw); g != nil {
		if g[1] == "VRB" {
			m.WindVariable = true
		} else {
			dir, _ := strconv.Atoi(g[1])
			m.WindDir = &dir
		}
		speed, _ := strconv.Atoi(g[2])
		m.WindSpeed = &speed
		if g[3] != "" {
			gust, _ := strconv.Atoi(g[3])
			m.WindGust = &gust
		}
		m.WindUnit = g[4]
	}

	if strings.Contains(raw, "CAVOK") {
		m.CAVOK = true
		vis := 9999
		m.VisibilityM = &vis
	} else {
		// First standalone 4-digit group after the wind group is the
		// prevailing visibility in meters.
		rest := raw
		if loc := windRe.FindStringIndex(raw); loc != nil {
			rest = raw[loc[1]:]
		}
		if g := visRe.FindStringSubmatch(rest); g != nil {
			vis, _ := strconv.Atoi(g[1])
			m.VisibilityM = &vis
		}
	}

	if g := tempRe.FindStringSubmatch(raw); g != nil {
		t := parseTemp(g[1])
		d := parseTemp(g[2])
		m.TempC = &t
		m.DewpointC = &d
	}

	if g := qnhRe.FindStringSubmatch(raw); g != nil {
		q, _ := strconv.Atoi(g[1])
		m.QNH = &q
	}

	for _, g := range cldRe.FindAllStringSubmatch(raw, -1) {
		h, _ := strconv.Atoi(g[2])
		m.Clouds = append(m.Clouds, Cloud{Type: g[1], HeightFt: h * 100})
	}

	for _, g := range wxRe.FindAllStringSubmatch(raw, -1) {
		m.Weather = append(m.Weather, g[2]+g[3]+g[4])
	}

	return m
}

// parseTemp handles the M-prefix negation used for sub-zero values.
func parseTemp(s string) int {
	neg := strings.HasPrefix(s, "M")
	v, _ := strconv.Atoi(strings.TrimPrefix(s, "M"))
	if neg {
		return -v
	}
	return v
}

// Format renders the natural-language summary used by the semantic index.
// Every extracted field appears; absent fields are omitted.
func Format(m *Metar) string {
	var parts []string

	if m.TempC != nil {
		parts = append(parts, fmt.Sprintf("Temp %d°C", *m.TempC))
	}
	if m.DewpointC != nil {
		parts = append(parts, fmt.Sprintf("Dewpoint %d°C", *m.DewpointC))
	}
	if m.WindSpeed != nil {
		unit := strings.ToLower(m.WindUnit)
		if unit == "" {
			unit = "kt"
		}
		var wind string
		if m.WindVariable {
			wind = fmt.Sprintf("Wind variable at %d%s", *m.WindSpeed, unit)
		} else if m.WindDir != nil {
			wind = fmt.Sprintf("Wind %03d° at %d%s", *m.WindDir, *m.WindSpeed, unit)
		} else {
			wind = fmt.Sprintf("Wind %d%s", *m.WindSpeed, unit)
		}
		if m.WindGust != nil {
			wind += fmt.Sprintf(" gusting %d%s", *m.WindGust, unit)
		}
		parts = append(parts, wind)
	}
	if m.CAVOK {
		parts = append(parts, "CAVOK")
	} else if m.VisibilityM != nil {
		if *m.VisibilityM >= 9999 {
			parts = append(parts, "Visibility 10km+")
		} else {
			parts = append(parts, fmt.Sprintf("Visibility %dm", *m.VisibilityM))
		}
	}
	if m.QNH != nil {
		parts = append(parts, fmt.Sprintf("QNH %d hPa", *m.QNH))
	}
	for _, c := range m.Clouds {
		parts = append(parts, fmt.Sprintf("Clouds %s at %d ft", c.Type, c.HeightFt))
	}
	if len(m.Weather) > 0 {
		parts = append(parts, "Weather "+strings.Join(m.Weather, " "))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("METAR %s: %s", m.ICAO, m.Raw)
	}
	return fmt.Sprintf("METAR %s: %s", m.ICAO, strings.Join(parts, ", "))
}

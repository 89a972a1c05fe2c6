// Package ssr loads the UK SSR squawk-code catalog and classifies codes into
// categories, priorities, and alert status.
package ssr

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Priority levels for a classified squawk code.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Category names assigned by keyword matching against code descriptions.
const (
	CatEmergency   = "EMERGENCY"
	CatSAR         = "SAR"
	CatMedical     = "MEDICAL"
	CatPolice      = "POLICE"
	CatNATO        = "NATO"
	CatMilitary    = "MILITARY"
	CatSpecialOps  = "SPECIAL_OPS"
	CatConspicuity = "CONSPICUITY"
	CatTransit     = "TRANSIT"
	CatApproach    = "APPROACH"
	CatMonitoring  = "MONITORING"
	CatUnreliable  = "UNRELIABLE"
)

// Code is one classified squawk code.
type Code struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Priority    string   `json:"priority"`
	Alert       bool     `json:"alert"`
	Color       string   `json:"color"`
}

// Catalog holds the loaded squawk catalog. Immutable after Load.
type Catalog struct {
	codes      map[string]*Code
	byCategory map[string][]string
	alertCodes map[string]bool
}

var codeLine = regexp.MustCompile(`^(\d{4})([-.]?\d*)\.?\s+(.+)$`)

// Load reads and categorizes a flat squawk catalog file. Lines not matching
// the "NNNN. Description" or "NNNN-NNNN. Description" forms are ignored.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ssr catalog: %w", err)
	}
	defer f.Close()

	c := &Catalog{
		codes:      make(map[string]*Code),
		byCategory: make(map[string][]string),
		alertCodes: make(map[string]bool),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		m := codeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start, rangePart, desc := m[1], m[2], m[3]

		if strings.Contains(rangePart, "-") {
			end := strings.TrimPrefix(rangePart, "-")
			startN, err1 := strconv.Atoi(start)
			endN, err2 := strconv.Atoi(end)
			if err1 != nil || err2 != nil || endN < startN {
				continue
			}
			for n := startN; n <= endN; n++ {
				c.add(fmt.Sprintf("%04d", n), desc)
			}
		} else {
			c.add(start, desc)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ssr catalog: %w", err)
	}

	log.Printf("ssr: loaded %d codes (%d alert-worthy)", len(c.codes), len(c.alertCodes))
	return c, nil
}

// NewCatalog builds an empty catalog. The emergency triad still classifies.
func NewCatalog() *Catalog {
	return &Catalog{
		codes:      make(map[string]*Code),
		byCategory: make(map[string][]string),
		alertCodes: make(map[string]bool),
	}
}

func (c *Catalog) add(code, desc string) {
	rec := &Code{Code: code, Description: desc}
	categorize(rec)
	c.codes[code] = rec
	for _, cat := range rec.Categories {
		c.byCategory[cat] = append(c.byCategory[cat], code)
	}
	if rec.Alert {
		c.alertCodes[code] = true
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// categorize assigns categories, priority, alert flag and display color from
// the code's description. First matching category wins, mirroring the
// published catalog's own grouping.
func categorize(rec *Code) {
	desc := strings.ToUpper(rec.Description)

	switch {
	case containsAny(desc, "EMERGENCY", "HI-JACKING", "RADIO FAILURE", "MAYDAY", "PAN-PAN"):
		rec.Categories = []string{CatEmergency}
		rec.Alert = true
	case containsAny(desc, "SAR", "SEARCH AND RESCUE", "AIR AMBULANCE", "HELICOPTER EMERGENCY MEDIVAC", "HEMS", "MEDIVAC"):
		rec.Categories = []string{CatSAR}
		rec.Alert = true
	case containsAny(desc, "AMBULANCE", "MEDICAL"):
		rec.Categories = []string{CatMedical}
		rec.Alert = true
	case containsAny(desc, "POLICE", "ASU", "AIR SUPPORT"):
		rec.Categories = []string{CatPolice}
		rec.Alert = true
	case containsAny(desc, "NATO", "CAOC", "EXERCISES", "AEW AIRCRAFT", "QUICK REACTION"):
		rec.Categories = []string{CatNATO}
		rec.Alert = true
	case containsAny(desc, "RAF", "RNAS", "MILITARY", "MOD", "SPECIAL TASKS", "ROYAL FLIGHTS"):
		rec.Categories = []string{CatMilitary}
		rec.Alert = containsAny(desc, "SPECIAL TASKS", "ROYAL FLIGHTS")
	case containsAny(desc, "SPECIAL", "PARADROPPING", "ANTENNA TRAILING", "TARGET TOWING",
		"HIGH-ENERGY MANOEUVRES", "RED ARROWS", "AEROBATICS", "DISPLAY"):
		rec.Categories = []string{CatSpecialOps}
		rec.Alert = true
	case strings.Contains(desc, "CONSPICUITY"):
		rec.Categories = []string{CatConspicuity}
	case containsAny(desc, "TRANSIT", "ORCAM"):
		rec.Categories = []string{CatTransit}
	case strings.Contains(desc, "APPROACH"):
		rec.Categories = []string{CatApproach}
	case strings.Contains(desc, "MONITORING"):
		rec.Categories = []string{CatMonitoring}
	case strings.Contains(desc, "UNRELIABLE"):
		rec.Categories = []string{CatUnreliable}
	}

	rec.Priority = priorityFor(rec.Categories)
	rec.Color = colorFor(rec.Categories)
}

func priorityFor(categories []string) string {
	has := func(cats ...string) bool {
		for _, c := range categories {
			for _, want := range cats {
				if c == want {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(CatEmergency):
		return PriorityCritical
	case has(CatSAR, CatMedical, CatPolice, CatNATO):
		return PriorityHigh
	case has(CatMilitary, CatSpecialOps):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func colorFor(categories []string) string {
	has := func(cat string) bool {
		for _, c := range categories {
			if c == cat {
				return true
			}
		}
		return false
	}
	switch {
	case has(CatEmergency):
		return "#ff0000"
	case has(CatSAR), has(CatMedical):
		return "#ff8800"
	case has(CatPolice):
		return "#0088ff"
	case has(CatNATO), has(CatMilitary):
		return "#ff00ff"
	case has(CatSpecialOps):
		return "#ffff00"
	default:
		return "#00ff00"
	}
}

// emergencyDescriptions cover the triad when the catalog file omits it.
var emergencyDescriptions = map[string]string{
	"7500": "Special Purpose Code - Hi-Jacking",
	"7600": "Special Purpose Code - Radio Failure",
	"7700": "Special Purpose Code - Emergency",
}

// Normalize strips spaces and zero-pads a squawk to four digits.
func Normalize(squawk string) string {
	code := strings.ReplaceAll(squawk, " ", "")
	for len(code) < 4 {
		code = "0" + code
	}
	return code
}

// Lookup returns the classified record for a squawk code, or nil when the
// code is unknown. The emergency triad 7500/7600/7700 always resolves to a
// CRITICAL alert record even when absent from the catalog.
func (c *Catalog) Lookup(squawk string) *Code {
	if squawk == "" {
		return nil
	}
	code := Normalize(squawk)

	if rec, ok := c.codes[code]; ok {
		// The triad is CRITICAL regardless of how the catalog described it.
		if _, emergency := emergencyDescriptions[code]; emergency {
			out := *rec
			out.Categories = []string{CatEmergency}
			out.Priority = PriorityCritical
			out.Alert = true
			out.Color = "#ff0000"
			return &out
		}
		return rec
	}

	if desc, ok := emergencyDescriptions[code]; ok {
		return &Code{
			Code:        code,
			Description: desc,
			Categories:  []string{CatEmergency},
			Priority:    PriorityCritical,
			Alert:       true,
			Color:       "#ff0000",
		}
	}

	return nil
}

// Codes returns all codes in a category, or every code when category is
// empty.
func (c *Catalog) Codes(category string) []*Code {
	var out []*Code
	if category == "" {
		for _, rec := range c.codes {
			out = append(out, rec)
		}
		return out
	}
	for _, code := range c.byCategory[strings.ToUpper(category)] {
		out = append(out, c.codes[code])
	}
	return out
}

// Stats summarizes the loaded catalog.
type Stats struct {
	TotalCodes int            `json:"total_codes"`
	AlertCodes int            `json:"alert_codes"`
	Categories map[string]int `json:"categories"`
}

// Statistics returns aggregate counts over the catalog.
func (c *Catalog) Statistics() Stats {
	s := Stats{
		TotalCodes: len(c.codes),
		AlertCodes: len(c.alertCodes),
		Categories: make(map[string]int),
	}
	for cat, codes := range c.byCategory {
		s.Categories[cat] = len(codes)
	}
	return s
}

// AlertMessage renders a one-line operator alert for a classified code.
func AlertMessage(rec *Code, flight string) string {
	if flight == "" {
		flight = "Unknown aircraft"
	}
	desc := strings.ToUpper(rec.Description)

	for _, cat := range rec.Categories {
		switch cat {
		case CatEmergency:
			switch rec.Code {
			case "7700":
				return fmt.Sprintf("EMERGENCY: %s squawking 7700 (General Emergency)", flight)
			case "7600":
				return fmt.Sprintf("RADIO FAILURE: %s squawking 7600 (Communication Failure)", flight)
			case "7500":
				return fmt.Sprintf("HIJACK: %s squawking 7500 (Unlawful Interference)", flight)
			}
			return fmt.Sprintf("EMERGENCY: %s squawking %s - %s", flight, rec.Code, rec.Description)
		case CatSAR:
			return fmt.Sprintf("SAR OPERATION: %s - %s", flight, rec.Description)
		case CatMedical:
			return fmt.Sprintf("MEDICAL: %s - %s", flight, rec.Description)
		case CatPolice:
			return fmt.Sprintf("POLICE: %s - %s", flight, rec.Description)
		case CatNATO:
			return fmt.Sprintf("NATO: %s - %s", flight, rec.Description)
		case CatMilitary:
			if strings.Contains(desc, "ROYAL FLIGHTS") {
				return fmt.Sprintf("ROYAL FLIGHT: %s - %s", flight, rec.Description)
			}
			return fmt.Sprintf("MILITARY: %s - %s", flight, rec.Description)
		case CatSpecialOps:
			return fmt.Sprintf("SPECIAL OPS: %s - %s", flight, rec.Description)
		}
	}
	return fmt.Sprintf("SPECIAL CODE: %s squawking %s - %s", flight, rec.Code, rec.Description)
}

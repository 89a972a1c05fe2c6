// Package flightstate derives flight phase, ATC sector, and intent labels
// from telemetry and airspace context. All functions are pure: the same
// inputs always produce the same labels.
package flightstate

import (
	"fmt"
	"strings"

	"skyradar/internal/airspace"
)

// Flight phase labels, ordered roughly from ground to cruise.
const (
	PhaseParked          = "PARKED"
	PhaseTaxiing         = "TAXIING"
	PhaseGroundOps       = "GROUND_OPS"
	PhaseDeparture       = "DEPARTURE"
	PhaseFinalApproach   = "FINAL_APPROACH"
	PhaseAirportPattern  = "AIRPORT_PATTERN"
	PhaseTerminalArea    = "TERMINAL_AREA"
	PhaseTerminalClimb   = "TERMINAL_CLIMB"
	PhaseTerminalDescent = "TERMINAL_DESCENT"
	PhaseTakeoff         = "TAKEOFF"
	PhaseApproach        = "APPROACH"
	PhaseRapidClimb      = "RAPID_CLIMB"
	PhaseRapidDescent    = "RAPID_DESCENT"
	PhaseClimbing        = "CLIMBING"
	PhaseDescending      = "DESCENDING"
	PhaseSlowClimb       = "SLOW_CLIMB"
	PhaseSlowDescent     = "SLOW_DESCENT"
	PhaseHighCruise      = "HIGH_CRUISE"
	PhaseCruise          = "CRUISE"
	PhaseMediumLevel     = "MEDIUM_LEVEL"
	PhaseInFlight        = "IN_FLIGHT"
)

// Telemetry is the kinematic input to the analyzer. Altitude in feet,
// ground speed in knots, vertical rate in feet per minute.
type Telemetry struct {
	Alt   float64
	GS    float64
	VRate float64
}

func inType(zones []*airspace.Zone, t airspace.ZoneType) *airspace.Zone {
	for _, z := range zones {
		if z.Type == t {
			return z
		}
	}
	return nil
}

func inTerminal(zones []*airspace.Zone) *airspace.Zone {
	if z := inType(zones, airspace.TypeCTATMA); z != nil {
		return z
	}
	return inType(zones, airspace.TypeTMA)
}

// Phase classifies telemetry into a flight phase. First matching rule wins.
func Phase(tel Telemetry, zones []*airspace.Zone) string {
	alt, gs, vr := tel.Alt, tel.GS, tel.VRate
	inCTR := inType(zones, airspace.TypeCTR) != nil
	inTMA := inTerminal(zones) != nil

	switch {
	case alt < 100 && gs < 5:
		return PhaseParked
	case alt < 100 && gs < 25:
		return PhaseTaxiing
	case alt < 100 && gs < 50:
		return PhaseGroundOps
	case inCTR && alt < 3000 && vr > 800:
		return PhaseDeparture
	case inCTR && alt < 3000 && vr < -800:
		return PhaseFinalApproach
	case inCTR && alt < 3000 && gs < 200:
		return PhaseAirportPattern
	case inCTR && alt < 3000:
		return PhaseTerminalArea
	case inTMA && vr > 1000:
		return PhaseTerminalClimb
	case inTMA && vr < -1000:
		return PhaseTerminalDescent
	case inTMA && alt < 10000:
		return PhaseTerminalArea
	case alt < 3000 && vr > 500:
		return PhaseTakeoff
	case alt < 3000 && vr < -500:
		return PhaseApproach
	case vr > 1500:
		return PhaseRapidClimb
	case vr < -1500:
		return PhaseRapidDescent
	case vr > 800:
		return PhaseClimbing
	case vr < -800:
		return PhaseDescending
	case vr > 300:
		return PhaseSlowClimb
	case vr < -300:
		return PhaseSlowDescent
	case alt > 35000:
		return PhaseHighCruise
	case alt > 20000:
		return PhaseCruise
	case alt > 10000:
		return PhaseMediumLevel
	default:
		return PhaseInFlight
	}
}

// ATC sector labels for the squawk ranges that do not map to a named unit.
const (
	SectorNoSquawk    = "NO_SQUAWK"
	SectorATCAssigned = "ATC_ASSIGNED"
)

// ATCSector maps a squawk code to the controlling sector or condition it
// implies under the UK assignment plan.
func ATCSector(squawk string) string {
	if squawk == "" {
		return SectorNoSquawk
	}

	switch squawk {
	case "7700":
		return "EMERGENCY"
	case "7600":
		return "RADIO_FAILURE"
	case "7500":
		return "HIJACK"
	case "7000":
		return "VFR_CONSPICUITY"
	case "7004":
		return "AEROBATIC_DISPLAY"
	case "7010":
		return "VFR_ABOVE_FL100"
	}

	switch squawk[0] {
	case '0':
		return "LONDON_CONTROL"
	case '1':
		return "SCOTTISH_CONTROL"
	case '2':
		return "MANCHESTER_CONTROL"
	case '3':
		return "LONDON_TC"
	case '4':
		return "APPROACH_SERVICES"
	case '5':
		return "AREA_CONTROL"
	case '6':
		return "TERMINAL_CONTROL"
	default:
		return SectorATCAssigned
	}
}

// airportICAO maps airport name fragments, as they appear in airspace zone
// names, to ICAO identifiers.
var airportICAO = map[string]string{
	"heathrow":   "EGLL",
	"gatwick":    "EGKK",
	"stansted":   "EGSS",
	"luton":      "EGGW",
	"manchester": "EGCC",
	"birmingham": "EGBB",
	"glasgow":    "EGPF",
	"edinburgh":  "EGPH",
	"bristol":    "EGGD",
	"prestwick":  "EGPK",
	"newcastle":  "EGNT",
	"leeds":      "EGNM",
}

func airportFromZone(z *airspace.Zone) string {
	name := strings.ToLower(z.Name)
	for fragment, icao := range airportICAO {
		if strings.Contains(name, fragment) {
			return icao
		}
	}
	return ""
}

// Intent derives an intent label from the phase, the containing zones, and
// the squawk code.
func Intent(phase string, zones []*airspace.Zone, squawk string) string {
	if ctr := inType(zones, airspace.TypeCTR); ctr != nil {
		icao := airportFromZone(ctr)
		if icao == "" {
			icao = ctr.Name
		}
		switch phase {
		case PhaseDeparture, PhaseTakeoff:
			return "DEPARTING " + icao
		case PhaseFinalApproach, PhaseApproach:
			return "LANDING " + icao
		case PhaseAirportPattern:
			return "PATTERN " + icao
		case PhaseParked, PhaseTaxiing, PhaseGroundOps:
			return "GROUND " + icao
		default:
			return "OPERATING " + icao
		}
	}

	if tma := inTerminal(zones); tma != nil {
		switch phase {
		case PhaseTerminalClimb, PhaseClimbing, PhaseRapidClimb:
			return "CLIMBING IN " + tma.Name
		case PhaseTerminalDescent, PhaseDescending, PhaseRapidDescent:
			return "DESCENDING TO " + tma.Name
		default:
			return "TRANSITING " + tma.Name
		}
	}

	switch squawk {
	case "7000":
		return "VFR LOCAL"
	case "7010":
		return "VFR CROSS COUNTRY"
	}

	switch phase {
	case PhaseHighCruise, PhaseCruise:
		return "ENROUTE CRUISE"
	case PhaseClimbing, PhaseRapidClimb, PhaseSlowClimb:
		return "CLIMBING ENROUTE"
	case PhaseDescending, PhaseRapidDescent, PhaseSlowDescent:
		return "DESCENDING ENROUTE"
	case PhaseParked, PhaseTaxiing, PhaseGroundOps:
		return "ON GROUND"
	default:
		return fmt.Sprintf("FLIGHT (%s)", phase)
	}
}

// Repair applies the consistency rules that guard against upstream status
// labels disagreeing with the kinematics: a moving aircraft is never PARKED
// and a stationary one on the ground is never in CRUISE. Returns the phase
// unchanged when no rule fires.
func Repair(phase string, gs, alt float64) string {
	if gs > 10 && phase == PhaseParked {
		if alt > 1000 {
			return PhaseCruise
		}
		return PhaseTaxiing
	}
	if gs < 5 && alt < 100 && phase == PhaseCruise {
		if gs == 0 {
			return PhaseParked
		}
		return PhaseTaxiing
	}
	return phase
}

package api

import (
	"net/http"
	"sort"
	"strings"

	"skyradar/internal/geo"
)

// Feature is one named geographic reference point for map display.
type Feature struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Region     string  `json:"region"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	DistanceNM float64 `json:"distance_nm"`
}

// UK coastal and geographic reference features. Small enough to carry
// built in; a GIS source would be overkill for situating a radar picture.
var coastalFeatures = []Feature{
	{Name: "Ayr Harbour", Type: "harbour", Region: "ayrshire", Lat: 55.4703, Lon: -4.6344},
	{Name: "Troon Marina", Type: "harbour", Region: "ayrshire", Lat: 55.5514, Lon: -4.6811},
	{Name: "Ardrossan Harbour", Type: "harbour", Region: "ayrshire", Lat: 55.6403, Lon: -4.8219},
	{Name: "Heads of Ayr", Type: "headland", Region: "ayrshire", Lat: 55.4342, Lon: -4.7081},
	{Name: "Turnberry Point", Type: "headland", Region: "ayrshire", Lat: 55.3261, Lon: -4.8439},
	{Name: "Ailsa Craig", Type: "island", Region: "firth-of-clyde", Lat: 55.2519, Lon: -5.1147},
	{Name: "Isle of Arran", Type: "island", Region: "firth-of-clyde", Lat: 55.5800, Lon: -5.2069},
	{Name: "Holy Isle", Type: "island", Region: "firth-of-clyde", Lat: 55.5281, Lon: -5.0739},
	{Name: "Great Cumbrae", Type: "island", Region: "firth-of-clyde", Lat: 55.7697, Lon: -4.9192},
	{Name: "Mull of Kintyre", Type: "headland", Region: "argyll", Lat: 55.3069, Lon: -5.7958},
	{Name: "Greenock", Type: "port", Region: "clyde", Lat: 55.9486, Lon: -4.7614},
	{Name: "Largs", Type: "harbour", Region: "ayrshire", Lat: 55.7944, Lon: -4.8672},
	{Name: "Portpatrick", Type: "harbour", Region: "galloway", Lat: 54.8422, Lon: -5.1183},
	{Name: "Mull of Galloway", Type: "headland", Region: "galloway", Lat: 54.6333, Lon: -4.8558},
	{Name: "Corsewall Point", Type: "lighthouse", Region: "galloway", Lat: 55.0072, Lon: -5.1594},
	{Name: "Pladda Lighthouse", Type: "lighthouse", Region: "firth-of-clyde", Lat: 55.4258, Lon: -5.1186},
	{Name: "Liverpool Docks", Type: "port", Region: "merseyside", Lat: 53.4084, Lon: -3.0000},
	{Name: "Holyhead", Type: "port", Region: "anglesey", Lat: 53.3100, Lon: -4.6300},
	{Name: "Dover Harbour", Type: "port", Region: "kent", Lat: 51.1279, Lon: 1.3134},
	{Name: "Beachy Head", Type: "headland", Region: "sussex", Lat: 50.7369, Lon: 0.2444},
	{Name: "Portland Bill", Type: "headland", Region: "dorset", Lat: 50.5144, Lon: -2.4564},
	{Name: "Flamborough Head", Type: "headland", Region: "yorkshire", Lat: 54.1169, Lon: -0.0822},
	{Name: "Spurn Point", Type: "headland", Region: "yorkshire", Lat: 53.5744, Lon: 0.1106},
	{Name: "Tynemouth", Type: "harbour", Region: "tyneside", Lat: 55.0172, Lon: -1.4189},
	{Name: "Bass Rock", Type: "island", Region: "forth", Lat: 56.0775, Lon: -2.6411},
	{Name: "Isle of May", Type: "island", Region: "forth", Lat: 56.1856, Lon: -2.5572},
}

// airport is an aerodrome of interest with its reference point.
type airport struct {
	ICAO string
	Name string
	Lat  float64
	Lon  float64
}

var airports = []airport{
	{ICAO: "EGPK", Name: "Glasgow Prestwick", Lat: 55.5094, Lon: -4.5867},
	{ICAO: "EGPF", Name: "Glasgow", Lat: 55.8719, Lon: -4.4331},
	{ICAO: "EGPH", Name: "Edinburgh", Lat: 55.9500, Lon: -3.3725},
	{ICAO: "EGLL", Name: "London Heathrow", Lat: 51.4706, Lon: -0.4619},
	{ICAO: "EGKK", Name: "London Gatwick", Lat: 51.1481, Lon: -0.1903},
	{ICAO: "EGSS", Name: "London Stansted", Lat: 51.8850, Lon: 0.2350},
	{ICAO: "EGCC", Name: "Manchester", Lat: 53.3537, Lon: -2.2750},
	{ICAO: "EGBB", Name: "Birmingham", Lat: 52.4539, Lon: -1.7480},
	{ICAO: "EGNM", Name: "Leeds Bradford", Lat: 53.8659, Lon: -1.6606},
	{ICAO: "EGGD", Name: "Bristol", Lat: 51.3827, Lon: -2.7191},
	{ICAO: "EGNT", Name: "Newcastle", Lat: 55.0375, Lon: -1.6917},
	{ICAO: "EGAA", Name: "Belfast International", Lat: 54.6575, Lon: -6.2158},
}

// airportsWithin returns aerodromes of interest inside the radius, nearest
// first.
func airportsWithin(lat, lon, radiusNM float64) []airport {
	var out []airport
	for _, ap := range airports {
		if geo.DistanceNM(lat, lon, ap.Lat, ap.Lon) <= radiusNM {
			out = append(out, ap)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return geo.DistanceNM(lat, lon, out[a].Lat, out[a].Lon) < geo.DistanceNM(lat, lon, out[b].Lat, out[b].Lon)
	})
	return out
}

func (s *Server) handleCoastline(w http.ResponseWriter, r *http.Request) {
	lat := queryFloat(r, "lat", 55.5)
	lon := queryFloat(r, "lon", -4.6)
	rng := queryFloat(r, "range", 50)
	region := strings.ToLower(r.URL.Query().Get("region"))

	var features []Feature
	for _, f := range coastalFeatures {
		if region != "" && f.Region != region {
			continue
		}
		d := geo.DistanceNM(lat, lon, f.Lat, f.Lon)
		if d > rng {
			continue
		}
		f.DistanceNM = d
		features = append(features, f)
	}
	sort.Slice(features, func(a, b int) bool {
		return features[a].DistanceNM < features[b].DistanceNM
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(features),
		"features": features,
	})
}

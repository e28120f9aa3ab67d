// Package query implements the coordinate-parsing boundary (spec C2): it
// normalizes the several wire shapes a caller may use to express
// locations — explicit geohashes, lat/lng objects, geohash tokens, or
// "lat,lng"-style strings — into one typed, resolved value so the rest of
// the gateway never dispatches on runtime shape again.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
	"github.com/robit-man/overlay-elevation-gateway/internal/geohash"
)

type Mode string

const (
	ModeGeohash Mode = "geohash"
	ModeLatLng  Mode = "latlng"
)

// Point is a resolved (lat, lng) pair.
type Point struct {
	Lat float64
	Lng float64
}

// Resolved is the normalized result of parsing a query payload.
type Resolved struct {
	Mode      Mode
	Points    []Point
	Geohashes []string // nil unless Mode == ModeGeohash
}

// Payload mirrors the loosely-typed wire shapes accepted at the boundary:
// Geohashes/Locations may each be a JSON array or a "|"-delimited string,
// and Locations array elements may be either {lat,lng} objects or strings.
// Decode from raw JSON with encoding/json into this struct; the `any`
// fields then hold []any or string values, which Parse disambiguates.
type Payload struct {
	Geohashes any `json:"geohashes,omitempty"`
	Locations any `json:"locations,omitempty"`
}

// Parse applies the five resolution rules from the specification, in
// order, returning InvalidInput-wrapped errors for every failure mode.
func Parse(p Payload) (Resolved, error) {
	// 1) explicit geohashes
	if toks, ok := stringList(p.Geohashes); ok && len(toks) > 0 {
		return decodeGeohashes(toks)
	}

	switch locs := p.Locations.(type) {
	case []any:
		if len(locs) == 0 {
			break
		}
		if pts, ok := latlngObjects(locs); ok {
			return Resolved{Mode: ModeLatLng, Points: pts}, nil
		}
		toks, ok := stringElems(locs)
		if !ok {
			return Resolved{}, fmt.Errorf("%w: locations[] must be objects or strings", errs.ErrInvalidInput)
		}
		toks = dropEmpty(toks)
		if len(toks) == 0 {
			break
		}
		return classifyTokens(toks)
	case string:
		toks := dropEmpty(strings.Split(locs, "|"))
		if len(toks) == 0 {
			break
		}
		return classifyTokens(toks)
	}

	return Resolved{}, fmt.Errorf("%w: no locations/geohashes provided", errs.ErrInvalidInput)
}

// classifyTokens implements rule 3/4: if every token looks like a geohash,
// decode as geohash; a single comma-bearing token forces lat/lng parsing
// for the whole set (tie-break in spec.md §4.2).
func classifyTokens(toks []string) (Resolved, error) {
	allGeohash := true
	for _, t := range toks {
		if strings.Contains(t, ",") || !geohash.LooksLikeToken(t) {
			allGeohash = false
			break
		}
	}
	if allGeohash {
		return decodeGeohashes(toks)
	}

	pts := make([]Point, 0, len(toks))
	for _, t := range toks {
		if !strings.Contains(t, ",") {
			return Resolved{}, fmt.Errorf("%w: locations[] token missing comma: %q", errs.ErrInvalidInput, t)
		}
		a, b, _ := strings.Cut(t, ",")
		lat, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return Resolved{}, fmt.Errorf("%w: bad lat in %q: %v", errs.ErrInvalidInput, t, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
		if err != nil {
			return Resolved{}, fmt.Errorf("%w: bad lng in %q: %v", errs.ErrInvalidInput, t, err)
		}
		pts = append(pts, Point{Lat: lat, Lng: lng})
	}
	return Resolved{Mode: ModeLatLng, Points: pts}, nil
}

func decodeGeohashes(toks []string) (Resolved, error) {
	pts := make([]Point, 0, len(toks))
	for _, g := range toks {
		pt, err := geohash.Decode(g)
		if err != nil {
			return Resolved{}, err
		}
		pts = append(pts, Point{Lat: pt.Lat, Lng: pt.Lng})
	}
	return Resolved{Mode: ModeGeohash, Points: pts, Geohashes: toks}, nil
}

func latlngObjects(locs []any) ([]Point, bool) {
	pts := make([]Point, 0, len(locs))
	for _, raw := range locs {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, false
		}
		latv, latOK := m["lat"]
		lngv, lngOK := m["lng"]
		if !latOK || !lngOK {
			return nil, false
		}
		lat, ok1 := toFloat(latv)
		lng, ok2 := toFloat(lngv)
		if !ok1 || !ok2 {
			return nil, false
		}
		pts = append(pts, Point{Lat: lat, Lng: lng})
	}
	return pts, len(locs) > 0
}

func stringElems(locs []any) ([]string, bool) {
	out := make([]string, 0, len(locs))
	for _, raw := range locs {
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// stringList accepts either a JSON array of strings/any or a
// "|"-delimited string, matching payload["geohashes"] shapes.
func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		return dropEmpty(strings.Split(t, "|")), true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return dropEmpty(out), true
	default:
		return nil, false
	}
}

func dropEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

package elevation

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/robit-man/overlay-elevation-gateway/internal/query"
)

// LatLng mirrors the OpenTopoData result location shape.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Result is one upstream elevation result.
type Result struct {
	Elevation *float64 `json:"elevation"`
	Location  *LatLng  `json:"location,omitempty"`
}

type upstreamBody struct {
	Results []Result `json:"results"`
	Status  string   `json:"status,omitempty"`
}

// geohashResult is a single geohash-mode reply record: the caller's
// original geohash token paired with the resolved elevation, with no
// location echoed back (spec §3: `{"geohash": gh, "elevation": elev}`).
type geohashResult struct {
	Geohash   string   `json:"geohash"`
	Elevation *float64 `json:"elevation"`
}

// Repack reorders/aligns upstreamBody's results against the caller's
// original geohash query order (spec C9): positional pairing when the
// result count matches, otherwise a coordinate-keyed lookup with missing
// entries reported as a null elevation. Repack never escalates upstream's
// own status/body on failure — callers should log and fall back to the
// untouched body.
func Repack(geohashes []string, points []query.Point, body []byte) ([]byte, error) {
	var parsed upstreamBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing upstream body for repack: %w", err)
	}

	elevs := make([]*float64, len(geohashes))
	if len(parsed.Results) == len(geohashes) {
		for i := range parsed.Results {
			elevs[i] = parsed.Results[i].Elevation
		}
	} else {
		byKey := make(map[uint64]*float64, len(parsed.Results))
		for i := range parsed.Results {
			r := parsed.Results[i]
			if r.Location == nil {
				continue
			}
			byKey[coordKey(r.Location.Lat, r.Location.Lng)] = r.Elevation
		}
		for i, p := range points {
			elevs[i] = byKey[coordKey(p.Lat, p.Lng)]
		}
	}

	out := make([]geohashResult, len(geohashes))
	for i, gh := range geohashes {
		out[i] = geohashResult{Geohash: gh, Elevation: elevs[i]}
	}

	repacked := map[string]any{"results": out}
	if parsed.Status != "" {
		repacked["status"] = parsed.Status
	}
	return json.Marshal(repacked)
}

// coordKey hashes the same "%.6f,%.6f" string representation the upstream
// original uses for coordinate equality, via xxhash for fast comparison on
// large result sets instead of retaining and comparing the formatted
// strings themselves.
func coordKey(lat, lng float64) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%.6f,%.6f", lat, lng))
}

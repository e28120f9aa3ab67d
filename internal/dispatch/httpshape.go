package dispatch

import (
	"net/url"
	"strconv"
	"strings"
)

// parsePath extracts the dataset and raw locations query parameter from a
// path like "/v1/mapzen?locations=1,2|3,4". Only this exact shape is
// honored; anything else reports ok=false.
func parsePath(path string) (dataset, locations string, ok bool) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", false
	}
	p := strings.TrimPrefix(u.Path, "/")
	segs := strings.SplitN(p, "/", 2)
	if len(segs) != 2 || segs[0] != "v1" || segs[1] == "" {
		return "", "", false
	}
	loc := u.Query().Get("locations")
	if loc == "" {
		return "", "", false
	}
	return segs[1], loc, true
}

// isGeohashQueryString matches the upstream's own classification: any
// comma means lat,lng pairs; its absence (whether one token or several
// joined by '|') means geohash tokens.
func isGeohashQueryString(s string) bool {
	return s != "" && !strings.Contains(s, ",")
}

// computeChunkLimit applies a per-request max_chunk_bytes/chunk_bytes
// value as a ceiling lower than the configured default, never higher.
func computeChunkLimit(msg map[string]any, configured int) int {
	limit := configured
	if v, ok := firstNonZero(msg, "max_chunk_bytes", "chunk_bytes"); ok {
		if v > 0 && v < limit {
			limit = v
		}
		if limit <= 0 {
			return 0
		}
	}
	return limit
}

func firstNonZero(msg map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := msg[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t != 0 {
				return int(t), true
			}
		case int:
			if t != 0 {
				return t, true
			}
		case string:
			if n, err := strconv.Atoi(t); err == nil && n != 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// Package dm defines the wire message shapes exchanged with overlay
// peers and implements the chunked-reply encoder (spec C10).
package dm

// ElevQuery is an inbound request for elevation at a set of locations or
// geohashes, addressed directly at the geohash query surface.
type ElevQuery struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Dataset       string `json:"dataset,omitempty"`
	Locations     any    `json:"locations,omitempty"`
	Geohashes     any    `json:"geohashes,omitempty"`
	MaxChunkBytes int    `json:"max_chunk_bytes,omitempty"`
	ChunkBytes    int    `json:"chunk_bytes,omitempty"`
}

// HttpRequestDM mimics a minimal HTTP GET against the local
// OpenTopoData-compatible surface, routed over the overlay link instead
// of a socket. Only GET /v1/<dataset>?locations=... is honored.
type HttpRequestDM struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Method        string `json:"method,omitempty"`
	URL           string `json:"url,omitempty"`
	MaxChunkBytes int    `json:"max_chunk_bytes,omitempty"`
	ChunkBytes    int    `json:"chunk_bytes,omitempty"`
}

// HttpResponseDM is the reply envelope for both elev.query and
// http.request. When the body exceeds the configured chunk limit it
// carries Chunked=true with BodyB64 left empty; the body instead arrives
// as preceding HttpChunkDM messages with the same ID.
type HttpResponseDM struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Status     int               `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	BodyB64    string            `json:"body_b64"`
	Chunked    bool              `json:"chunked,omitempty"`
	ChunkCount int               `json:"chunk_count,omitempty"`
	BytesTotal int               `json:"bytes_total,omitempty"`
	BodyDigest string            `json:"body_digest,omitempty"`
}

// HttpChunkDM carries one ordered slice of a chunked HttpResponseDM body.
type HttpChunkDM struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkCount int    `json:"chunk_count"`
	BytesTotal int    `json:"bytes_total"`
	BodyB64    string `json:"body_b64"`
}

// Envelope converts r into the map[string]any shape ChunkAndSend mutates
// in place before sending (adding chunked/chunk_count/bytes_total/
// body_digest when the body must be split).
func Envelope(r HttpResponseDM) map[string]any {
	env := map[string]any{
		"id":          r.ID,
		"type":        "http.response",
		"status":      r.Status,
		"duration_ms": r.DurationMS,
		"body_b64":    r.BodyB64,
	}
	if len(r.Headers) > 0 {
		env["headers"] = r.Headers
	}
	return env
}

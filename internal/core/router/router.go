// Package router implements the /forward HTTP surface (spec C12): it
// turns a caller's elevation request into an elev.query DM addressed at
// a remote overlay peer, waits for the matching http.response DM, and
// relays the result back as a synchronous HTTP reply.
package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robit-man/overlay-elevation-gateway/internal/core/observability"
	"github.com/robit-man/overlay-elevation-gateway/internal/geohash"
	"github.com/robit-man/overlay-elevation-gateway/internal/pending"
	"github.com/robit-man/overlay-elevation-gateway/internal/query"
	"github.com/robit-man/overlay-elevation-gateway/internal/sidecar"
)

// Pipeline is the narrow send-pipeline surface the router needs.
type Pipeline interface {
	Enqueue(ctx context.Context, cmd sidecar.Command) error
}

// Forwarder holds the dependencies the /forward handler needs.
type Forwarder struct {
	Pending     *pending.Registry
	Pipeline    Pipeline
	Dataset     string
	ElevTimeout time.Duration
	Log         *zerolog.Logger
}

type forwardRequest struct {
	Dest      string `json:"dest"`
	Dataset   string `json:"dataset,omitempty"`
	Geohashes any    `json:"geohashes,omitempty"`
	Locations any    `json:"locations,omitempty"`
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Forward handles POST /forward: {dest, dataset?, geohashes|locations}.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer func() {
		observability.ObserveHTTP(r.Method, "/forward", strconv.Itoa(sw.code), time.Since(start).Seconds())
	}()

	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(sw, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Dest == "" {
		writeErr(sw, http.StatusBadRequest, "dest is required")
		return
	}

	dataset := req.Dataset
	if dataset == "" {
		dataset = f.Dataset
	}

	if _, err := query.Parse(query.Payload{Geohashes: req.Geohashes, Locations: req.Locations}); err != nil {
		writeErr(sw, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	handle := f.Pending.Register(id)

	outbound := map[string]any{"id": id, "type": "elev.query", "dataset": dataset}
	if req.Geohashes != nil {
		outbound["geohashes"] = req.Geohashes
	}
	if req.Locations != nil {
		outbound["locations"] = req.Locations
	}
	body, err := json.Marshal(outbound)
	if err != nil {
		f.Pending.Cancel(id)
		writeErr(sw, http.StatusBadGateway, "failed to encode outbound query")
		return
	}

	cmd := sidecar.Command{
		Op:   "send",
		Dest: req.Dest,
		ID:   id,
		Data: base64.StdEncoding.EncodeToString(body),
	}

	ctx := r.Context()
	if err := f.Pipeline.Enqueue(ctx, cmd); err != nil {
		f.Pending.Cancel(id)
		writeErr(sw, http.StatusBadGateway, err.Error())
		return
	}

	waitTimeout := f.ElevTimeout + 5*time.Second
	v, err := handle.Wait(ctx, waitTimeout)
	if err != nil {
		f.Pending.Cancel(id)
		writeErr(sw, http.StatusGatewayTimeout, "dm response timeout")
		return
	}

	resp, _ := v.(map[string]any)
	status, _ := resp["status"].(float64)
	bodyB64, _ := resp["body_b64"].(string)
	headers := resp["headers"]
	durationMS, _ := resp["duration_ms"].(float64)
	bodyRaw, _ := base64.StdEncoding.DecodeString(bodyB64)

	out := map[string]any{
		"ok":          true,
		"id":          id,
		"status":      int(status),
		"headers":     headers,
		"duration_ms": int64(durationMS),
		"body_b64":    bodyB64,
		"body_utf8":   string(bodyRaw),
	}
	sw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(sw).Encode(out)
}

// DebugGeohash handles GET /debug/geohash?q=<token>: decodes a single
// geohash token and returns its midpoint, for local troubleshooting of
// the codec without needing an overlay peer. Not part of the wire
// protocol; a small convenience left over from the codec's own test
// fixtures (internal/geohash.Encode).
func DebugGeohash(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	pt, err := geohash.Decode(q)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"geohash": q, "lat": pt.Lat, "lng": pt.Lng})
}

func writeErr(w *statusWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}


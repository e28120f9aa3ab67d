package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robit-man/overlay-elevation-gateway/internal/pending"
	"github.com/robit-man/overlay-elevation-gateway/internal/sidecar"
)

type fakePipeline struct {
	onEnqueue func(sidecar.Command)
	err       error
}

func (f *fakePipeline) Enqueue(ctx context.Context, cmd sidecar.Command) error {
	if f.err != nil {
		return f.err
	}
	if f.onEnqueue != nil {
		f.onEnqueue(cmd)
	}
	return nil
}

func TestForwardSuccess(t *testing.T) {
	reg := pending.New()
	pl := &fakePipeline{}
	pl.onEnqueue = func(cmd sidecar.Command) {
		raw, _ := base64.StdEncoding.DecodeString(cmd.Data)
		var msg map[string]any
		_ = json.Unmarshal(raw, &msg)
		id, _ := msg["id"].(string)
		go func() {
			time.Sleep(5 * time.Millisecond)
			respBody, _ := json.Marshal(map[string]any{"status": "OK"})
			reg.Complete(id, map[string]any{
				"status":      float64(200),
				"headers":     map[string]any{"content-type": "application/json"},
				"duration_ms": float64(12),
				"body_b64":    base64.StdEncoding.EncodeToString(respBody),
			})
		}()
	}

	f := &Forwarder{Pending: reg, Pipeline: pl, Dataset: "mapzen", ElevTimeout: time.Second}

	reqBody, _ := json.Marshal(map[string]any{"dest": "nkn-peer", "geohashes": "s00000000"})
	req := httptest.NewRequest(http.MethodPost, "/forward", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()

	f.Forward(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not valid json: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("expected ok=true, got %+v", out)
	}
	if int(out["status"].(float64)) != 200 {
		t.Fatalf("expected upstream status 200, got %v", out["status"])
	}
}

func TestForwardMissingDest(t *testing.T) {
	f := &Forwarder{Pending: pending.New(), Pipeline: &fakePipeline{}, Dataset: "mapzen", ElevTimeout: time.Second}

	reqBody, _ := json.Marshal(map[string]any{"geohashes": "s00000000"})
	req := httptest.NewRequest(http.MethodPost, "/forward", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()

	f.Forward(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestForwardBackpressureReturns502(t *testing.T) {
	f := &Forwarder{
		Pending:     pending.New(),
		Pipeline:    &fakePipeline{err: errBackpressure{}},
		Dataset:     "mapzen",
		ElevTimeout: time.Second,
	}

	reqBody, _ := json.Marshal(map[string]any{"dest": "nkn-peer", "geohashes": "s00000000"})
	req := httptest.NewRequest(http.MethodPost, "/forward", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()

	f.Forward(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestForwardTimeout(t *testing.T) {
	f := &Forwarder{
		Pending:     pending.New(),
		Pipeline:    &fakePipeline{},
		Dataset:     "mapzen",
		ElevTimeout: 10 * time.Millisecond,
	}

	reqBody, _ := json.Marshal(map[string]any{"dest": "nkn-peer", "geohashes": "s00000000"})
	req := httptest.NewRequest(http.MethodPost, "/forward", bytes.NewReader(reqBody))
	rec := httptest.NewRecorder()

	f.Forward(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

type errBackpressure struct{}

func (errBackpressure) Error() string { return "send queue backpressure" }

func TestDebugGeohashDecodesToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/debug/geohash?q=9q8yyk8y", nil)
	rec := httptest.NewRecorder()

	DebugGeohash(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not valid json: %v", err)
	}
	if out["geohash"] != "9q8yyk8y" {
		t.Fatalf("unexpected geohash echo: %+v", out)
	}
	if _, ok := out["lat"]; !ok {
		t.Fatalf("missing lat in response: %+v", out)
	}
}

func TestDebugGeohashRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/debug/geohash?q=!!!", nil)
	rec := httptest.NewRecorder()

	DebugGeohash(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

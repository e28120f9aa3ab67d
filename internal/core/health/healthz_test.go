package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeAddr struct{ addr string }

func (f fakeAddr) Addr() string { return f.addr }

func TestHealthzAlways200EvenWithoutAddr(t *testing.T) {
	h := Healthz(fakeAddr{}, "http://localhost:5000", "mapzen")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("expected ok=true, got %+v", out)
	}
	if out["addr"] != nil {
		t.Fatalf("expected addr=null before sidecar reports one, got %v", out["addr"])
	}
}

func TestHealthzReportsAddrOnceKnown(t *testing.T) {
	h := Healthz(fakeAddr{addr: "nkn-xyz"}, "http://localhost:5000", "mapzen")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["addr"] != "nkn-xyz" {
		t.Fatalf("expected addr nkn-xyz, got %v", out["addr"])
	}
}

// Package health implements the always-200 /healthz surface: it reports
// whatever overlay address the sidecar has announced so far (possibly
// none yet) rather than gating readiness on it.
package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// AddrReporter exposes the sidecar's currently-known overlay address.
type AddrReporter interface {
	Addr() string
}

func Healthz(rr AddrReporter, elevBase, dataset string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		addr := rr.Addr()
		out := struct {
			OK       bool   `json:"ok"`
			Addr     *string `json:"addr"`
			ElevBase string `json:"elev_base"`
			Dataset  string `json:"dataset"`
			TS       int64  `json:"ts"`
		}{
			OK:       true,
			ElevBase: elevBase,
			Dataset:  dataset,
			TS:       time.Now().Unix(),
		}
		if addr != "" {
			out.Addr = &addr
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

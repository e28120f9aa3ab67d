// Package elevation queries the local OpenTopoData-compatible elevation
// service (spec C8) and repacks its results against the geohash tokens a
// caller queried with (spec C9).
package elevation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/robit-man/overlay-elevation-gateway/internal/core/httpclient"
	"github.com/robit-man/overlay-elevation-gateway/internal/query"
)

// Response is the outcome of an upstream query: either a genuine upstream
// reply or a synthetic 502 when the transport itself failed. Transport
// failures are never returned as a Go error — the caller always has a
// well-formed envelope to send back over the overlay link.
type Response struct {
	Status     int
	Headers    map[string]string
	Body       []byte
	DurationMS int64
}

// Client calls the elevation backend, gating concurrent in-flight calls
// at a configurable width (spec C_MAX).
type Client struct {
	http *http.Client
	base string
	sem  chan struct{}
}

func NewClient(base string, maxConcurrency int) *Client {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Client{
		http: httpclient.NewOutbound(),
		base: strings.TrimSuffix(base, "/"),
		sem:  make(chan struct{}, maxConcurrency),
	}
}

// Query builds GET {base}/v1/{dataset}?locations=lat,lng|lat,lng... with
// six-decimal coordinates, preserving '|' and ',' as safe in the percent
// encoding the way the upstream's own query-string builder does.
func (c *Client) Query(ctx context.Context, dataset string, points []query.Point) Response {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return synthetic502(fmt.Errorf("acquiring upstream slot: %w", ctx.Err()))
	}

	url := fmt.Sprintf("%s/v1/%s?locations=%s", c.base, dataset, encodeLocations(points))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return synthetic502(err)
	}

	start := nowMS()
	resp, err := c.http.Do(req)
	if err != nil {
		return synthetic502(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return synthetic502(err)
	}

	headers := map[string]string{}
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	return Response{
		Status:     resp.StatusCode,
		Headers:    headers,
		Body:       body,
		DurationMS: nowMS() - start,
	}
}

func synthetic502(err error) Response {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Response{
		Status:     502,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       body,
		DurationMS: 0,
	}
}

// encodeLocations formats points as "%.6f,%.6f" pairs joined by '|', then
// percent-encodes the result while keeping '|' and ',' literal, matching
// the upstream API's accepted query-string shape.
func encodeLocations(points []query.Point) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng))
	}
	raw := strings.Join(parts, "|")
	return percentEncodeSafe(raw, "|,")
}

// BodyToB64 is a small helper kept here (rather than in internal/dm) so
// callers building an HttpResponseDM from a Response never have to touch
// encoding/base64 directly.
func BodyToB64(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}

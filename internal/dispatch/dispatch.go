// Package dispatch implements the dispatcher (spec C11): it consumes
// parsed sidecar events, classifies the inner wire message by type, and
// routes each to the right handler (ping, a completed http.response
// future, or a fresh elev.query/http.request to answer).
package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/robit-man/overlay-elevation-gateway/internal/core/config"
	"github.com/robit-man/overlay-elevation-gateway/internal/dm"
	"github.com/robit-man/overlay-elevation-gateway/internal/elevation"
	"github.com/robit-man/overlay-elevation-gateway/internal/pending"
	"github.com/robit-man/overlay-elevation-gateway/internal/query"
	"github.com/robit-man/overlay-elevation-gateway/internal/sidecar"
)

// Pipeline is the narrow send-pipeline surface the dispatcher needs.
type Pipeline interface {
	Enqueue(ctx context.Context, cmd sidecar.Command) error
}

// Dispatcher wires sidecar events to elevation queries. Construct with
// New and start with Run, which blocks until ctx is cancelled or the
// event channel closes.
type Dispatcher struct {
	events   <-chan sidecar.Event
	pipeline Pipeline
	addr     func() string

	pending  *pending.Registry
	elev     *elevation.Client
	dataset  string
	chunkLim int
	workers  int
	log      *zerolog.Logger

	seen *lru.Cache[string, struct{}]
}

func New(sup *sidecar.Supervisor, pr *pending.Registry, elevClient *elevation.Client, cfg config.Config, log *zerolog.Logger) *Dispatcher {
	seen, _ := lru.New[string, struct{}](4096)
	return &Dispatcher{
		events:   sup.Events(),
		pipeline: sup.Pipeline(),
		addr:     sup.Addr,
		pending:  pr,
		elev:     elevClient,
		dataset:  cfg.ElevDataset,
		chunkLim: cfg.ChunkLimitBytes,
		workers:  cfg.ForwardConcurrency,
		log:      log,
		seen:     seen,
	}
}

// Run starts up to workers concurrent goroutines draining the shared
// event channel and blocks until they all exit.
func (d *Dispatcher) Run(ctx context.Context) {
	n := d.workers
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case ev, ok := <-d.events:
			if !ok {
				return
			}
			d.handle(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev sidecar.Event) {
	if ev.Kind != "message" || ev.Data == "" {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(ev.Data)
	if err != nil {
		d.warn(err, "dropping message with invalid base64 payload")
		return
	}
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.warn(err, "dropping message with non-json payload")
		return
	}

	id, _ := msg["id"].(string)
	typ, _ := msg["type"].(string)

	if id != "" {
		key := ev.Src + ":" + id
		if _, dup := d.seen.Get(key); dup {
			return
		}
		d.seen.Add(key, struct{}{})
	}

	switch typ {
	case "ping":
		d.replyPong(ctx, ev.Src, id)
	case "http.response":
		if id != "" {
			d.pending.Complete(id, msg)
		}
	case "elev.query":
		d.handleElevQuery(ctx, ev.Src, id, msg)
	case "http.request":
		d.handleHTTPRequest(ctx, ev.Src, id, msg)
	default:
		if d.log != nil {
			d.log.Debug().Str("type", typ).Msg("ignoring unrecognized message type")
		}
	}
}

func (d *Dispatcher) replyPong(ctx context.Context, src, id string) {
	msg := map[string]any{
		"id":   id,
		"type": "pong",
		"ts":   time.Now().UnixMilli(),
		"addr": d.addr(),
	}
	d.sendRaw(ctx, src, msg)
}

// handleElevQuery answers a direct elev.query message: parse its
// locations/geohashes, query the upstream elevation service, repack the
// result against the original geohash order when applicable, and reply
// (chunked if the body is large).
func (d *Dispatcher) handleElevQuery(ctx context.Context, src, id string, msg map[string]any) {
	dataset, _ := msg["dataset"].(string)
	if dataset == "" {
		dataset = d.dataset
	}

	resolved, err := query.Parse(query.Payload{
		Geohashes: msg["geohashes"],
		Locations: msg["locations"],
	})
	if err != nil {
		d.replyError(ctx, src, id, 400, err)
		return
	}

	d.answer(ctx, src, id, dataset, resolved, msg)
}

// handleHTTPRequest classifies an http.request DM's method/path the way
// the original upstream surface does: only GET /v1/<dataset>?locations=...
// is honored; a '|'-joined locations value with no comma anywhere is
// geohash mode, else lat/lng pairs.
func (d *Dispatcher) handleHTTPRequest(ctx context.Context, src, id string, msg map[string]any) {
	method, _ := msg["method"].(string)
	url, _ := msg["url"].(string)

	if method != "" && method != "GET" {
		d.replyError(ctx, src, id, 400, errString("only GET is supported"))
		return
	}

	dataset, locationsParam, ok := parsePath(url)
	if !ok {
		d.replyError(ctx, src, id, 400, errString("expected /v1/<dataset>?locations=..."))
		return
	}

	payload := query.Payload{}
	if isGeohashQueryString(locationsParam) {
		payload.Geohashes = locationsParam
	} else {
		payload.Locations = locationsParam
	}

	resolved, err := query.Parse(payload)
	if err != nil {
		d.replyError(ctx, src, id, 400, err)
		return
	}

	d.answer(ctx, src, id, dataset, resolved, msg)
}

func (d *Dispatcher) answer(ctx context.Context, src, id, dataset string, resolved query.Resolved, msg map[string]any) {
	resp := d.elev.Query(ctx, dataset, resolved.Points)
	body := resp.Body

	if resolved.Mode == query.ModeGeohash {
		if repacked, err := elevation.Repack(resolved.Geohashes, resolved.Points, resp.Body); err != nil {
			d.warn(err, "repack failed, returning upstream body untouched")
		} else {
			body = repacked
		}
	}

	envelope := dm.Envelope(dm.HttpResponseDM{
		ID:         id,
		Status:     resp.Status,
		Headers:    resp.Headers,
		DurationMS: resp.DurationMS,
	})

	limit := computeChunkLimit(msg, d.chunkLim)
	if err := dm.ChunkAndSend(ctx, d.pipeline, src, id, envelope, body, limit); err != nil {
		d.warn(err, "failed to send elevation reply")
	}
}

func (d *Dispatcher) replyError(ctx context.Context, src, id string, status int, cause error) {
	body, _ := json.Marshal(map[string]string{"error": cause.Error()})
	envelope := dm.Envelope(dm.HttpResponseDM{
		ID:      id,
		Status:  status,
		Headers: map[string]string{"content-type": "application/json"},
	})
	if err := dm.ChunkAndSend(ctx, d.pipeline, src, id, envelope, body, d.chunkLim); err != nil {
		d.warn(err, "failed to send error reply")
	}
}

func (d *Dispatcher) sendRaw(ctx context.Context, dest string, msg map[string]any) {
	b, err := json.Marshal(msg)
	if err != nil {
		d.warn(err, "failed to encode message")
		return
	}
	cmd := sidecar.Command{
		Op:   "send",
		Dest: dest,
		Data: base64.StdEncoding.EncodeToString(b),
	}
	if id, _ := msg["id"].(string); id != "" {
		cmd.ID = id
	}
	if err := d.pipeline.Enqueue(ctx, cmd); err != nil {
		d.warn(err, "failed to enqueue reply")
	}
}

func (d *Dispatcher) warn(err error, msg string) {
	if d.log != nil {
		d.log.Warn().Err(err).Msg(msg)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

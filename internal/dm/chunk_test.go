package dm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"

	"github.com/robit-man/overlay-elevation-gateway/internal/sidecar"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []map[string]any
}

func (f *fakeSender) Enqueue(ctx context.Context, cmd sidecar.Command) error {
	raw, err := base64.StdEncoding.DecodeString(cmd.Data)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, m)
	f.mu.Unlock()
	return nil
}

func TestChunkAndSendSmallBodyNoChunking(t *testing.T) {
	f := &fakeSender{}
	body := []byte("short")
	env := Envelope(HttpResponseDM{ID: "x", Status: 200})

	if err := ChunkAndSend(context.Background(), f, "peer", "x", env, body, 1024); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("expected exactly one envelope DM, got %d", len(f.sent))
	}
	if f.sent[0]["type"] != "http.response" {
		t.Fatalf("unexpected type: %v", f.sent[0]["type"])
	}
}

func TestChunkAndSendExactBoundary(t *testing.T) {
	f := &fakeSender{}
	body := make([]byte, 20)
	for i := range body {
		body[i] = byte('a' + i%8)
	}
	env := Envelope(HttpResponseDM{ID: "y", Status: 200})

	if err := ChunkAndSend(context.Background(), f, "peer", "y", env, body, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 20 bytes / 8-byte chunks = ceil(20/8) = 3 chunks, plus one envelope.
	if len(f.sent) != 4 {
		t.Fatalf("expected 3 chunk DMs + 1 envelope, got %d", len(f.sent))
	}
	for i := 0; i < 3; i++ {
		if f.sent[i]["type"] != "http.chunk" {
			t.Fatalf("message %d should be a chunk, got %v", i, f.sent[i]["type"])
		}
		if int(f.sent[i]["chunk_index"].(float64)) != i {
			t.Fatalf("chunk %d has wrong chunk_index %v", i, f.sent[i]["chunk_index"])
		}
		if int(f.sent[i]["chunk_count"].(float64)) != 3 {
			t.Fatalf("chunk %d has wrong chunk_count %v", i, f.sent[i]["chunk_count"])
		}
		if int(f.sent[i]["bytes_total"].(float64)) != 20 {
			t.Fatalf("chunk %d has wrong bytes_total %v", i, f.sent[i]["bytes_total"])
		}
		if _, ok := f.sent[i]["body_b64"]; !ok {
			t.Fatalf("chunk %d missing body_b64", i)
		}
	}
	last := f.sent[3]
	if last["chunked"] != true {
		t.Fatalf("envelope should be marked chunked")
	}
	if int(last["chunk_count"].(float64)) != 3 {
		t.Fatalf("expected chunk_count 3, got %v", last["chunk_count"])
	}
	if int(last["bytes_total"].(float64)) != 20 {
		t.Fatalf("expected bytes_total 20, got %v", last["bytes_total"])
	}
	if last["body_b64"] != "" {
		t.Fatalf("chunked envelope should carry empty body_b64")
	}
}

func TestChunkAndSendExactlyEqualToChunkSize(t *testing.T) {
	f := &fakeSender{}
	body := make([]byte, 8)
	env := Envelope(HttpResponseDM{ID: "z", Status: 200})

	if err := ChunkAndSend(context.Background(), f, "peer", "z", env, body, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// total == chunkLimit: spec says total <= chunkLimit skips chunking.
	if len(f.sent) != 1 {
		t.Fatalf("expected no chunking when body exactly fills the limit, got %d messages", len(f.sent))
	}
}

func TestChunkAndSendEmptyBody(t *testing.T) {
	f := &fakeSender{}
	env := Envelope(HttpResponseDM{ID: "e", Status: 200})

	if err := ChunkAndSend(context.Background(), f, "peer", "e", env, nil, 8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("empty body should produce a single unchunked envelope, got %d", len(f.sent))
	}
}

func TestChunkAndSendZeroLimitDisablesChunking(t *testing.T) {
	f := &fakeSender{}
	body := make([]byte, 5000)
	env := Envelope(HttpResponseDM{ID: "w", Status: 200})

	if err := ChunkAndSend(context.Background(), f, "peer", "w", env, body, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("chunkLimit<=0 should disable chunking regardless of size, got %d messages", len(f.sent))
	}
}

package dm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"github.com/robit-man/overlay-elevation-gateway/internal/sidecar"
)

// Sender is the narrow surface ChunkAndSend needs from the send pipeline.
type Sender interface {
	Enqueue(ctx context.Context, cmd sidecar.Command) error
}

// ChunkAndSend delivers envelope (built via Envelope) carrying body,
// splitting body into ordered http.chunk DMs first and the envelope last
// whenever body exceeds chunkLimit (spec C10). chunkLimit<=0 disables
// chunking entirely. Each outbound message is enqueued on the send
// pipeline as its base64-encoded JSON payload.
func ChunkAndSend(ctx context.Context, p Sender, dest, id string, envelope map[string]any, body []byte, chunkLimit int) error {
	total := len(body)
	if chunkLimit <= 0 || total <= chunkLimit {
		envelope["body_b64"] = base64.StdEncoding.EncodeToString(body)
		return send(ctx, p, dest, id, envelope)
	}

	chunkSize := chunkLimit
	if chunkSize < 1 {
		chunkSize = 1
	}
	chunkCount := (total + chunkSize - 1) / chunkSize
	if chunkCount < 1 {
		chunkCount = 1
	}
	digest := sha256.Sum256(body)

	for i := 0; i < chunkCount; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > total {
			end = total
		}
		chunk := HttpChunkDM{
			ID:         id,
			Type:       "http.chunk",
			ChunkIndex: i,
			ChunkCount: chunkCount,
			BytesTotal: total,
			BodyB64:    base64.StdEncoding.EncodeToString(body[start:end]),
		}
		if err := send(ctx, p, dest, id, chunk); err != nil {
			return err
		}
	}

	envelope["chunked"] = true
	envelope["chunk_count"] = chunkCount
	envelope["bytes_total"] = total
	envelope["body_digest"] = hex.EncodeToString(digest[:])
	envelope["body_b64"] = ""
	return send(ctx, p, dest, id, envelope)
}

func send(ctx context.Context, p Sender, dest, id string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.Enqueue(ctx, sidecar.Command{
		Op:   "send",
		Dest: dest,
		ID:   id,
		Data: base64.StdEncoding.EncodeToString(b),
	})
}

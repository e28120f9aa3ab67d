package sidecar

import (
	"io"
	"testing"
	"time"
)

func TestReadLoopParsesAndDropsMalformed(t *testing.T) {
	pr, pw := io.Pipe()
	s := &Supervisor{events: make(chan Event, 8)}

	s.wg.Add(1)
	go s.readLoop(pr)

	go func() {
		_, _ = pw.Write([]byte(`{"ev":"ready","addr":"nkn-abc"}` + "\n"))
		_, _ = pw.Write([]byte("not json at all\n"))
		_, _ = pw.Write([]byte(`{"ev":"message","src":"peer1","id":"1","payload_b64":"eyJhIjoxfQ=="}` + "\n"))
		_ = pw.Close()
	}()

	var got []Event
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				break loop
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out reading events, got %d so far", len(got))
		}
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 well-formed events (malformed line dropped), got %d", len(got))
	}
	if got[0].Kind != "ready" || got[0].Addr != "nkn-abc" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if s.Addr() != "nkn-abc" {
		t.Fatalf("expected supervisor to record addr from ready event, got %q", s.Addr())
	}
	if got[1].Kind != "message" || got[1].Src != "peer1" {
		t.Fatalf("unexpected second event: %+v", got[1])
	}
}

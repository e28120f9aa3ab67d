package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robit-man/overlay-elevation-gateway/internal/errs"
)

func TestCompleteDeliversToWaiter(t *testing.T) {
	r := New()
	h := r.Register("id-1")

	go func() {
		time.Sleep(10 * time.Millisecond)
		if !r.Complete("id-1", "hello") {
			t.Errorf("expected Complete to succeed")
		}
	}()

	v, err := h.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "hello" {
		t.Fatalf("got %v want hello", v)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	r := New()
	h := r.Register("id-2")

	if !r.Complete("id-2", "first") {
		t.Fatalf("first complete should succeed")
	}
	if r.Complete("id-2", "second") {
		t.Fatalf("second complete for same id should be a no-op (already removed)")
	}

	v, err := h.Wait(context.Background(), time.Second)
	if err != nil || v != "first" {
		t.Fatalf("waiter should observe the first completion only, got v=%v err=%v", v, err)
	}
}

func TestWaitTimesOut(t *testing.T) {
	r := New()
	h := r.Register("id-3")

	_, err := h.Wait(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, errs.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCancelRemovesEntryWithoutDelivering(t *testing.T) {
	r := New()
	r.Register("id-4")
	r.Cancel("id-4")

	if r.Complete("id-4", "too late") {
		t.Fatalf("Complete after Cancel should find nothing registered")
	}
}

package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/actbridge/actbridge/internal/handoff"
)

func TestHandle_Valid(t *testing.T) {
	if Sentinel.Valid() {
		t.Error("Sentinel.Valid() = true")
	}
	if !Handle(1).Valid() {
		t.Error("Handle(1).Valid() = false")
	}
}

func TestContinueWith(t *testing.T) {
	t.Run("rejects sentinel", func(t *testing.T) {
		ch := NewHandoff()
		if err := ContinueWith(ch, Sentinel); err == nil {
			t.Fatal("ContinueWith(Sentinel) = nil, want error")
		}
		if ch.Delivered() {
			t.Error("sentinel should not have been delivered")
		}
	})

	t.Run("delivers handle once", func(t *testing.T) {
		ch := NewHandoff()
		if err := ContinueWith(ch, 0xbeef); err != nil {
			t.Fatalf("ContinueWith() = %v", err)
		}
		if err := ContinueWith(ch, 0xcafe); !errors.Is(err, handoff.ErrAlreadyDelivered) {
			t.Errorf("second ContinueWith() = %v, want ErrAlreadyDelivered", err)
		}
		h, err := ch.Take(context.Background())
		if err != nil || h != 0xbeef {
			t.Errorf("Take() = %x, %v; want beef", h, err)
		}
	})
}

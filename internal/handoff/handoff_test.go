package handoff

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChannel_PutThenTake(t *testing.T) {
	ch := New[uint64]()

	if ch.Delivered() {
		t.Fatal("new channel reports delivered")
	}
	if err := ch.Put(42); err != nil {
		t.Fatalf("Put() = %v, want nil", err)
	}
	if !ch.Delivered() {
		t.Error("Delivered() = false after Put")
	}

	got, err := ch.Take(context.Background())
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Take() = %d, want 42", got)
	}
}

func TestChannel_TakeBlocksUntilPut(t *testing.T) {
	ch := New[string]()
	result := make(chan string, 1)

	go func() {
		v, err := ch.Take(context.Background())
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- v
	}()

	select {
	case v := <-result:
		t.Fatalf("Take returned before Put: %q", v)
	case <-time.After(20 * time.Millisecond):
	}

	if err := ch.Put("ready"); err != nil {
		t.Fatalf("Put() = %v", err)
	}

	select {
	case v := <-result:
		if v != "ready" {
			t.Errorf("Take() = %q, want ready", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not unblock after Put")
	}
}

func TestChannel_SecondPutDoesNotBlock(t *testing.T) {
	ch := New[int]()
	if err := ch.Put(1); err != nil {
		t.Fatalf("first Put() = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ch.Put(0) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAlreadyDelivered) {
			t.Errorf("second Put() = %v, want ErrAlreadyDelivered", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second Put blocked")
	}

	got, err := ch.Take(context.Background())
	if err != nil || got != 1 {
		t.Errorf("Take() = %d, %v; want first value 1", got, err)
	}
}

func TestChannel_SecondTake(t *testing.T) {
	ch := New[int]()
	_ = ch.Put(7)
	if _, err := ch.Take(context.Background()); err != nil {
		t.Fatalf("first Take() = %v", err)
	}
	if _, err := ch.Take(context.Background()); !errors.Is(err, ErrAlreadyTaken) {
		t.Errorf("second Take() = %v, want ErrAlreadyTaken", err)
	}
}

func TestChannel_TakeInterrupted(t *testing.T) {
	ch := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Take(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Take() = %v, want ErrInterrupted", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Take() = %v, want wrapped context.Canceled", err)
	}

	// A late value is still receivable after an interrupted wait.
	if err := ch.Put(9); err != nil {
		t.Fatalf("Put() = %v", err)
	}
	got, err := ch.Take(context.Background())
	if err != nil || got != 9 {
		t.Errorf("Take() after interrupt = %d, %v; want 9", got, err)
	}
}

func TestChannel_ConcurrentPutsDeliverOnce(t *testing.T) {
	ch := New[int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			if ch.Put(v) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted puts = %d, want 1", accepted)
	}
	if _, err := ch.Take(context.Background()); err != nil {
		t.Errorf("Take() = %v", err)
	}
}

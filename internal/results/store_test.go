package results_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediaflow/internal/results"
)

func TestPutRejectsDuplicateKeys(t *testing.T) {
	store := results.New()
	if err := store.Put("video-metadata", 1); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	err := store.Put("video-metadata", 2)
	var dup *results.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Key != "video-metadata" {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	if value, _ := store.Lookup("video-metadata"); value != 1 {
		t.Fatalf("value overwritten: %v", value)
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	store := results.New()
	const waiters = 8

	var wg sync.WaitGroup
	got := make(chan any, waiters)
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := store.Get(context.Background(), "audio-waveform")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			got <- value
		}()
	}

	select {
	case value := <-got:
		t.Fatalf("Get returned before Put: %v", value)
	case <-time.After(20 * time.Millisecond):
	}

	if err := store.Put("audio-waveform", []float64{0.5, 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	wg.Wait()
	close(got)
	count := 0
	for value := range got {
		if samples, ok := value.([]float64); !ok || len(samples) != 2 {
			t.Fatalf("unexpected value %v", value)
		}
		count++
	}
	if count != waiters {
		t.Fatalf("expected %d results, got %d", waiters, count)
	}
}

func TestGetHonoursContext(t *testing.T) {
	store := results.New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCloseReleasesWaitersWithCause(t *testing.T) {
	store := results.New()
	if err := store.Put("video-metadata", "ok"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cause := errors.New("activity audio-waveform failed")

	done := make(chan error, 1)
	go func() {
		_, err := store.Get(context.Background(), "audio-waveform")
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	store.Close(cause)
	store.Close(errors.New("second cause ignored"))

	select {
	case err := <-done:
		if !errors.Is(err, cause) {
			t.Fatalf("expected close cause, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not released by Close")
	}

	value, err := store.Get(context.Background(), "video-metadata")
	if err != nil || value != "ok" {
		t.Fatalf("present key must stay readable after Close: %v %v", value, err)
	}
	if _, err := store.Get(context.Background(), "never"); !errors.Is(err, cause) {
		t.Fatalf("expected cause for absent key after close, got %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := results.New()
	_ = store.Put("b", 2)
	_ = store.Put("a", 1)
	snapshot := store.Snapshot()
	snapshot["c"] = 3
	if store.Len() != 2 {
		t.Fatalf("snapshot mutation leaked into store")
	}
	keys := store.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestConcurrentDistinctWriters(t *testing.T) {
	store := results.New()
	names := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Put(name, name); err != nil {
				t.Errorf("Put(%s): %v", name, err)
			}
		}()
	}
	wg.Wait()
	if store.Len() != len(names) {
		t.Fatalf("expected %d keys, got %d", len(names), store.Len())
	}
}

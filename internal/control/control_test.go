package control

import (
	"context"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReadWriteClear(t *testing.T) {
	dir := t.TempDir()

	req, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if req != RequestNone {
		t.Errorf("expected no request, got %q", req)
	}

	if err := Write(dir, RequestStop); err != nil {
		t.Fatalf("Write: %v", err)
	}
	req, err = Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if req != RequestStop {
		t.Errorf("expected stop, got %q", req)
	}

	if err := Clear(dir); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	req, _ = Read(dir)
	if req != RequestNone {
		t.Errorf("expected cleared request, got %q", req)
	}

	// Clearing twice is fine.
	if err := Clear(dir); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestReadIgnoresUnknownRequest(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, Request("reboot")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	req, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if req != RequestNone {
		t.Errorf("unknown request must read as none, got %q", req)
	}
}

func TestWatcherObservesRequest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	w.Start(context.Background())

	if w.Pending() != RequestNone {
		t.Fatal("fresh watcher must not report a pending request")
	}

	if err := Write(dir, RequestPause); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitFor(t, func() bool { return w.Pending() == RequestPause })

	if err := Clear(dir); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	waitFor(t, func() bool { return w.Pending() == RequestNone })
}

func TestWatcherSeesPreexistingRequest(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, RequestStop); err != nil {
		t.Fatalf("Write: %v", err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if w.Pending() != RequestStop {
		t.Errorf("expected preexisting stop request, got %q", w.Pending())
	}
}

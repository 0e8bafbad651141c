package signals

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_StopRequested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signals")
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if w.ShouldStop() {
		t.Fatal("ShouldStop true before any signal")
	}

	if err := SendStop(dir); err != nil {
		t.Fatalf("SendStop: %v", err)
	}

	// ShouldStop falls back to stat, so this holds even without fsnotify.
	if !w.ShouldStop() {
		t.Fatal("ShouldStop false after SendStop")
	}
	select {
	case <-w.StopRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("StopRequested not closed")
	}
}

func TestWatcher_Clear(t *testing.T) {
	dir := t.TempDir()
	if err := SendStop(dir); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, stopFile)); !os.IsNotExist(err) {
		t.Errorf("stop file still present: %v", err)
	}
	if w.ShouldStop() {
		t.Error("ShouldStop true after Clear")
	}

	// clearing twice is fine
	if err := w.Clear(); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestWatcher_ClearRearms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signals")
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	for i := 0; i < 2; i++ {
		if err := SendStop(dir); err != nil {
			t.Fatalf("SendStop %d: %v", i, err)
		}
		if !w.ShouldStop() {
			t.Fatalf("round %d: ShouldStop false after SendStop", i)
		}
		select {
		case <-w.StopRequested():
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: StopRequested not closed", i)
		}

		if err := w.Clear(); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if w.ShouldStop() {
			t.Fatalf("round %d: ShouldStop true after Clear", i)
		}
		select {
		case <-w.StopRequested():
			t.Fatalf("round %d: StopRequested still closed after Clear", i)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	w.Close()
}

func TestDir(t *testing.T) {
	if got := Dir("/data"); got != filepath.Join("/data", "signals") {
		t.Errorf("Dir = %q", got)
	}
}

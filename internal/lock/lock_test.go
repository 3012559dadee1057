package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireFreshSucceeds(t *testing.T) {
	dir := t.TempDir()
	ok, pid, l, err := Acquire(dir, "msgcode")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected acquired=true, got pid=%d", pid)
	}
	if _, err := os.Stat(filepath.Join(dir, "run", "msgcode.pid")); err != nil {
		t.Fatalf("pidfile missing: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected pidfile removed after release")
	}
}

func TestAcquireConflictDetectsLivePID(t *testing.T) {
	dir := t.TempDir()
	ok1, _, l1, err := Acquire(dir, "msgcode")
	if err != nil || !ok1 {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok1, err)
	}
	defer l1.Release()

	ok2, pid2, _, err := Acquire(dir, "msgcode")
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok2 {
		t.Fatalf("expected second acquire to fail while first process is alive")
	}
	if pid2 != os.Getpid() {
		t.Fatalf("expected reported pid %d, got %d", os.Getpid(), pid2)
	}
}

func TestAcquireSelfHealsStalePID(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, "run")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// A PID that is virtually guaranteed not to be running.
	stale := 1 << 30
	path := filepath.Join(runDir, "msgcode.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(stale)), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, _, l, err := Acquire(dir, "msgcode")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected stale pidfile to self-heal and acquire succeed")
	}
	defer l.Release()

	pid, err := readPID(path)
	if err != nil {
		t.Fatalf("readPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pidfile to now hold our pid, got %d", pid)
	}
}

// Package lock implements the singleton pidfile guard for the msgcode
// daemon. Only one process may hold a given named role at a time; a
// pidfile left behind by a crashed process is self-healed on next start.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock represents a held singleton lock.
type Lock struct {
	path string
}

// Acquire attempts to become the sole holder of name under configDir/run.
// acquired=false with a non-zero pid means another live process holds it.
func Acquire(configDir, name string) (acquired bool, pid int, l *Lock, err error) {
	runDir := filepath.Join(configDir, "run")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return false, 0, nil, fmt.Errorf("lock: create run dir: %w", err)
	}
	path := filepath.Join(runDir, name+".pid")

	if ok, heldPID, err := tryCreate(path); err != nil {
		return false, 0, nil, err
	} else if ok {
		return true, os.Getpid(), &Lock{path: path}, nil
	} else if heldPID > 0 && isAlive(heldPID) {
		return false, heldPID, nil, nil
	}

	// Existing pidfile but unreadable/stale — probe and self-heal once.
	existingPID, readErr := readPID(path)
	if readErr == nil && existingPID > 0 && isAlive(existingPID) {
		return false, existingPID, nil, nil
	}

	// Stale: the PID is dead or the file was unreadable. Remove and retry once.
	_ = os.Remove(path)
	ok, heldPID, err := tryCreate(path)
	if err != nil {
		return false, 0, nil, err
	}
	if ok {
		return true, os.Getpid(), &Lock{path: path}, nil
	}
	return false, heldPID, nil, nil
}

// tryCreate exclusively creates the pidfile with the current PID. If it
// already exists, it reads and returns the PID recorded there.
func tryCreate(path string) (created bool, existingPID int, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			pid, rerr := readPID(path)
			if rerr != nil {
				return false, 0, nil
			}
			return false, pid, nil
		}
		return false, 0, fmt.Errorf("lock: create pidfile: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		return false, 0, fmt.Errorf("lock: write pidfile: %w", err)
	}
	return true, 0, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// isAlive probes a PID with signal 0: no signal is sent, but delivery
// error semantics reveal whether the process exists and is addressable.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// Release best-effort unlinks the pidfile. Safe to call multiple times.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the pidfile path this lock is holding.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

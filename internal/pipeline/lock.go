package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLockHeld reports that another pipeline run is active for this repo.
var ErrLockHeld = &Error{Kind: KindLockHeld, Message: "another pipeline run is active"}

// lockInfo is what the lock file records about its holder.
type lockInfo struct {
	PID        int    `json:"pid"`
	RunID      string `json:"run_id"`
	AcquiredAt string `json:"acquired_at"`
	Hostname   string `json:"hostname"`
}

// Lock is an exclusive advisory lock scoped to one repository. Acquire and
// release are guaranteed to pair on every exit path via the returned release
// function.
type Lock struct {
	path string
	file *os.File
}

// NewLock creates a lock at <workspace>/.commitly/pipeline.lock.
func NewLock(workspace string) *Lock {
	return &Lock{path: filepath.Join(workspace, ".commitly", "pipeline.lock")}
}

// Acquire takes the lock or returns ErrLockHeld if another process holds it.
// The returned function releases the lock and removes the file.
func (l *Lock) Acquire(runID string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("flock: %w", err)
	}

	hostname, _ := os.Hostname()
	info := lockInfo{
		PID:        os.Getpid(),
		RunID:      runID,
		AcquiredAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:   hostname,
	}
	if data, err := json.Marshal(info); err == nil {
		_ = file.Truncate(0)
		_, _ = file.WriteAt(data, 0)
	}

	l.file = file
	release := func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
		_ = os.Remove(l.path)
		l.file = nil
	}
	return release, nil
}

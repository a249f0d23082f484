package pipeline

import (
	"errors"
	"testing"
)

func TestLock_ExclusiveWithinRepo(t *testing.T) {
	workspace := t.TempDir()

	release, err := NewLock(workspace).Acquire("r1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	_, err = NewLock(workspace).Acquire("r2")
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second acquire should report the held lock, got %v", err)
	}

	release()

	release2, err := NewLock(workspace).Acquire("r3")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestLock_DifferentReposIndependent(t *testing.T) {
	releaseA, err := NewLock(t.TempDir()).Acquire("a")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	releaseB, err := NewLock(t.TempDir()).Acquire("b")
	if err != nil {
		t.Fatalf("lock on another repo should be independent: %v", err)
	}
	releaseB()
}

package resourcelock_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"karaokeprep/internal/resourcelock"
)

const deadPID = 0x7ffffff0

func newLocker(t *testing.T, dir string, pid int, mutate ...func(*resourcelock.Options)) *resourcelock.Locker {
	t.Helper()
	opts := resourcelock.Options{
		Dir:          dir,
		PollInterval: 10 * time.Millisecond,
		PID:          pid,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return resourcelock.New(opts)
}

func writeRecord(t *testing.T, path string, rec resourcelock.Record) {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireWritesRecordAndReleaseRemovesIt(t *testing.T) {
	dir := t.TempDir()
	locker := newLocker(t, dir, os.Getpid())

	handle, err := locker.Acquire(context.Background(), "audio-separation")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if handle.StaleRecovered {
		t.Fatal("clean acquisition must not report stale recovery")
	}

	data, err := os.ReadFile(locker.Path("audio-separation"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	var rec resourcelock.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.OwnerPID != os.Getpid() || rec.ResourceName != "audio-separation" || rec.StartTime.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := handle.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(locker.Path("audio-separation")); !os.IsNotExist(err) {
		t.Fatalf("expected record removed, stat err=%v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("second Release should be a no-op: %v", err)
	}
}

func TestSecondAcquirerWaitsWhileOwnerAlive(t *testing.T) {
	dir := t.TempDir()
	first := newLocker(t, dir, os.Getpid())
	second := newLocker(t, dir, os.Getpid()+1)

	held, err := first.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	var acquired atomic.Bool
	done := make(chan *resourcelock.Handle, 1)
	go func() {
		h, err := second.Acquire(context.Background(), "gpu")
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			done <- nil
			return
		}
		acquired.Store(true)
		done <- h
	}()

	time.Sleep(100 * time.Millisecond)
	if acquired.Load() {
		t.Fatal("second acquirer proceeded while the first owner is alive")
	}

	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	select {
	case h := <-done:
		if h == nil {
			t.Fatal("second acquirer failed")
		}
		if h.StaleRecovered {
			t.Fatal("release by a live owner is not a stale recovery")
		}
		_ = h.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("second acquirer never obtained the lock")
	}
}

func TestAcquireTimesOutWhenOwnerAlive(t *testing.T) {
	dir := t.TempDir()
	owner := newLocker(t, dir, os.Getpid())
	held, err := owner.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	waiter := newLocker(t, dir, os.Getpid()+1, func(o *resourcelock.Options) {
		o.MaxWait = 50 * time.Millisecond
	})
	_, err = waiter.Acquire(context.Background(), "gpu")
	if !errors.Is(err, resourcelock.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestAcquireHonoursContextCancellation(t *testing.T) {
	dir := t.TempDir()
	owner := newLocker(t, dir, os.Getpid())
	held, err := owner.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	waiter := newLocker(t, dir, os.Getpid()+1)
	if _, err := waiter.Acquire(ctx, "gpu"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStaleRecordIsRecovered(t *testing.T) {
	dir := t.TempDir()
	var staleSeen atomic.Int64
	locker := newLocker(t, dir, os.Getpid(), func(o *resourcelock.Options) {
		o.OnStale = func(rec resourcelock.Record, resource string) {
			if resource == "audio-separation" {
				staleSeen.Store(int64(rec.OwnerPID))
			}
		}
	})
	writeRecord(t, locker.Path("audio-separation"), resourcelock.Record{
		OwnerPID:     deadPID,
		StartTime:    time.Now().Add(-time.Hour).UTC(),
		ResourceName: "audio-separation",
	})

	handle, err := locker.Acquire(context.Background(), "audio-separation")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer handle.Release()

	if !handle.StaleRecovered {
		t.Fatal("expected stale recovery")
	}
	if handle.Previous.OwnerPID != deadPID {
		t.Fatalf("unexpected previous owner %d", handle.Previous.OwnerPID)
	}
	if staleSeen.Load() != deadPID {
		t.Fatalf("OnStale not called with stale record, got %d", staleSeen.Load())
	}
	if handle.Record.OwnerPID != os.Getpid() {
		t.Fatalf("expected new record owned by this process, got %d", handle.Record.OwnerPID)
	}
}

func TestRecordWithOwnPIDIsRecovered(t *testing.T) {
	dir := t.TempDir()
	locker := newLocker(t, dir, os.Getpid(), func(o *resourcelock.Options) {
		o.MaxWait = 200 * time.Millisecond
	})
	// Left behind by an earlier process that had the same PID.
	writeRecord(t, locker.Path("gpu"), resourcelock.Record{
		OwnerPID:     os.Getpid(),
		StartTime:    time.Now().Add(-time.Hour).UTC(),
		ResourceName: "gpu",
	})

	handle, err := locker.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer handle.Release()
	if !handle.StaleRecovered {
		t.Fatal("expected stale recovery of a record carrying our own pid")
	}
	if handle.Previous.OwnerPID != os.Getpid() {
		t.Fatalf("unexpected previous owner %d", handle.Previous.OwnerPID)
	}
}

func TestLockersInOneProcessShareSlot(t *testing.T) {
	dir := t.TempDir()
	first := newLocker(t, dir, os.Getpid())
	second := newLocker(t, dir, os.Getpid(), func(o *resourcelock.Options) {
		o.MaxWait = 50 * time.Millisecond
	})

	held, err := first.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := second.Acquire(context.Background(), "gpu"); !errors.Is(err, resourcelock.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held in-process, got %v", err)
	}
	if err := held.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	handle, err := second.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	defer handle.Release()
	if handle.StaleRecovered {
		t.Fatal("released lock must not be reported as stale")
	}
}

func TestUnreadableRecordIsTreatedAsStale(t *testing.T) {
	dir := t.TempDir()
	locker := newLocker(t, dir, os.Getpid())
	if err := os.WriteFile(locker.Path("gpu"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	handle, err := locker.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer handle.Release()
	if !handle.StaleRecovered {
		t.Fatal("expected unreadable record to be recovered as stale")
	}
}

func TestSameProcessAcquirersAreSerialized(t *testing.T) {
	locker := newLocker(t, t.TempDir(), os.Getpid())

	var inside atomic.Int32
	var overlap atomic.Bool
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			h, err := locker.Acquire(context.Background(), "gpu")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(20 * time.Millisecond)
			inside.Add(-1)
			_ = h.Release()
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if overlap.Load() {
		t.Fatal("two goroutines held the lock at once")
	}
}

func TestInspectAndClear(t *testing.T) {
	dir := t.TempDir()
	locker := newLocker(t, dir, os.Getpid())

	status, err := locker.Inspect("gpu")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if status.Held {
		t.Fatal("expected free lock")
	}

	held, err := locker.Acquire(context.Background(), "gpu")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	status, err = locker.Inspect("gpu")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !status.Held || !status.Alive || status.Record.OwnerPID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}

	if _, err := locker.Clear("gpu", false); !errors.Is(err, resourcelock.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}
	removed, err := locker.Clear("gpu", true)
	if err != nil || !removed {
		t.Fatalf("forced clear: removed=%v err=%v", removed, err)
	}

	writeRecord(t, locker.Path("stale"), resourcelock.Record{OwnerPID: deadPID, ResourceName: "stale"})
	removed, err = locker.Clear("stale", false)
	if err != nil || !removed {
		t.Fatalf("clear of dead owner: removed=%v err=%v", removed, err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !resourcelock.ProcessAlive(os.Getpid()) {
		t.Fatal("current process should be alive")
	}
	if resourcelock.ProcessAlive(0) || resourcelock.ProcessAlive(-5) {
		t.Fatal("non-positive PIDs are never alive")
	}
	if resourcelock.ProcessAlive(deadPID) {
		t.Fatal("expected PID beyond pid_max to be dead")
	}
}

func TestPathIsPerResource(t *testing.T) {
	locker := newLocker(t, "/tmp/locks", 1)
	if locker.Path("Audio Separation") == locker.Path("lyrics") {
		t.Fatal("distinct resources must map to distinct records")
	}
	if got := locker.Path("audio-separation"); got != "/tmp/locks/karaokeprep-audio-separation.lock" {
		t.Fatalf("unexpected path %q", got)
	}
}

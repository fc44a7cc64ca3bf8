package resourcelock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"karaokeprep/internal/fileutil"
	"karaokeprep/internal/logging"
	"karaokeprep/internal/textutil"
)

const (
	defaultPollInterval = 2 * time.Second
	recordPrefix        = "karaokeprep-"
	recordSuffix        = ".lock"
)

// slots holds one in-process slot per owner PID and record path, shared by
// every Locker in the process.
var (
	slotsMu sync.Mutex
	slots   = make(map[string]chan struct{})
)

var (
	// ErrLockTimeout is returned when MaxWait elapses while a live owner holds the lock.
	ErrLockTimeout = errors.New("resource lock wait timed out")
	// ErrLockHeld is returned by Clear when the owner is alive and force is not set.
	ErrLockHeld = errors.New("resource lock held by a live process")
)

// Record is the on-disk lock record.
type Record struct {
	OwnerPID     int       `json:"owner_pid"`
	StartTime    time.Time `json:"start_time"`
	ResourceName string    `json:"resource_name"`
}

// Options configures a Locker.
type Options struct {
	Dir          string        // defaults to os.TempDir()
	PollInterval time.Duration // defaults to 2s
	MaxWait      time.Duration // 0 waits until ctx is done
	Logger       *slog.Logger

	PID     int                  // defaults to os.Getpid()
	IsAlive func(pid int) bool   // defaults to a signal-0 probe
	Now     func() time.Time     // defaults to time.Now
	OnStale func(Record, string) // called with the removed record and resource name
}

// Locker acquires and inspects resource locks.
type Locker struct {
	dir          string
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
	pid          int
	isAlive      func(int) bool
	now          func() time.Time
	onStale      func(Record, string)
}

// New constructs a Locker.
func New(opts Options) *Locker {
	l := &Locker{
		dir:          opts.Dir,
		pollInterval: opts.PollInterval,
		maxWait:      opts.MaxWait,
		logger:       logging.NewComponentLogger(opts.Logger, "resourcelock"),
		pid:          opts.PID,
		isAlive:      opts.IsAlive,
		now:          opts.Now,
		onStale:      opts.OnStale,
	}
	if l.dir == "" {
		l.dir = os.TempDir()
	}
	if l.pollInterval <= 0 {
		l.pollInterval = defaultPollInterval
	}
	if l.maxWait < 0 {
		l.maxWait = 0
	}
	if l.pid <= 0 {
		l.pid = os.Getpid()
	}
	if l.isAlive == nil {
		l.isAlive = ProcessAlive
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Path returns the record location for resource.
func (l *Locker) Path(resource string) string {
	return filepath.Join(l.dir, recordPrefix+textutil.SanitizeToken(resource)+recordSuffix)
}

// Handle represents a held lock.
type Handle struct {
	Resource string
	Path     string
	Record   Record
	// StaleRecovered is set when acquisition removed a record left by a dead process.
	StaleRecovered bool
	// Previous is the stale record that was removed, when StaleRecovered is set.
	Previous Record
	Waited   time.Duration

	logger   *slog.Logger
	unslot   func()
	once     sync.Once
	released error
}

// Release deletes the lock record. It is safe to call more than once.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if h.unslot != nil {
			defer h.unslot()
		}
		err := os.Remove(h.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			h.released = fmt.Errorf("remove lock record: %w", err)
			return
		}
		h.logger.Info("resource lock released", logging.String(logging.FieldResource, h.Resource))
	})
	return h.released
}

// Acquire blocks until the caller holds resource, ctx is done, or MaxWait elapses.
func (l *Locker) Acquire(ctx context.Context, resource string) (*Handle, error) {
	if resource == "" {
		return nil, errors.New("resource name is required")
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	started := l.now()
	unslot, err := l.enterSlot(ctx, resource)
	if err != nil {
		return nil, err
	}
	handle, err := l.acquireRecord(ctx, resource, started)
	if err != nil {
		unslot()
		return nil, err
	}
	handle.unslot = unslot
	return handle, nil
}

// enterSlot serializes acquirers inside this process. Goroutines share a PID,
// so the record alone cannot tell them apart.
func (l *Locker) enterSlot(ctx context.Context, resource string) (func(), error) {
	key := strconv.Itoa(l.pid) + ":" + l.Path(resource)
	slotsMu.Lock()
	slot, ok := slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		slots[key] = slot
	}
	slotsMu.Unlock()

	var deadline <-chan time.Time
	if l.maxWait > 0 {
		timer := time.NewTimer(l.maxWait)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline:
		return nil, fmt.Errorf("%w: %s busy in this process after %s", ErrLockTimeout, resource, l.maxWait)
	}
}

func (l *Locker) acquireRecord(ctx context.Context, resource string, started time.Time) (*Handle, error) {
	path := l.Path(resource)
	logger := logging.WithContext(ctx, l.logger).With(logging.String(logging.FieldResource, resource))
	handle := &Handle{Resource: resource, Path: path, logger: logger}
	waitLogged := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, present, err := l.read(path)
		if err != nil {
			return nil, err
		}

		switch {
		case !present:
			mine := Record{OwnerPID: l.pid, StartTime: l.now().UTC(), ResourceName: resource}
			if err := l.write(path, mine); err != nil {
				return nil, err
			}
			confirmed, ok, err := l.read(path)
			if err != nil {
				return nil, err
			}
			if ok && confirmed.OwnerPID == mine.OwnerPID && confirmed.StartTime.Equal(mine.StartTime) {
				handle.Record = mine
				handle.Waited = l.now().Sub(started)
				l.logAcquired(logger, handle)
				return handle, nil
			}
			// Another acquirer overwrote the slot between our write and read-back.
		// Holding the slot means no acquirer in this process owns the record,
		// so one carrying our PID was left by an earlier process that reused it.
		case current.OwnerPID == l.pid || !l.isAlive(current.OwnerPID):
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("remove stale lock record: %w", err)
			}
			handle.StaleRecovered = true
			handle.Previous = current
			logging.WarnWithContext(logger, "stale resource lock removed", "lock_stale_recovered",
				logging.Int("stale_pid", current.OwnerPID),
				logging.String("stale_since", current.StartTime.Format(time.RFC3339)),
				logging.String(logging.FieldImpact, "a previous holder exited without releasing the lock"),
				logging.String(logging.FieldErrorHint, "check whether the previous run crashed"),
			)
			if l.onStale != nil {
				l.onStale(current, resource)
			}
			continue
		default:
			if !waitLogged {
				logger.Info("waiting for resource lock",
					logging.Int("owner_pid", current.OwnerPID),
					logging.String("held_since", current.StartTime.Format(time.RFC3339)),
				)
				waitLogged = true
			}
		}

		if l.maxWait > 0 && l.now().Sub(started) >= l.maxWait {
			return nil, fmt.Errorf("%w: %s held by pid %d after %s", ErrLockTimeout, resource, current.OwnerPID, l.maxWait)
		}

		timer := time.NewTimer(l.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) logAcquired(logger *slog.Logger, h *Handle) {
	attrs := []logging.Attr{
		logging.Int("owner_pid", h.Record.OwnerPID),
		logging.Duration("waited", h.Waited),
	}
	if h.StaleRecovered {
		attrs = append(attrs, logging.Bool("stale_recovered", true), logging.Int("stale_pid", h.Previous.OwnerPID))
		logger.Info("resource lock acquired after stale recovery", logging.Args(attrs...)...)
		return
	}
	logger.Info("resource lock acquired", logging.Args(attrs...)...)
}

// read returns the current record. A record that cannot be decoded is
// reported as present with OwnerPID 0, which the liveness probe treats as dead.
func (l *Locker) read(path string) (Record, bool, error) {
	if !fileutil.Exists(path) {
		return Record{}, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Released between the existence check and the read.
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read lock record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.logger.Warn("lock record unreadable; treating as stale",
			logging.String("path", path),
			logging.Error(err),
		)
		return Record{}, true, nil
	}
	return rec, true, nil
}

func (l *Locker) write(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock record: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write lock record: %w", err)
	}
	return nil
}

// Status describes the current state of a resource lock.
type Status struct {
	Resource string
	Path     string
	Held     bool
	Alive    bool
	Record   Record
}

// Inspect reads the lock record without modifying it.
func (l *Locker) Inspect(resource string) (Status, error) {
	path := l.Path(resource)
	rec, present, err := l.read(path)
	if err != nil {
		return Status{}, err
	}
	status := Status{Resource: resource, Path: path, Held: present, Record: rec}
	if present {
		status.Alive = l.isAlive(rec.OwnerPID)
	}
	return status, nil
}

// Clear removes a lock record. A record owned by a live process is left in
// place unless force is set. It reports whether a record was removed.
func (l *Locker) Clear(resource string, force bool) (bool, error) {
	status, err := l.Inspect(resource)
	if err != nil {
		return false, err
	}
	if !status.Held {
		return false, nil
	}
	if status.Alive && !force {
		return false, fmt.Errorf("%w: %s (pid %d)", ErrLockHeld, resource, status.Record.OwnerPID)
	}
	if err := os.Remove(status.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("remove lock record: %w", err)
	}
	logging.WarnWithContext(l.logger, "resource lock cleared by operator", "lock_cleared",
		logging.String(logging.FieldResource, resource),
		logging.Int("owner_pid", status.Record.OwnerPID),
		logging.Bool("owner_alive", status.Alive),
		logging.String(logging.FieldImpact, "the previous holder no longer owns the resource"),
	)
	return true, nil
}

package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mbrennan/overseer/internal/filelock"
)

// LeaseFileName is the worker lease under the work directory.
const LeaseFileName = "worker.lease"

// DefaultLeaseTTL is how long a lease stays valid without renewal.
const DefaultLeaseTTL = 5 * time.Minute

// ErrLeaseHeld indicates another worker holds an unexpired lease on this
// clone. Running two workers against one clone is out of contract; the
// lease turns that implicit assumption into an explicit failure.
var ErrLeaseHeld = errors.New("worker lease is held by another owner")

// LeaseRecord is the persisted body of a lease.
type LeaseRecord struct {
	Owner      string    `json:"owner"`
	Hostname   string    `json:"hostname"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease has lapsed at the given instant.
func (r *LeaseRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Lease is an exclusive, expiring claim on a clone's work directory held
// by a single worker process.
type Lease struct {
	path   string
	ttl    time.Duration
	record LeaseRecord

	// now is swappable for tests.
	now func() time.Time
}

// AcquireLease claims the lease at path for a new owner identity. It fails
// with ErrLeaseHeld when an unexpired lease belonging to someone else is
// present; an expired record is treated as abandoned and taken over. The
// read-check-write sequence runs under an OS-level file lock so two racing
// processes cannot both acquire.
func AcquireLease(path string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	lease := &Lease{path: path, ttl: ttl, now: time.Now}

	guard := filelock.New(path + ".lock")
	if err := guard.Acquire(); err != nil {
		return nil, err
	}
	defer guard.Release()

	existing, err := readLeaseRecord(path)
	if err != nil {
		return nil, err
	}
	now := lease.now()
	if existing != nil && !existing.Expired(now) {
		return nil, fmt.Errorf("%w (owner %s, pid %d, expires %s)",
			ErrLeaseHeld, existing.Owner, existing.PID, existing.ExpiresAt.Format(time.RFC3339))
	}

	hostname, _ := os.Hostname()
	lease.record = LeaseRecord{
		Owner:      uuid.NewString(),
		Hostname:   hostname,
		PID:        os.Getpid(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := filelock.AtomicWriteJSON(path, &lease.record); err != nil {
		return nil, err
	}
	return lease, nil
}

// Owner returns the lease's owner identity.
func (l *Lease) Owner() string {
	return l.record.Owner
}

// Renew extends the lease expiry. It fails if the on-disk record no longer
// belongs to this owner (another process took over an expired lease).
func (l *Lease) Renew() error {
	guard := filelock.New(l.path + ".lock")
	if err := guard.Acquire(); err != nil {
		return err
	}
	defer guard.Release()

	existing, err := readLeaseRecord(l.path)
	if err != nil {
		return err
	}
	if existing == nil || existing.Owner != l.record.Owner {
		return fmt.Errorf("%w: lease was taken over", ErrLeaseHeld)
	}

	l.record.ExpiresAt = l.now().Add(l.ttl)
	return filelock.AtomicWriteJSON(l.path, &l.record)
}

// Release drops the lease. Releasing a lease someone else took over is a
// no-op.
func (l *Lease) Release() error {
	guard := filelock.New(l.path + ".lock")
	if err := guard.Acquire(); err != nil {
		return err
	}
	defer guard.Release()

	existing, err := readLeaseRecord(l.path)
	if err != nil {
		return err
	}
	if existing == nil || existing.Owner != l.record.Owner {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lease: %w", err)
	}
	return nil
}

// readLeaseRecord loads the lease body, returning nil when absent.
func readLeaseRecord(path string) (*LeaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lease: %w", err)
	}
	var record LeaseRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt lease is treated as abandoned.
		return nil, nil
	}
	return &record, nil
}

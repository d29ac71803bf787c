package port

import (
	"context"
	"time"
)

// Admission is the outcome of an admission attempt against the deduplication
// store. When Admitted is false, ExistingExpiry carries the expiry of the
// live record that blocked admission (zero if the store could not report it).
type Admission struct {
	Admitted       bool
	ExistingExpiry time.Time
}

// AdmissionGate admits at most one investigation per alarm identity within a
// rolling window. Implementations must use a single atomic conditional write
// against a shared store; a read-then-write pair leaves a race window under
// concurrent admission attempts.
//
// If the backing store is unavailable the gate fails closed: it returns an
// error and the caller must not proceed as if admitted.
type AdmissionGate interface {
	Admit(ctx context.Context, alarmIdentity string, window time.Duration) (Admission, error)
}

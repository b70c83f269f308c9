// Package snapshot captures and restores chain state around test suites.
// Simulated chains use their native snapshot ids; managed remote networks
// use head pointers.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/network"
)

var (
	ErrInvalidHandle  = errors.New("invalid snapshot handle")
	ErrRevertRejected = errors.New("node rejected the revert")
	ErrNoHead         = errors.New("network reported no head")
	ErrNoBackend      = errors.New("no snapshot backend for mode")
)

// Handle identifies a captured state. Its ID is only meaningful to the
// backend of the mode that created it. The zero Handle is invalid.
type Handle struct {
	Mode network.Mode
	ID   string
}

func (h Handle) IsZero() bool {
	return h.ID == ""
}

func (h Handle) String() string {
	if h.IsZero() {
		return "snapshot(none)"
	}
	return fmt.Sprintf("snapshot(%s:%s)", h.Mode, h.ID)
}

// ModeMismatchError is returned when restoring a handle created in another mode.
type ModeMismatchError struct {
	Handle  network.Mode
	Manager network.Mode
}

func (e *ModeMismatchError) Error() string {
	return fmt.Sprintf("snapshot handle of %s mode cannot be restored in %s mode", e.Handle, e.Manager)
}

// OperationError wraps a backend failure with the operation and handle.
type OperationError struct {
	Op     string
	Handle Handle
	Err    error
}

func (e *OperationError) Error() string {
	if e.Handle.IsZero() {
		return fmt.Sprintf("snapshot %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("snapshot %s of %s failed: %v", e.Op, e.Handle, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Backend is the snapshot primitive of one mode.
type Backend interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}

// Manager creates and restores handles with the backend of the selected mode.
// It keeps no handle of its own; callers own the handles they create.
type Manager struct {
	mode    network.Mode
	backend Backend
}

// NewManager picks local for the Local and Fork modes and remote for the
// Remote mode. The backend of the other mode is never used and may be nil.
func NewManager(sel network.Selection, local, remote Backend) (*Manager, error) {
	var backend Backend
	switch {
	case sel.Mode.UsesEVMSnapshots():
		backend = local
	case sel.Mode == network.Remote:
		backend = remote
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, sel.Mode)
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, sel.Mode)
	}
	return &Manager{mode: sel.Mode, backend: backend}, nil
}

func (m *Manager) Mode() network.Mode {
	return m.mode
}

// Create captures the current state.
func (m *Manager) Create(ctx context.Context) (Handle, error) {
	id, err := m.backend.Snapshot(ctx)
	if err != nil {
		return Handle{}, &OperationError{Op: "create", Err: err}
	}
	if id == "" {
		return Handle{}, &OperationError{Op: "create", Err: ErrInvalidHandle}
	}
	return Handle{Mode: m.mode, ID: id}, nil
}

// Restore returns the chain to the state captured in h.
func (m *Manager) Restore(ctx context.Context, h Handle) error {
	if h.IsZero() {
		return &OperationError{Op: "restore", Handle: h, Err: ErrInvalidHandle}
	}
	if h.Mode != m.mode {
		return &OperationError{Op: "restore", Handle: h, Err: &ModeMismatchError{Handle: h.Mode, Manager: m.mode}}
	}
	if err := m.backend.Revert(ctx, h.ID); err != nil {
		return &OperationError{Op: "restore", Handle: h, Err: err}
	}
	return nil
}

package snapshot

import (
	"context"
	"fmt"
)

// RPCCaller is the subset of *rpc.Client the EVM backend needs.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// EVM snapshots a development node with evm_snapshot and evm_revert. A revert
// consumes the snapshot and every snapshot taken after it.
type EVM struct {
	client RPCCaller
}

func NewEVM(client RPCCaller) *EVM {
	return &EVM{client: client}
}

func (e *EVM) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := e.client.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot: %w", err)
	}
	return id, nil
}

func (e *EVM) Revert(ctx context.Context, id string) error {
	var ok bool
	if err := e.client.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return fmt.Errorf("evm_revert: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: evm_revert %s", ErrRevertRejected, id)
	}
	return nil
}

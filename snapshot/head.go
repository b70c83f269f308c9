package snapshot

import "context"

// HeadNetwork is a managed network whose state is addressed by head pointers.
type HeadNetwork interface {
	GetHead(ctx context.Context) (string, error)
	SetHead(ctx context.Context, head string) error
}

// HeadBackend snapshots by remembering the head and restores by moving the
// head back to it.
type HeadBackend struct {
	network HeadNetwork
}

func NewHeadBackend(network HeadNetwork) *HeadBackend {
	return &HeadBackend{network: network}
}

func (b *HeadBackend) Snapshot(ctx context.Context) (string, error) {
	head, err := b.network.GetHead(ctx)
	if err != nil {
		return "", err
	}
	if head == "" {
		return "", ErrNoHead
	}
	return head, nil
}

func (b *HeadBackend) Revert(ctx context.Context, id string) error {
	return b.network.SetHead(ctx, id)
}

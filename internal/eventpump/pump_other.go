//go:build !linux

package eventpump

import (
	"context"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// stubBackend exists so the daemon builds on a non-Linux development
// machine; every call fails with NotSupported since epoll and
// FunctionFS are both Linux-only.
type stubBackend struct{}

func newPumpBackend() (pumpBackend, error) {
	return &stubBackend{}, nil
}

func (b *stubBackend) add(fd int) error    { return gadgeterr.New("add", gadgeterr.NotSupported, nil) }
func (b *stubBackend) remove(fd int) error { return gadgeterr.New("remove", gadgeterr.NotSupported, nil) }
func (b *stubBackend) wait(ctx context.Context) ([]int, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (b *stubBackend) close() error { return nil }

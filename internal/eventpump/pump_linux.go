//go:build linux

package eventpump

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// epollBackend is the real reactor: one epoll instance plus an event
// fd used purely to wake epoll_wait when Close is called from another
// goroutine.
type epollBackend struct {
	epfd     int
	wakeFd   int
	closeOnce sync.Once
}

func newPumpBackend() (pumpBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, gadgeterr.FromErr("epoll_create1", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, gadgeterr.FromErr("eventfd", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, gadgeterr.FromErr("epoll_ctl add wake fd", err)
	}
	return &epollBackend{epfd: epfd, wakeFd: wakeFd}, nil
}

func (b *epollBackend) add(fd int) error {
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return gadgeterr.FromErr("epoll_ctl add", err)
	}
	return nil
}

func (b *epollBackend) remove(fd int) error {
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return gadgeterr.FromErr("epoll_ctl del", err)
	}
	return nil
}

func (b *epollBackend) wait(ctx context.Context) ([]int, error) {
	events := make([]unix.EpollEvent, 32)
	for {
		n, err := unix.EpollWait(b.epfd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, gadgeterr.FromErr("epoll_wait", err)
		}

		ready := make([]int, 0, n)
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == b.wakeFd {
				return nil, errPumpClosed
			}
			ready = append(ready, fd)
		}
		return ready, nil
	}
}

func (b *epollBackend) close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		buf := make([]byte, 8)
		buf[0] = 1
		unix.Write(b.wakeFd, buf)
		unix.Close(b.wakeFd)
		closeErr = unix.Close(b.epfd)
	})
	return closeErr
}

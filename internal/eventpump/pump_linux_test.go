//go:build linux

package eventpump

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestPumpDispatchesOnWrite(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	dispatched := make(chan string, 1)
	if err := p.Add(int(r.Fd()), func(dispatchID string, fd int) error {
		buf := make([]byte, 1)
		os.NewFile(uintptr(fd), "r").Read(buf)
		dispatched <- dispatchID
		return nil
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if _, err := w.Write([]byte{1}); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-dispatched:
		if id == "" {
			t.Fatal("expected non-empty dispatch id")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not dispatched in time")
	}

	cancel()
	p.Close()
	<-done
}

func TestPumpAddDuplicateFails(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	noop := func(string, int) error { return nil }
	if err := p.Add(int(r.Fd()), noop); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Add(int(r.Fd()), noop); err == nil {
		t.Fatal("expected error on duplicate Add")
	}
}

package ffs

import (
	"io"
	"os"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// eventSize is sizeof(struct usb_functionfs_event): an 8-byte union
// (usb_ctrlrequest or a u32 driver code) followed by a 1-byte type
// field, naturally aligned to 4 bytes.
const eventSize = 12

// Kernel-side usb_functionfs_event_type values. The state machine of
// spec §4.5 only transitions on BIND/UNBIND/ENABLE, but SETUP may
// still be the configured activation event (spec §4.4's table), so
// ReadEvent reports it too; only SUSPEND/RESUME are truly inert.
const (
	kernelEventBind = iota
	kernelEventUnbind
	kernelEventEnable
	kernelEventDisable
	kernelEventSetup
	kernelEventSuspend
	kernelEventResume
)

// ReadEvent reads one fixed-size event off ep0 and reports the
// resulting EventType. ok is false for SUSPEND/RESUME, which no
// configured activation_event can ever match, or when the read was a
// clean EOF (the instance was torn down concurrently); the caller
// should simply keep polling in either case.
func ReadEvent(ep0 *os.File) (ev EventType, ok bool, err error) {
	buf := make([]byte, eventSize)
	if _, err := io.ReadFull(ep0, buf); err != nil {
		if err == io.EOF {
			return 0, false, nil
		}
		return 0, false, gadgeterr.FromErr("ReadEvent", err)
	}

	switch buf[8] {
	case kernelEventBind:
		return EventBind, true, nil
	case kernelEventUnbind:
		return EventUnbind, true, nil
	case kernelEventEnable:
		return EventEnable, true, nil
	case kernelEventDisable:
		return EventDisable, true, nil
	case kernelEventSetup:
		return EventSetup, true, nil
	default:
		return 0, false, nil
	}
}

// KernelEventCode returns the numeric kernel usb_functionfs_event_type
// value for ev, the value the child-launch pipeline exports as
// ACTIVATION_EVENT (spec §4.6 step 5, §6).
func KernelEventCode(ev EventType) int {
	switch ev {
	case EventBind:
		return kernelEventBind
	case EventUnbind:
		return kernelEventUnbind
	case EventEnable:
		return kernelEventEnable
	case EventDisable:
		return kernelEventDisable
	case EventSetup:
		return kernelEventSetup
	case EventSuspend:
		return kernelEventSuspend
	case EventResume:
		return kernelEventResume
	default:
		return -1
	}
}

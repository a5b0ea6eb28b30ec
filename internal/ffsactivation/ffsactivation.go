// Package ffsactivation is the small library a FunctionFS child
// service links against to recover the endpoint file descriptors
// gadgetd handed it at launch, the same way a systemd socket-activated
// service recovers LISTEN_FDS.
package ffsactivation

import (
	"fmt"
	"os"
	"strconv"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// listenFDsStart is the first inherited fd number, matching
// sd_LISTEN_FDS_START and GD_ENDPOINT_FDS_START.
const listenFDsStart = 3

// Count returns the number of endpoint file descriptors gadgetd
// handed this process, recovered from LISTEN_FDS. If unsetEnv is true
// the environment variables this package reads are cleared afterward
// so a further child this process execs doesn't also try to interpret
// them. A LISTEN_PID that doesn't match this process's own pid means
// the variables were inherited from an unrelated ancestor and Count
// returns 0, not an error — mirroring gd_nmb_of_ep's validation.
func Count(unsetEnv bool) (int, error) {
	defer func() {
		if unsetEnv {
			os.Unsetenv("LISTEN_PID")
			os.Unsetenv("LISTEN_FDS")
		}
	}()

	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, gadgeterr.New("Count", gadgeterr.BadValue, fmt.Errorf("malformed LISTEN_PID %q: %w", pidStr, err))
	}
	if pid != os.Getpid() {
		return 0, nil
	}

	fdsStr := os.Getenv("LISTEN_FDS")
	if fdsStr == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(fdsStr)
	if err != nil {
		return 0, gadgeterr.New("Count", gadgeterr.BadValue, fmt.Errorf("malformed LISTEN_FDS %q: %w", fdsStr, err))
	}
	if n < 0 {
		return 0, gadgeterr.New("Count", gadgeterr.InvalidParam, fmt.Errorf("negative LISTEN_FDS %d", n))
	}
	return n, nil
}

// EP0 returns fd 3, the control endpoint, always the first fd handed
// over.
func EP0() *os.File {
	return os.NewFile(uintptr(listenFDsStart), "ep0")
}

// FD returns the i'th inherited data endpoint (0-based, i.e. FD(0) is
// ep1, the first endpoint after ep0).
func FD(i int) *os.File {
	return os.NewFile(uintptr(listenFDsStart+1+i), fmt.Sprintf("ep%d", i+1))
}

// Event returns the raw ACTIVATION_EVENT value gadgetd launched this
// process with: the decimal kernel event code of the activation event
// (e.g. "0" for BIND, "2" for ENABLE, "4" for SETUP). If unsetEnv is true,
// ACTIVATION_EVENT is cleared from the environment afterward.
func Event(unsetEnv bool) (string, error) {
	if unsetEnv {
		defer os.Unsetenv("ACTIVATION_EVENT")
	}
	ev := os.Getenv("ACTIVATION_EVENT")
	if ev == "" {
		return "", gadgeterr.New("Event", gadgeterr.NotDefined, fmt.Errorf("ACTIVATION_EVENT not set"))
	}
	return ev, nil
}

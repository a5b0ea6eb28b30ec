package kernel

import (
	"crypto/rand"
	"fmt"
	"net"
	"regexp"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// macRE matches the colon-separated hex form ConfigFS net functions
// (ecm, subset, ncm, eem, rndis) expect for their dev_addr/host_addr
// attribute files.
var macRE = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)

// ValidateMAC reports whether s is an acceptable dev_addr/host_addr
// value.
func ValidateMAC(s string) error {
	if !macRE.MatchString(s) {
		return gadgeterr.New("ValidateMAC", gadgeterr.BadValue, fmt.Errorf("malformed MAC address %q", s))
	}
	return nil
}

// GenerateLocalMAC returns a random, locally-administered, unicast MAC
// address suitable for a net function's dev_addr or host_addr when the
// caller supplies none. Setting the locally-administered bit and
// clearing the multicast bit follows the convention the kernel's own
// usb_ether driver uses when it has to invent an address.
func GenerateLocalMAC() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", gadgeterr.New("GenerateLocalMAC", gadgeterr.OtherError, err)
	}
	buf[0] = (buf[0] | 0x02) &^ 0x01
	hw := net.HardwareAddr(buf)
	return hw.String(), nil
}

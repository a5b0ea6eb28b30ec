package gadgetcore

import (
	"fmt"
	"strings"

	"github.com/elliotwutingfeng/asciiset"
	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// objectPathChars is the ^[A-Za-z0-9_]+$ allow-set that ValidateName
// checks and Sanitize maps onto. ValidateName is applied to gadget
// names and function type and instance names; configuration labels and
// UDC names are not checked against it.
var objectPathChars, _ = asciiset.MakeASCIISet("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_")

// ValidateName checks that name is already a path-safe token: non-empty
// and containing no character outside the object-path allow-set. Use
// this wherever a caller-supplied name is taken literally as a
// filesystem or ConfigFS path component (gadget names, function type
// and instance names) — those must be rejected outright rather than
// silently rewritten, since rewriting could make a later filesystem
// path component land somewhere the caller never named (e.g. a "../"
// instance name).
func ValidateName(name string) error {
	if name == "" {
		return gadgeterr.New("ValidateName", gadgeterr.BadValue, fmt.Errorf("name must not be empty"))
	}
	for i := 0; i < len(name); i++ {
		if !objectPathChars.Contains(name[i]) {
			return gadgeterr.New("ValidateName", gadgeterr.BadValue,
				fmt.Errorf("name %q contains disallowed character %q", name, name[i]))
		}
	}
	return nil
}

// Sanitize implements spec §3's path-component sanitization: every
// character outside [A-Za-z0-9_] is replaced with '_', preserving
// length. An embedded '/' is rejected rather than replaced, since
// folding it into '_' would hide a path-traversal attempt instead of
// refusing it.
func Sanitize(name string) (string, error) {
	if name == "" {
		return "", gadgeterr.New("Sanitize", gadgeterr.BadValue, fmt.Errorf("name must not be empty"))
	}
	if strings.Contains(name, "/") {
		return "", gadgeterr.New("Sanitize", gadgeterr.BadValue, fmt.Errorf("name %q must not contain '/'", name))
	}
	b := []byte(name)
	for i := range b {
		if !objectPathChars.Contains(b[i]) {
			b[i] = '_'
		}
	}
	return string(b), nil
}

// FunctionPath formats a function's object path per spec §3:
// <gadget>/Function/<sanitized-type>/<sanitized-instance>.
func FunctionPath(gadgetName, typeName, instance string) (string, error) {
	st, err := Sanitize(typeName)
	if err != nil {
		return "", err
	}
	si, err := Sanitize(instance)
	if err != nil {
		return "", err
	}
	return GadgetPath(gadgetName) + "/Function/" + st + "/" + si, nil
}

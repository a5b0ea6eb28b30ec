// Package kernel talks to the Linux ConfigFS USB gadget subsystem
// directly: it creates and tears down the gadget/configuration/function
// directory trees under configfs_root/usb_gadget, binds and unbinds
// UDCs, and lists UDC names. Kernel function driver discovery is done
// by the functiontype package, not here.
package kernel

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// writeAttr writes val to the configfs attribute file at path,
// trimming nothing: configfs attribute files take the value verbatim,
// as the teacher's writeSysfs helper does.
func writeAttr(path, val string) error {
	if err := os.WriteFile(path, []byte(val), 0644); err != nil {
		return gadgeterr.FromErr(fmt.Sprintf("write %s", path), err)
	}
	return nil
}

// readAttr reads and returns the trimmed contents of a configfs
// attribute file.
func readAttr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", gadgeterr.FromErr(fmt.Sprintf("read %s", path), err)
	}
	return trimNL(string(data)), nil
}

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// mkdir creates a configfs directory. ConfigFS directories come into
// existence with mkdir(2) and kernel-populated default attribute
// files appear inside automatically.
func mkdir(path string) error {
	if err := os.Mkdir(path, 0775); err != nil {
		if os.IsExist(err) {
			return gadgeterr.New("mkdir "+path, gadgeterr.Exist, err)
		}
		return gadgeterr.FromErr("mkdir "+path, err)
	}
	return nil
}

// rmdir removes a configfs directory. Configurations and functions
// must be unlinked from each other before their directories can be
// removed; the kernel enforces this with EBUSY, which we surface as
// OtherError since it isn't in the fixed errno table.
func rmdir(path string) error {
	if err := os.Remove(path); err != nil {
		return gadgeterr.FromErr("rmdir "+path, err)
	}
	return nil
}

func symlink(oldname, newname string) error {
	if err := os.Symlink(oldname, newname); err != nil {
		return gadgeterr.FromErr(fmt.Sprintf("symlink %s -> %s", newname, oldname), err)
	}
	return nil
}

func unlink(name string) error {
	if err := os.Remove(name); err != nil {
		return gadgeterr.FromErr("unlink "+name, err)
	}
	return nil
}

func readDirNames(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, gadgeterr.FromErr("readdir "+path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// configID formats a ConfigFS configuration directory name, which is
// always "<label>.<numeric id>".
func configID(label string, id int) string {
	return fmt.Sprintf("%s.%d", label, id)
}

func gadgetDir(root, name string) string {
	return filepath.Join(root, "usb_gadget", name)
}

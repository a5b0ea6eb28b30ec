//go:build linux

package ffs

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// mountFunctionFS mounts the functionfs filesystem at dir with source
// instanceName. The source name is the documented contract: it must
// equal the instance name verbatim, exactly as mount_ffs_instance uses
// func->instance directly.
func mountFunctionFS(instanceName, dir string) error {
	if err := unix.Mount(instanceName, dir, "functionfs", 0, ""); err != nil {
		return gadgeterr.FromErr(fmt.Sprintf("mount %s functionfs at %s", instanceName, dir), err)
	}
	return nil
}

func unmountFunctionFS(dir string) error {
	if err := unix.Unmount(dir, 0); err != nil {
		return gadgeterr.FromErr("unmount "+dir, err)
	}
	return nil
}

//go:build linux

package ffs

import (
	"os/exec"
	"syscall"
)

// applySysProcAttr sets the child-launch pipeline's chroot_to and
// user/group descriptor-file options (spec §4.4's table) on cmd before
// Start, via the same syscall.SysProcAttr the kernel fork+exec path
// would configure natively.
func applySysProcAttr(cmd *exec.Cmd, sf *ServiceFile) {
	if sf.ChrootTo == "" && sf.UID == nil && sf.GID == nil {
		return
	}
	attr := &syscall.SysProcAttr{}
	if sf.ChrootTo != "" {
		attr.Chroot = sf.ChrootTo
	}
	if sf.UID != nil || sf.GID != nil {
		cred := &syscall.Credential{}
		if sf.UID != nil {
			cred.Uid = uint32(*sf.UID)
		}
		if sf.GID != nil {
			cred.Gid = uint32(*sf.GID)
		}
		attr.Credential = cred
	}
	cmd.SysProcAttr = attr
}

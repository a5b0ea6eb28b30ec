//go:build !linux

package ffs

import "os/exec"

// applySysProcAttr is a no-op off Linux; chroot_to/user/group are a
// Linux ConfigFS-gadget-only concern.
func applySysProcAttr(cmd *exec.Cmd, sf *ServiceFile) {}

package ffs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// epNameRE matches a FunctionFS data endpoint file name; ep0 is
// excluded explicitly since it is handled separately.
var epNameRE = regexp.MustCompile(`^ep([1-9][0-9]*)$`)

// maxEndpointFDs is the fd-table ceiling of spec §4.6 step 1 (ep0 plus
// up to 31 data endpoints).
const maxEndpointFDs = 32

// sortedEndpoints lists an instance's data endpoint file names (ep1,
// ep2, ...) in ascending numeric order, mirroring ep_select/ep_sort's
// scandir-then-numeric-sort over the mount directory.
func sortedEndpoints(mountDir string) ([]string, error) {
	entries, err := os.ReadDir(mountDir)
	if err != nil {
		return nil, gadgeterr.FromErr("sortedEndpoints", err)
	}

	type numbered struct {
		name string
		n    int
	}
	var eps []numbered
	for _, e := range entries {
		m := epNameRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		eps = append(eps, numbered{name: e.Name(), n: n})
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].n < eps[j].n })

	names := make([]string, len(eps))
	for i, e := range eps {
		names[i] = e.name
	}
	return names, nil
}

// listenPIDWrapper re-execs into the target program through a shell
// that exports its own pid as LISTEN_PID first. Go's runtime performs
// fork and exec as a single atomic step with no hook in between, so
// there is no way for gadgetd itself to learn the child's pid before
// exec the way the original fork(2)-then-execve(2) split could; `exec`
// inside the shell replaces the process image without forking again,
// so $$ is already the final program's real pid and fd numbers are
// unaffected. Together with the two variables gadgetd sets directly,
// this keeps the child's environment to exactly the three variables
// prepare_environ builds: LISTEN_FDS, LISTEN_PID, ACTIVATION_EVENT.
const listenPIDWrapper = `export LISTEN_PID=$$; exec "$@"`

// LaunchChild enumerates inst's endpoints, opens the data endpoints,
// and execs the service's configured program with ep0 and every data
// endpoint handed over starting at fd 3, LISTEN_FDS/LISTEN_PID/
// ACTIVATION_EVENT set per the activation contract. On success it
// returns the child's pid; it does not change inst's state, which the
// caller records with MarkRunning.
func LaunchChild(inst *Instance) (pid int, err error) {
	if inst.EP0 == nil {
		return 0, gadgeterr.New("LaunchChild", gadgeterr.OtherError, fmt.Errorf("instance %s has no open ep0", inst.Name))
	}

	epNames, err := sortedEndpoints(inst.MountDir)
	if err != nil {
		return 0, err
	}
	if 1+len(epNames) > maxEndpointFDs {
		return 0, gadgeterr.New("LaunchChild", gadgeterr.BadValue,
			fmt.Errorf("instance %s has %d endpoints, exceeds max %d", inst.Name, 1+len(epNames), maxEndpointFDs))
	}

	files := make([]*os.File, 0, 1+len(epNames))
	files = append(files, inst.EP0)
	for _, name := range epNames {
		f, err := os.OpenFile(filepath.Join(inst.MountDir, name), os.O_RDWR, 0)
		if err != nil {
			closeAll(files[1:])
			return 0, gadgeterr.FromErr("LaunchChild open "+name, err)
		}
		files = append(files, f)
	}

	activation, err := inst.Service.ActivationEventType()
	if err != nil {
		closeAll(files[1:])
		return 0, err
	}

	// Exactly these two, plus LISTEN_PID exported by listenPIDWrapper
	// below: the daemon's own environment is never handed to the child.
	env := []string{
		fmt.Sprintf("LISTEN_FDS=%d", len(files)),
		fmt.Sprintf("ACTIVATION_EVENT=%d", KernelEventCode(activation)),
	}

	cmd := exec.Command("/bin/sh", "-c", listenPIDWrapper, "sh", inst.Service.ExecPath)
	cmd.Env = env
	// ExtraFiles land at fd 3 onward in the child; ep0 goes first so
	// it ends up at fd 3, matching prepare_fds_table's fds[0] = ep0_fd.
	cmd.ExtraFiles = files
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if inst.Service.WorkDir != "" {
		cmd.Dir = inst.Service.WorkDir
	}
	applySysProcAttr(cmd, inst.Service)

	if err := cmd.Start(); err != nil {
		closeAll(files[1:])
		return 0, gadgeterr.FromErr("LaunchChild start", err)
	}

	for _, f := range files[1:] {
		f.Close()
	}

	return cmd.Process.Pid, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

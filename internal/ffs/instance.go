package ffs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// Instance is one mounted FunctionFS instance: a directory holding
// ep0 and a variable number of data endpoint files, backing one
// Function Function in the object model.
type Instance struct {
	Name     string
	Service  *ServiceFile
	MountDir string
	EP0      *os.File
	State    State
	PID      int
}

// Manager mounts, unmounts and tracks every live FunctionFS instance
// under one root directory, mirroring mount_ffs_instance and
// umount_ffs_instance's directory discipline:
// <mountRoot>/<service-name>/<instance-name>.
type Manager struct {
	mountRoot string
	mount     func(instanceName, dir string) error
	unmount   func(dir string) error

	mu        sync.Mutex
	instances map[string]*Instance // keyed by "<service>/<instance>"
}

// NewManager returns a Manager rooted at mountRoot, backed by the
// platform's real functionfs mount/unmount syscalls.
func NewManager(mountRoot string) *Manager {
	return &Manager{
		mountRoot: mountRoot,
		mount:     mountFunctionFS,
		unmount:   unmountFunctionFS,
		instances: make(map[string]*Instance),
	}
}

// NewManagerWithMounter returns a Manager using custom mount/unmount
// functions in place of the real functionfs syscalls, for tests that
// exercise instance bookkeeping without a kernel that supports
// FunctionFS.
func NewManagerWithMounter(mountRoot string, mount func(instanceName, dir string) error, unmount func(dir string) error) *Manager {
	return &Manager{mountRoot: mountRoot, mount: mount, unmount: unmount, instances: make(map[string]*Instance)}
}

func instanceKey(serviceName, instanceName string) string {
	return serviceName + "/" + instanceName
}

// Prepare mounts a new instance of sf under instanceName, opens ep0,
// and writes the descriptor and strings blocks, leaving the instance
// in StateReady. On any failure it unwinds everything it already did,
// matching gd_ffs_prepare_instance's full-unwind-on-failure discipline.
func (m *Manager) Prepare(sf *ServiceFile, instanceName string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceKey(sf.Name, instanceName)
	if _, exists := m.instances[key]; exists {
		return nil, gadgeterr.New("Prepare", gadgeterr.Exist, nil)
	}

	dir := filepath.Join(m.mountRoot, sf.Name, instanceName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, gadgeterr.FromErr("Prepare mkdir", err)
	}

	if err := m.mount(instanceName, dir); err != nil {
		os.Remove(dir)
		return nil, fmt.Errorf("mount functionfs instance %s: %w", instanceName, err)
	}

	ep0, err := os.OpenFile(filepath.Join(dir, "ep0"), os.O_RDWR, 0)
	if err != nil {
		m.unmount(dir)
		os.Remove(dir)
		return nil, gadgeterr.FromErr("Prepare open ep0", err)
	}

	fsDesc, hsDesc, err := sf.Descriptors.Build()
	if err != nil {
		ep0.Close()
		m.unmount(dir)
		os.Remove(dir)
		return nil, err
	}
	descBlock, err := EncodeDescriptors(fsDesc, hsDesc, nil)
	if err != nil {
		ep0.Close()
		m.unmount(dir)
		os.Remove(dir)
		return nil, err
	}
	if _, err := ep0.Write(descBlock); err != nil {
		ep0.Close()
		m.unmount(dir)
		os.Remove(dir)
		return nil, gadgeterr.FromErr("Prepare write descriptors", err)
	}

	langs, err := sf.LangStringsFromConfig()
	if err != nil {
		ep0.Close()
		m.unmount(dir)
		os.Remove(dir)
		return nil, err
	}
	strBlock := EncodeStrings(langs)
	if _, err := ep0.Write(strBlock); err != nil {
		ep0.Close()
		m.unmount(dir)
		os.Remove(dir)
		return nil, gadgeterr.FromErr("Prepare write strings", err)
	}

	inst := &Instance{
		Name:     instanceName,
		Service:  sf,
		MountDir: dir,
		EP0:      ep0,
		State:    StateReady,
	}
	m.instances[key] = inst
	return inst, nil
}

// Lookup returns the named instance, if tracked.
func (m *Manager) Lookup(serviceName, instanceName string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceKey(serviceName, instanceName)]
	return inst, ok
}

// Teardown unmounts and removes inst, closing ep0 first. It removes
// the per-instance directory, and then the per-service directory too
// if that is now empty, matching umount_ffs_instance's recursive
// rmdir-if-empty cleanup.
func (m *Manager) Teardown(inst *Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := instanceKey(inst.Service.Name, inst.Name)
	delete(m.instances, key)

	if inst.EP0 != nil {
		inst.EP0.Close()
	}
	if err := m.unmount(inst.MountDir); err != nil {
		return fmt.Errorf("unmount functionfs instance %s: %w", inst.Name, err)
	}
	if err := os.Remove(inst.MountDir); err != nil {
		return gadgeterr.FromErr("Teardown rmdir instance", err)
	}

	serviceDir := filepath.Dir(inst.MountDir)
	entries, err := os.ReadDir(serviceDir)
	if err == nil && len(entries) == 0 {
		os.Remove(serviceDir)
	}
	return nil
}

// ApplyEvent advances inst's state for ev and reports whether ev is
// the instance's configured activation event on an instance that
// isn't already running — the signal the child-launch pipeline uses
// to know it's time to run the child. The RUNNING state itself is
// only ever set by MarkRunning, once the child has actually been
// forked.
func (inst *Instance) ApplyEvent(ev EventType) (shouldActivate bool, err error) {
	activation, err := inst.Service.ActivationEventType()
	if err != nil {
		return false, err
	}
	wasRunning := inst.State == StateRunning
	inst.State = inst.State.Advance(ev)
	return ev == activation && !wasRunning, nil
}

// MarkRunning records that the instance's child process has been
// launched with pid and closes ep0, which the parent no longer needs
// once the child owns the endpoint fds it was handed.
func (inst *Instance) MarkRunning(pid int) {
	inst.State = StateRunning
	inst.PID = pid
	if inst.EP0 != nil {
		inst.EP0.Close()
		inst.EP0 = nil
	}
}

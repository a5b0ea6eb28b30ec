package ffs

import (
	"fmt"
	"sync"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// FuncType is the FunctionFS Function Type Payload: a registered
// function type backed by one declarative ServiceFile, responsible
// for creating and tearing down FunctionFS instances of that service.
// It enforces allow_multiple itself since the generic registry only
// tracks a refcount, not an exclusivity policy.
type FuncType struct {
	service *ServiceFile
	manager *Manager

	mu        sync.Mutex
	instances map[string]*Instance // by instance name
}

// NewFuncType returns a Type for the given service file, backed by
// manager for the actual mount/unmount work.
func NewFuncType(service *ServiceFile, manager *Manager) *FuncType {
	return &FuncType{service: service, manager: manager, instances: make(map[string]*Instance)}
}

func (t *FuncType) Name() string { return t.service.Name }

// CreateInstance creates a new FunctionFS instance. If the service
// does not allow_multiple, a second instance is refused with Exist,
// matching gd_ref_gd_ffs_func_type's allow_multiple check.
func (t *FuncType) CreateInstance(gadget, instance string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.instances) > 0 && !t.service.AllowMultiple {
		return gadgeterr.New("CreateInstance", gadgeterr.Exist,
			fmt.Errorf("function type %s does not allow multiple instances", t.service.Name))
	}

	inst, err := t.manager.Prepare(t.service, instance)
	if err != nil {
		return fmt.Errorf("create ffs function %s.%s: %w", t.service.Name, instance, err)
	}
	t.instances[instance] = inst
	return nil
}

func (t *FuncType) RemoveInstance(gadget, instance string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	inst, ok := t.instances[instance]
	if !ok {
		return gadgeterr.New("RemoveInstance", gadgeterr.NotFound, nil)
	}
	if err := t.manager.Teardown(inst); err != nil {
		return fmt.Errorf("remove ffs function %s.%s: %w", t.service.Name, instance, err)
	}
	delete(t.instances, instance)
	return nil
}

// Instance returns a live instance of this type by name.
func (t *FuncType) Instance(name string) (*Instance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instances[name]
	return inst, ok
}

// InstanceCount reports how many instances of this type are currently
// live.
func (t *FuncType) InstanceCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.instances)
}

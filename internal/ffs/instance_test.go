package ffs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// fakeMount creates ep0 and a couple of data endpoint files in dir so
// tests can exercise Manager/FuncType without a real FunctionFS-capable
// kernel.
func fakeMount(instanceName, dir string) error {
	for _, name := range []string{"ep0", "ep1", "ep2"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			return err
		}
	}
	return nil
}

// fakeUnmount removes the endpoint files fakeMount created, leaving
// the directory empty the way a real functionfs unmount does.
func fakeUnmount(dir string) error {
	for _, name := range []string{"ep0", "ep1", "ep2"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func testService(t *testing.T) *ServiceFile {
	t.Helper()
	return &ServiceFile{
		Name:            "acquire",
		ExecPath:        "/bin/true",
		ActivationEvent: "enable",
		Strings: []StringsEntry{
			{Lang: "0409", Str: []string{"p", "m", "s"}},
		},
	}
}

func TestManagerPrepareTeardown(t *testing.T) {
	root := t.TempDir()
	m := NewManagerWithMounter(root, fakeMount, fakeUnmount)
	sf := testService(t)

	inst, err := m.Prepare(sf, "i0")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if inst.State != StateReady {
		t.Fatalf("State = %v, want Ready", inst.State)
	}
	if _, ok := m.Lookup("acquire", "i0"); !ok {
		t.Fatal("instance should be tracked")
	}

	if err := m.Teardown(inst); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if _, ok := m.Lookup("acquire", "i0"); ok {
		t.Fatal("instance should be gone after Teardown")
	}
}

func TestManagerPrepareDuplicateFails(t *testing.T) {
	root := t.TempDir()
	m := NewManagerWithMounter(root, fakeMount, fakeUnmount)
	sf := testService(t)

	if _, err := m.Prepare(sf, "i0"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Prepare(sf, "i0"); gadgeterr.KindOf(err) != gadgeterr.Exist {
		t.Fatalf("duplicate Prepare: got %v, want Exist", err)
	}
}

func TestFuncTypeAllowMultiple(t *testing.T) {
	root := t.TempDir()
	m := NewManagerWithMounter(root, fakeMount, fakeUnmount)
	sf := testService(t)
	sf.AllowMultiple = false
	ft := NewFuncType(sf, m)

	if err := ft.CreateInstance("g1", "i0"); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if err := ft.CreateInstance("g1", "i1"); gadgeterr.KindOf(err) != gadgeterr.Exist {
		t.Fatalf("second CreateInstance without allow_multiple: got %v, want Exist", err)
	}

	if err := ft.RemoveInstance("g1", "i0"); err != nil {
		t.Fatalf("RemoveInstance: %v", err)
	}
	if err := ft.CreateInstance("g1", "i1"); err != nil {
		t.Fatalf("CreateInstance after removal: %v", err)
	}
}

func TestFuncTypeAllowMultipleTrue(t *testing.T) {
	root := t.TempDir()
	m := NewManagerWithMounter(root, fakeMount, fakeUnmount)
	sf := testService(t)
	sf.AllowMultiple = true
	ft := NewFuncType(sf, m)

	if err := ft.CreateInstance("g1", "i0"); err != nil {
		t.Fatal(err)
	}
	if err := ft.CreateInstance("g1", "i1"); err != nil {
		t.Fatalf("CreateInstance with allow_multiple: %v", err)
	}
	if ft.InstanceCount() != 2 {
		t.Fatalf("InstanceCount = %d, want 2", ft.InstanceCount())
	}
}

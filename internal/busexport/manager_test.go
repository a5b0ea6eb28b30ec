package busexport

import (
	"testing"

	"github.com/gadgetd/gadgetd/internal/config"
	"github.com/gadgetd/gadgetd/internal/eventpump"
	"github.com/gadgetd/gadgetd/internal/functiontype"
	"github.com/gadgetd/gadgetd/internal/gadgetcore"
	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// fakeBackend is an in-memory stand-in for kernel.Backend so the
// D-Bus-facing handlers can be exercised without a real ConfigFS tree.
type fakeBackend struct {
	gadgets map[string]bool
	bound   map[string]string // gadget -> udc
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{gadgets: map[string]bool{}, bound: map[string]string{}}
}

func (f *fakeBackend) CreateGadget(name string) error { f.gadgets[name] = true; return nil }
func (f *fakeBackend) RemoveGadget(name string) error  { delete(f.gadgets, name); return nil }
func (f *fakeBackend) SetGadgetAttr(gadget, attr string, val int) error { return nil }
func (f *fakeBackend) GetGadgetAttr(gadget, attr string) (int, error)   { return 0, nil }
func (f *fakeBackend) SetGadgetString(gadget string, lang int, key, val string) error { return nil }
func (f *fakeBackend) CreateConfig(gadget, label string, id int) error                { return nil }
func (f *fakeBackend) RemoveConfig(gadget, label string, id int) error                { return nil }
func (f *fakeBackend) SetConfigAttr(gadget, label string, id int, attr string, val int) error {
	return nil
}
func (f *fakeBackend) SetConfigString(gadget, label string, id int, lang int, val string) error {
	return nil
}
func (f *fakeBackend) LinkFunction(gadget, configLabel string, configID int, funcDirName string) error {
	return nil
}
func (f *fakeBackend) UnlinkFunction(gadget, configLabel string, configID int, funcDirName string) error {
	return nil
}
func (f *fakeBackend) CreateKernelFunction(gadget, funcType, instance string) error { return nil }
func (f *fakeBackend) RemoveKernelFunction(gadget, funcType, instance string) error { return nil }
func (f *fakeBackend) SetFunctionAttr(gadget, funcDirName, attr, val string) error  { return nil }

func (f *fakeBackend) ListUDCs() ([]string, error) { return []string{"dummy_udc.0"}, nil }
func (f *fakeBackend) BindUDC(gadget, udc string) error {
	if !f.gadgets[gadget] {
		return gadgeterr.New("BindUDC", gadgeterr.NotFound, nil)
	}
	f.bound[gadget] = udc
	return nil
}
func (f *fakeBackend) UnbindUDC(gadget string) error { delete(f.bound, gadget); return nil }
func (f *fakeBackend) BoundUDC(gadget string) (string, error) { return f.bound[gadget], nil }

func newTestService(t *testing.T) (*Service, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	om := gadgetcore.NewObjectManager()
	for _, name := range []string{"dummy_udc.0"} {
		om.AddUDC(name)
	}
	registry := functiontype.NewRegistry()
	pump, err := eventpump.New()
	if err != nil {
		t.Fatalf("eventpump.New: %v", err)
	}
	t.Cleanup(func() { pump.Close() })
	svc := NewService(nil, config.Default(), backend, om, registry, nil, pump)
	return svc, backend
}

func TestCreateGadget(t *testing.T) {
	svc, backend := newTestService(t)

	if err := svc.CreateGadget("g1"); err != nil {
		t.Fatalf("CreateGadget: %v", err)
	}
	if !backend.gadgets["g1"] {
		t.Fatal("expected kernel gadget to exist")
	}
	if err := svc.CreateGadget("g1"); err == nil {
		t.Fatal("expected Exist error on duplicate CreateGadget")
	}
}

func TestCreateGadgetRejectsInvalidName(t *testing.T) {
	svc, backend := newTestService(t)

	if err := svc.CreateGadget(""); err == nil {
		t.Fatal("expected error for empty gadget name")
	}
	if len(backend.gadgets) != 0 {
		t.Fatal("expected no kernel gadget created for invalid name")
	}
}

func TestEnableDisableGadget(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.CreateGadget("g1"); err != nil {
		t.Fatal(err)
	}

	ok, err := svc.EnableGadget("dummy_udc.0", gadgetcore.GadgetPath("g1"))
	if err != nil || !ok {
		t.Fatalf("EnableGadget = %v, %v, want true, nil", ok, err)
	}
	path, known := svc.om.EnabledGadgetPath("dummy_udc.0")
	if !known || path != gadgetcore.GadgetPath("g1") {
		t.Fatalf("enabled-gadget = %q, %v", path, known)
	}

	ok, err = svc.DisableGadget("dummy_udc.0")
	if err != nil || !ok {
		t.Fatalf("DisableGadget = %v, %v, want true, nil", ok, err)
	}
	path, _ = svc.om.EnabledGadgetPath("dummy_udc.0")
	if path != "" {
		t.Fatalf("enabled-gadget = %q, want empty after disable", path)
	}

	if _, err := svc.DisableGadget("dummy_udc.0"); err == nil {
		t.Fatal("expected second DisableGadget to fail with No gadget enabled")
	}
}

func TestEnableGadgetUnknownUDC(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.CreateGadget("g1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.EnableGadget("nope", gadgetcore.GadgetPath("g1")); err == nil {
		t.Fatal("expected error for unknown UDC")
	}
}

package functiontype

import (
	"testing"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

type fakeType struct {
	name         string
	unregistered bool
}

func (f *fakeType) Name() string                               { return f.name }
func (f *fakeType) CreateInstance(gadget, instance string) error { return nil }
func (f *fakeType) RemoveInstance(gadget, instance string) error { return nil }
func (f *fakeType) OnUnregister()                               { f.unregistered = true }

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	ft := &fakeType{name: "acm"}
	if err := r.Register(ft); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakeType{name: "acm"}); gadgeterr.KindOf(err) != gadgeterr.Exist {
		t.Fatalf("duplicate Register: got %v, want Exist", err)
	}
}

func TestUnregisterRefusesWhileReferenced(t *testing.T) {
	r := NewRegistry()
	ft := &fakeType{name: "ecm"}
	if err := r.Register(ft); err != nil {
		t.Fatal(err)
	}
	if err := r.Ref("ecm"); err != nil {
		t.Fatal(err)
	}
	if err := r.Unregister("ecm"); gadgeterr.KindOf(err) != gadgeterr.Exist {
		t.Fatalf("Unregister while referenced: got %v, want Exist", err)
	}
	r.Unref("ecm")
	if err := r.Unregister("ecm"); err != nil {
		t.Fatalf("Unregister after Unref: %v", err)
	}
	if !ft.unregistered {
		t.Fatal("OnUnregister not called")
	}
}

func TestUnregisterNotFound(t *testing.T) {
	r := NewRegistry()
	if err := r.Unregister("missing"); gadgeterr.KindOf(err) != gadgeterr.NotFound {
		t.Fatalf("Unregister missing: got %v, want NotFound", err)
	}
}

func TestUnregisterAllForcesRefcountedTypes(t *testing.T) {
	r := NewRegistry()
	ft := &fakeType{name: "rndis"}
	r.Register(ft)
	r.Ref("rndis")
	r.Ref("rndis")

	r.UnregisterAll()

	if _, ok := r.Lookup("rndis"); ok {
		t.Fatal("type should be gone after UnregisterAll")
	}
	if !ft.unregistered {
		t.Fatal("OnUnregister not called by UnregisterAll")
	}
}

func TestListNamesSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeType{name: "b"})
	r.Register(&fakeType{name: "a"})
	names := r.ListNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("ListNames = %v", names)
	}
	r.Register(&fakeType{name: "c"})
	if len(names) != 2 {
		t.Fatalf("snapshot should not observe later registration, got %v", names)
	}
}

func TestDetermineGroup(t *testing.T) {
	cases := map[string]Group{
		"acm": GroupSerial, "gser": GroupSerial, "obex": GroupSerial,
		"ecm": GroupNet, "subset": GroupNet, "ncm": GroupNet, "eem": GroupNet, "rndis": GroupNet,
		"phonet": GroupPhonet,
		"ffs":    GroupFFS,
		"mass_storage": GroupOther,
	}
	for name, want := range cases {
		if got := DetermineGroup(name); got != want {
			t.Errorf("DetermineGroup(%q) = %v, want %v", name, got, want)
		}
	}
}

package gadgetcore

import "testing"

func TestTableInsertGetRemove(t *testing.T) {
	var tbl Table[string]
	h := tbl.Insert("a")
	if v, ok := tbl.Get(h); !ok || v != "a" {
		t.Fatalf("Get(%v) = %q, %v", h, v, ok)
	}
	if !tbl.Remove(h) {
		t.Fatalf("Remove failed")
	}
	if _, ok := tbl.Get(h); ok {
		t.Fatalf("Get after Remove should fail")
	}
}

func TestTableGenerationPreventsStaleHandle(t *testing.T) {
	var tbl Table[int]
	h1 := tbl.Insert(1)
	tbl.Remove(h1)
	h2 := tbl.Insert(2)
	if h1.Slot != h2.Slot {
		t.Fatalf("expected slot reuse, got %d and %d", h1.Slot, h2.Slot)
	}
	if h1 == h2 {
		t.Fatalf("expected different handles after generation bump")
	}
	if _, ok := tbl.Get(h1); ok {
		t.Fatalf("stale handle h1 should not resolve")
	}
	if v, ok := tbl.Get(h2); !ok || v != 2 {
		t.Fatalf("Get(h2) = %v, %v", v, ok)
	}
}

func TestObjectManagerGadgetLifecycle(t *testing.T) {
	om := NewObjectManager()
	gh := om.AddGadget("g1")

	if got, ok := om.GadgetByName("g1"); !ok || got != gh {
		t.Fatalf("GadgetByName = %v, %v", got, ok)
	}

	ch, ok := om.AddConfiguration(gh, "c", 1)
	if !ok {
		t.Fatal("AddConfiguration failed")
	}
	fh, ok := om.AddFunction(gh, KernelFunctionKind, "acm", "usb0")
	if !ok {
		t.Fatal("AddFunction failed")
	}
	if !om.LinkFunction(ch, fh) {
		t.Fatal("LinkFunction failed")
	}

	c, _ := om.Configuration(ch)
	if len(c.Linked) != 1 || c.Linked[0] != fh {
		t.Fatalf("Configuration.Linked = %v", c.Linked)
	}

	if !om.RemoveGadget(gh) {
		t.Fatal("RemoveGadget failed")
	}
	if _, ok := om.Gadget(gh); ok {
		t.Fatal("gadget should be gone")
	}
	if _, ok := om.Configuration(ch); ok {
		t.Fatal("configuration should be gone with its gadget")
	}
	if _, ok := om.GadgetByName("g1"); ok {
		t.Fatal("name index should be cleared")
	}
}

func TestObjectManagerUnlinkOnFunctionRemoval(t *testing.T) {
	om := NewObjectManager()
	gh := om.AddGadget("g1")
	ch, _ := om.AddConfiguration(gh, "c", 1)
	fh, _ := om.AddFunction(gh, FFSFunctionKind, "ffs", "svc")
	om.LinkFunction(ch, fh)

	if !om.RemoveFunction(fh) {
		t.Fatal("RemoveFunction failed")
	}
	c, _ := om.Configuration(ch)
	if len(c.Linked) != 0 {
		t.Fatalf("expected function unlinked on removal, got %v", c.Linked)
	}
}

func TestObjectManagerUDCEnableDisable(t *testing.T) {
	om := NewObjectManager()
	om.AddUDC("dummy_udc.0")

	if _, ok := om.UDCByName("dummy_udc.0"); !ok {
		t.Fatal("expected UDC to be tracked")
	}
	if names := om.ListUDCNames(); len(names) != 1 || names[0] != "dummy_udc.0" {
		t.Fatalf("ListUDCNames = %v", names)
	}

	path := GadgetPath("g1")
	if !om.MarkUDCEnabled("dummy_udc.0", path) {
		t.Fatal("MarkUDCEnabled failed")
	}
	got, ok := om.EnabledGadgetPath("dummy_udc.0")
	if !ok || got != path {
		t.Fatalf("EnabledGadgetPath = %q, %v, want %q, true", got, ok, path)
	}

	if err := om.MarkUDCDisabled("dummy_udc.0"); err != nil {
		t.Fatalf("MarkUDCDisabled: %v", err)
	}
	got, _ = om.EnabledGadgetPath("dummy_udc.0")
	if got != "" {
		t.Fatalf("EnabledGadgetPath after disable = %q, want empty", got)
	}

	if err := om.MarkUDCDisabled("dummy_udc.0"); err == nil {
		t.Fatal("expected error disabling an already-disabled UDC")
	}
}

func TestGadgetNameFromPath(t *testing.T) {
	name, ok := GadgetNameFromPath(GadgetPath("g1"))
	if !ok || name != "g1" {
		t.Fatalf("GadgetNameFromPath = %q, %v", name, ok)
	}
	if _, ok := GadgetNameFromPath("/not/a/gadget/path"); ok {
		t.Fatal("expected no match for an unrelated path")
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"g1", "usb_gadget", "ECM0"}
	for _, v := range valid {
		if err := ValidateName(v); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", v, err)
		}
	}
	invalid := []string{"", "has space", "slash/here", "dot.here"}
	for _, v := range invalid {
		if err := ValidateName(v); err == nil {
			t.Errorf("ValidateName(%q) = nil, want error", v)
		}
	}
}

func TestSanitizeReplacesDisallowedChars(t *testing.T) {
	cases := map[string]string{
		"g1":         "g1",
		"usb gadget": "usb_gadget",
		"a.b-c":      "a_b_c",
	}
	for in, want := range cases {
		got, err := Sanitize(in)
		if err != nil {
			t.Fatalf("Sanitize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
		if len(got) != len(in) {
			t.Errorf("Sanitize(%q) changed length: %q", in, got)
		}
	}
	if _, err := Sanitize("has/slash"); err == nil {
		t.Error("Sanitize should reject an embedded '/'")
	}
	if _, err := Sanitize(""); err == nil {
		t.Error("Sanitize should reject the empty string")
	}
}

func TestFunctionPath(t *testing.T) {
	path, err := FunctionPath("g1", "mass storage", "lun.0")
	if err != nil {
		t.Fatalf("FunctionPath: %v", err)
	}
	want := "/org/usb/Gadget/g1/Function/mass_storage/lun_0"
	if path != want {
		t.Fatalf("FunctionPath = %q, want %q", path, want)
	}
}

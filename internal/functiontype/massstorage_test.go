package functiontype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gadgetd/gadgetd/internal/kernel"
)

// fakeBackend is a minimal in-memory kernel.Backend recording the
// calls CreateInstance makes, so mass_storage wiring can be tested
// without a real ConfigFS tree.
type fakeBackend struct {
	created   map[string]bool
	funcAttrs map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{created: map[string]bool{}, funcAttrs: map[string]string{}}
}

func (f *fakeBackend) CreateGadget(name string) error { return nil }
func (f *fakeBackend) RemoveGadget(name string) error { return nil }
func (f *fakeBackend) SetGadgetAttr(gadget, attr string, val int) error { return nil }
func (f *fakeBackend) GetGadgetAttr(gadget, attr string) (int, error)  { return 0, nil }
func (f *fakeBackend) SetGadgetString(gadget string, lang int, key, val string) error { return nil }
func (f *fakeBackend) CreateConfig(gadget, label string, id int) error               { return nil }
func (f *fakeBackend) RemoveConfig(gadget, label string, id int) error               { return nil }
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
func (f *fakeBackend) CreateKernelFunction(gadget, funcType, instance string) error {
	f.created[funcType+"."+instance] = true
	return nil
}
func (f *fakeBackend) RemoveKernelFunction(gadget, funcType, instance string) error {
	delete(f.created, funcType+"."+instance)
	return nil
}
func (f *fakeBackend) SetFunctionAttr(gadget, funcDirName, attr, val string) error {
	f.funcAttrs[funcDirName+"/"+attr] = val
	return nil
}
func (f *fakeBackend) ListUDCs() ([]string, error)            { return nil, nil }
func (f *fakeBackend) BindUDC(gadget, udc string) error        { return nil }
func (f *fakeBackend) UnbindUDC(gadget string) error           { return nil }
func (f *fakeBackend) BoundUDC(gadget string) (string, error)  { return "", nil }

var _ kernel.Backend = (*fakeBackend)(nil)

func TestKernelFuncMassStorageFormatsBackingImage(t *testing.T) {
	root := t.TempDir()
	backend := newFakeBackend()
	k := NewKernelFunc("mass_storage", backend, root, 1)

	if err := k.CreateInstance("g1", "lun0"); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	imgPath := backingImagePath(root, "g1", "lun0")
	if _, err := os.Stat(imgPath); err != nil {
		t.Fatalf("expected backing image at %s: %v", imgPath, err)
	}
	if !backend.created["mass_storage.lun0"] {
		t.Fatal("expected CreateKernelFunction to be called")
	}
	if got := backend.funcAttrs["mass_storage.lun0/lun.0/file"]; got != imgPath {
		t.Fatalf("lun.0/file = %q, want %q", got, imgPath)
	}
}

func TestKernelFuncMassStorageReusesExistingImage(t *testing.T) {
	root := t.TempDir()
	backend := newFakeBackend()
	imgPath := backingImagePath(root, "g1", "lun0")
	if err := os.MkdirAll(filepath.Dir(imgPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(imgPath, []byte("not a real fat32 image"), 0644); err != nil {
		t.Fatal(err)
	}

	k := NewKernelFunc("mass_storage", backend, root, 1)
	if err := k.CreateInstance("g1", "lun0"); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	data, err := os.ReadFile(imgPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "not a real fat32 image" {
		t.Fatal("existing backing image should not be reformatted")
	}
}

func TestKernelFuncNonMassStorageSkipsImage(t *testing.T) {
	root := t.TempDir()
	backend := newFakeBackend()
	k := NewKernelFunc("acm", backend, root, 1)

	if err := k.CreateInstance("g1", "i0"); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files under image root for non-mass_storage function, got %v", entries)
	}
}

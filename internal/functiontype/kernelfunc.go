package functiontype

import (
	"fmt"

	"github.com/gadgetd/gadgetd/internal/kernel"
)

// KernelFunc is a Type backed entirely by an in-kernel USB function
// driver: creating an instance is just mkdir under
// usb_gadget/<g>/functions/<name>.<instance>. A mass_storage instance
// additionally gets a backing image file formatted on demand, via
// imageRoot/imageSizeMB.
type KernelFunc struct {
	name        string
	group       Group
	backend     kernel.Backend
	imageRoot   string
	imageSizeMB int64
}

// NewKernelFunc returns a Type wrapping an already-probed kernel
// function driver name. imageRoot and imageSizeMB are only consulted
// for the mass_storage driver.
func NewKernelFunc(name string, backend kernel.Backend, imageRoot string, imageSizeMB int64) *KernelFunc {
	return &KernelFunc{
		name: name, group: DetermineGroup(name), backend: backend,
		imageRoot: imageRoot, imageSizeMB: imageSizeMB,
	}
}

func (k *KernelFunc) Name() string { return k.name }
func (k *KernelFunc) Group() Group { return k.group }

func (k *KernelFunc) CreateInstance(gadget, instance string) error {
	if k.name == massStorageFuncName {
		imgPath := backingImagePath(k.imageRoot, gadget, instance)
		if err := ensureBackingImage(imgPath, k.imageSizeMB); err != nil {
			return fmt.Errorf("prepare mass_storage backing image for %s.%s: %w", k.name, instance, err)
		}
		if err := k.backend.CreateKernelFunction(gadget, k.name, instance); err != nil {
			return fmt.Errorf("create kernel function %s.%s: %w", k.name, instance, err)
		}
		if err := k.backend.SetFunctionAttr(gadget, k.name+"."+instance, "lun.0/file", imgPath); err != nil {
			return fmt.Errorf("set lun.0/file on %s.%s: %w", k.name, instance, err)
		}
		return nil
	}

	if err := k.backend.CreateKernelFunction(gadget, k.name, instance); err != nil {
		return fmt.Errorf("create kernel function %s.%s: %w", k.name, instance, err)
	}
	return nil
}

func (k *KernelFunc) RemoveInstance(gadget, instance string) error {
	if err := k.backend.RemoveKernelFunction(gadget, k.name, instance); err != nil {
		return fmt.Errorf("remove kernel function %s.%s: %w", k.name, instance, err)
	}
	return nil
}

// supportedKernelFuncs is the allowlist of kernel function driver
// names gadgetd is able to drive through ConfigFS, mirroring the set
// usbg_lookup_function_type recognizes; a name discovered during
// probing that isn't in this set is skipped, not registered, per
// gd_register_kernel_funcs's "log and continue" handling of
// unsupported functions.
var supportedKernelFuncs = map[string]bool{
	"gser": true, "acm": true, "obex": true,
	"ecm": true, "subset": true, "ncm": true, "eem": true, "rndis": true,
	"phonet": true,
	"mass_storage": true, "midi": true, "hid": true,
	"uac1": true, "uac2": true, "uvc": true,
	"printer": true, "loopback": true, "sourcesink": true,
}

// IsSupportedKernelFunc reports whether name is a driver gadgetd can
// register a KernelFunc for.
func IsSupportedKernelFunc(name string) bool {
	return supportedKernelFuncs[name]
}

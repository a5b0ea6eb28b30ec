//go:build !linux

package kernel

import "github.com/gadgetd/gadgetd/internal/gadgeterr"

// backendOther is the non-Linux stand-in: ConfigFS and the FunctionFS
// gadget subsystem only exist on Linux, so every operation reports
// NotSupported rather than touching the filesystem. It exists so the
// rest of the daemon (and its tests) build and run on a development
// machine that isn't Linux, the same role the teacher's
// usb_gadget_noop.go plays.
type backendOther struct{}

func newBackend(configFSRoot, udcRoot string) Backend {
	return &backendOther{}
}

func notSupported(op string) error {
	return gadgeterr.New(op, gadgeterr.NotSupported, nil)
}

func (b *backendOther) CreateGadget(name string) error { return notSupported("CreateGadget") }
func (b *backendOther) RemoveGadget(name string) error { return notSupported("RemoveGadget") }
func (b *backendOther) SetGadgetAttr(gadget, attr string, val int) error {
	return notSupported("SetGadgetAttr")
}
func (b *backendOther) GetGadgetAttr(gadget, attr string) (int, error) {
	return 0, notSupported("GetGadgetAttr")
}
func (b *backendOther) SetGadgetString(gadget string, lang int, key, val string) error {
	return notSupported("SetGadgetString")
}
func (b *backendOther) CreateConfig(gadget, label string, id int) error {
	return notSupported("CreateConfig")
}
func (b *backendOther) RemoveConfig(gadget, label string, id int) error {
	return notSupported("RemoveConfig")
}
func (b *backendOther) SetConfigAttr(gadget, label string, id int, attr string, val int) error {
	return notSupported("SetConfigAttr")
}
func (b *backendOther) SetConfigString(gadget, label string, id int, lang int, val string) error {
	return notSupported("SetConfigString")
}
func (b *backendOther) LinkFunction(gadget, configLabel string, configID int, funcDirName string) error {
	return notSupported("LinkFunction")
}
func (b *backendOther) UnlinkFunction(gadget, configLabel string, configID int, funcDirName string) error {
	return notSupported("UnlinkFunction")
}
func (b *backendOther) CreateKernelFunction(gadget, funcType, instance string) error {
	return notSupported("CreateKernelFunction")
}
func (b *backendOther) RemoveKernelFunction(gadget, funcType, instance string) error {
	return notSupported("RemoveKernelFunction")
}
func (b *backendOther) SetFunctionAttr(gadget, funcDirName, attr, val string) error {
	return notSupported("SetFunctionAttr")
}
func (b *backendOther) ListUDCs() ([]string, error) { return nil, notSupported("ListUDCs") }
func (b *backendOther) BindUDC(gadget, udc string) error {
	return notSupported("BindUDC")
}
func (b *backendOther) UnbindUDC(gadget string) error { return notSupported("UnbindUDC") }
func (b *backendOther) BoundUDC(gadget string) (string, error) {
	return "", notSupported("BoundUDC")
}

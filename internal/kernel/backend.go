package kernel

// Backend is everything gadgetcore and functiontype need from the
// kernel interface. It is implemented for real on Linux
// (backendLinux) and with an all-NotSupported stub on every other
// platform (backend_other.go), following the same factory split the
// teacher uses for its UsbGadget interface.
type Backend interface {
	CreateGadget(name string) error
	RemoveGadget(name string) error
	SetGadgetAttr(gadget, attr string, val int) error
	GetGadgetAttr(gadget, attr string) (int, error)
	SetGadgetString(gadget string, lang int, key, val string) error

	CreateConfig(gadget, label string, id int) error
	RemoveConfig(gadget, label string, id int) error
	SetConfigAttr(gadget, label string, id int, attr string, val int) error
	SetConfigString(gadget, label string, id int, lang int, val string) error

	LinkFunction(gadget, configLabel string, configID int, funcDirName string) error
	UnlinkFunction(gadget, configLabel string, configID int, funcDirName string) error

	CreateKernelFunction(gadget, funcType, instance string) error
	RemoveKernelFunction(gadget, funcType, instance string) error
	SetFunctionAttr(gadget, funcDirName, attr, val string) error

	ListUDCs() ([]string, error)
	BindUDC(gadget, udc string) error
	UnbindUDC(gadget string) error
	BoundUDC(gadget string) (string, error)
}

// New returns the platform Backend for the given configfs and udc
// roots.
func New(configFSRoot, udcRoot string) Backend {
	return newBackend(configFSRoot, udcRoot)
}

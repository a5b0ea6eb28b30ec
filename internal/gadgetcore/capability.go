package gadgetcore

// Capability interfaces for function types and gadgets. Only
// FunctionManagement is used in this repository (functiontype.Type
// embeds it); HasDescriptors, ConfigManagement and UDCControl are
// declared contracts that no type here implements and nothing queries.

// HasDescriptors describes a function type whose instances load
// binary descriptor/string blocks at creation time. The ffs package
// does not implement it; it loads descriptors from service files.
type HasDescriptors interface {
	LoadDescriptors(instance string, fsDesc, hsDesc, ssDesc []byte) error
	LoadStrings(instance string, langs map[int][]string) error
}

// ConfigManagement describes something that can be linked into and
// unlinked from a Configuration. No type implements it; linking is
// done by the kernel backend's LinkFunction/UnlinkFunction.
type ConfigManagement interface {
	Link(gadget, config, instance string) error
	Unlink(gadget, config, instance string) error
}

// FunctionManagement is implemented by every Function Type: it can
// create and remove instances of itself.
type FunctionManagement interface {
	CreateInstance(gadget, instance string) error
	RemoveInstance(gadget, instance string) error
}

// UDCControl describes bind/unbind against a physical or virtual UDC.
// No type implements it (Gadget is a plain struct); binding is done by
// the kernel backend.
type UDCControl interface {
	Bind(udc string) error
	Unbind() error
	BoundUDC() (string, error)
}

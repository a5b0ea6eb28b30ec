package busexport

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"

	"github.com/gadgetd/gadgetd/internal/ffs"
	"github.com/gadgetd/gadgetd/internal/gadgetcore"
	"github.com/gadgetd/gadgetd/internal/gadgeterr"
	"github.com/gadgetd/gadgetd/internal/kernel"
)

// defaultGadgetStringKeys are the string keys given an empty-valued
// English (US) slot at gadget creation, per spec §4.1: even when the
// caller supplies no strings, the core still tells the kernel driver
// that strings are provided in English.
var defaultGadgetStringKeys = []string{"manufacturer", "product", "serialnumber"}

// ffsInstanceProvider is implemented by ffs.FuncType. A Type asserting
// this interface is FunctionFS-backed, so CreateFunction knows to wire
// its ep0 into the event pump instead of treating it as a plain
// kernel-driver function.
type ffsInstanceProvider interface {
	Instance(name string) (*ffs.Instance, bool)
}

// The methods below are exported on rootPath under managerIface by
// Service.Export. Every method follows godbus's convention for an
// exported method: ordinary Go arguments, with the final return value
// a *dbus.Error (nil on success).

// CreateGadget creates a new, empty usb_gadget directory, then
// materializes the default English (US) string slot with empty values
// per spec §4.1 even though the caller supplied none.
func (s *Service) CreateGadget(name string) *dbus.Error {
	if err := gadgetcore.ValidateName(name); err != nil {
		return asDBusError("CreateGadget", err)
	}
	if _, exists := s.om.GadgetByName(name); exists {
		return asDBusError("CreateGadget", gadgeterr.New("CreateGadget", gadgeterr.Exist, nil))
	}
	if err := s.backend.CreateGadget(name); err != nil {
		return asDBusError("CreateGadget", err)
	}
	for _, key := range defaultGadgetStringKeys {
		if err := s.backend.SetGadgetString(name, kernel.LangUSEng, key, ""); err != nil {
			s.backend.RemoveGadget(name)
			return asDBusError("CreateGadget", err)
		}
	}

	gh := s.om.AddGadget(name)
	if g, ok := s.om.Gadget(gh); ok {
		for _, key := range defaultGadgetStringKeys {
			g.Strings[key] = ""
		}
	}
	return nil
}

// RemoveGadget removes a gadget and every configuration and function
// it owns.
func (s *Service) RemoveGadget(name string) *dbus.Error {
	h, ok := s.om.GadgetByName(name)
	if !ok {
		return asDBusError("RemoveGadget", gadgeterr.New("RemoveGadget", gadgeterr.NotFound, nil))
	}
	if err := s.backend.RemoveGadget(name); err != nil {
		return asDBusError("RemoveGadget", err)
	}
	s.om.RemoveGadget(h)
	return nil
}

// ListGadgets returns the name of every live gadget.
func (s *Service) ListGadgets() ([]string, *dbus.Error) {
	names := make([]string, 0)
	for _, h := range s.om.ListGadgets() {
		g, ok := s.om.Gadget(h)
		if !ok {
			continue
		}
		names = append(names, g.Name)
	}
	return names, nil
}

// SetGadgetAttr sets one of the gadget's numeric device descriptor
// fields, named by its property key ("id-vendor", "id-product",
// "bcd-device", "bcd-usb", ...).
func (s *Service) SetGadgetAttr(gadget, attr string, value int32) *dbus.Error {
	h, ok := s.om.GadgetByName(gadget)
	if !ok {
		return asDBusError("SetGadgetAttr", gadgeterr.New("SetGadgetAttr", gadgeterr.NotFound, nil))
	}
	if err := s.backend.SetGadgetAttr(gadget, attr, int(value)); err != nil {
		return asDBusError("SetGadgetAttr", err)
	}
	if g, ok := s.om.Gadget(h); ok {
		g.Attrs[attr] = int(value)
	}
	return nil
}

// SetGadgetString sets one of the gadget's string descriptors
// (manufacturer, product, serialnumber) for a language.
func (s *Service) SetGadgetString(gadget string, lang int32, key, value string) *dbus.Error {
	h, ok := s.om.GadgetByName(gadget)
	if !ok {
		return asDBusError("SetGadgetString", gadgeterr.New("SetGadgetString", gadgeterr.NotFound, nil))
	}
	if err := s.backend.SetGadgetString(gadget, int(lang), key, value); err != nil {
		return asDBusError("SetGadgetString", err)
	}
	if g, ok := s.om.Gadget(h); ok {
		g.Strings[key] = value
	}
	return nil
}

// CreateConfig creates a configuration within a gadget.
func (s *Service) CreateConfig(gadget, label string, id int32) *dbus.Error {
	gh, ok := s.om.GadgetByName(gadget)
	if !ok {
		return asDBusError("CreateConfig", gadgeterr.New("CreateConfig", gadgeterr.NotFound, nil))
	}
	if err := s.backend.CreateConfig(gadget, label, int(id)); err != nil {
		return asDBusError("CreateConfig", err)
	}
	if _, ok := s.om.AddConfiguration(gh, label, int(id)); !ok {
		return asDBusError("CreateConfig", gadgeterr.New("CreateConfig", gadgeterr.OtherError, nil))
	}
	return nil
}

// EnableGadget binds the gadget named by gadgetPath to udcName,
// implementing §4.7's Enable: resolve the path to a gadget, bind it at
// the kernel, then record the path on the UDC. If recording the path
// fails after a successful bind, the bind is rolled back by disabling.
func (s *Service) EnableGadget(udcName, gadgetPath string) (bool, *dbus.Error) {
	if _, ok := s.om.UDCByName(udcName); !ok {
		return false, asDBusError("EnableGadget", gadgeterr.New("EnableGadget", gadgeterr.NotFound, nil))
	}
	name, ok := gadgetcore.GadgetNameFromPath(gadgetPath)
	if !ok {
		return false, asDBusError("EnableGadget", gadgeterr.New("EnableGadget", gadgeterr.BadValue, nil))
	}
	if _, ok := s.om.GadgetByName(name); !ok {
		return false, asDBusError("EnableGadget", gadgeterr.New("EnableGadget", gadgeterr.NotFound, nil))
	}
	if err := s.backend.BindUDC(name, udcName); err != nil {
		return false, asDBusError("EnableGadget", err)
	}
	if !s.om.MarkUDCEnabled(udcName, gadgetPath) {
		s.backend.UnbindUDC(name)
		return false, asDBusError("EnableGadget", gadgeterr.New("EnableGadget", gadgeterr.OtherError, nil))
	}
	return true, nil
}

// DisableGadget unbinds whatever gadget is currently enabled on
// udcName. A UDC with nothing enabled reports NotFound, surfaced to
// the caller as "No gadget enabled" per §4.7/§8 scenario 6.
func (s *Service) DisableGadget(udcName string) (bool, *dbus.Error) {
	path, ok := s.om.EnabledGadgetPath(udcName)
	if !ok {
		return false, asDBusError("DisableGadget", gadgeterr.New("DisableGadget", gadgeterr.NotFound, nil))
	}
	if path == "" {
		return false, asDBusError("DisableGadget", gadgeterr.New("DisableGadget", gadgeterr.NotFound, fmt.Errorf("No gadget enabled")))
	}
	name, _ := gadgetcore.GadgetNameFromPath(path)
	if err := s.backend.UnbindUDC(name); err != nil {
		return false, asDBusError("DisableGadget", err)
	}
	if err := s.om.MarkUDCDisabled(udcName); err != nil {
		return false, asDBusError("DisableGadget", err)
	}
	return true, nil
}

// ListUDCs returns every UDC snapshotted at startup.
func (s *Service) ListUDCs() ([]string, *dbus.Error) {
	return s.om.ListUDCNames(), nil
}

// ListFunctionTypes returns the name of every registered function type.
func (s *Service) ListFunctionTypes() ([]string, *dbus.Error) {
	return s.registry.ListNames(), nil
}

// CreateFunction instantiates a registered function type under a
// gadget. The type's own CreateInstance does the ConfigFS or
// FunctionFS work; the registry refcount is bumped only once that
// succeeds.
func (s *Service) CreateFunction(gadget, typeName, instance string) *dbus.Error {
	if err := gadgetcore.ValidateName(typeName); err != nil {
		return asDBusError("CreateFunction", err)
	}
	if err := gadgetcore.ValidateName(instance); err != nil {
		return asDBusError("CreateFunction", err)
	}
	gh, ok := s.om.GadgetByName(gadget)
	if !ok {
		return asDBusError("CreateFunction", gadgeterr.New("CreateFunction", gadgeterr.NotFound, nil))
	}
	t, ok := s.registry.Lookup(typeName)
	if !ok {
		return asDBusError("CreateFunction", gadgeterr.New("CreateFunction", gadgeterr.NotFound, nil))
	}
	if err := t.CreateInstance(gadget, instance); err != nil {
		return asDBusError("CreateFunction", err)
	}
	if err := s.registry.Ref(typeName); err != nil {
		return asDBusError("CreateFunction", err)
	}

	kind := gadgetcore.KernelFunctionKind
	if ffsType, isFFS := t.(ffsInstanceProvider); isFFS {
		kind = gadgetcore.FFSFunctionKind
		if inst, ok := ffsType.Instance(instance); ok && inst.EP0 != nil {
			s.watchInstance(typeName, instance, inst)
		}
	}
	if _, ok := s.om.AddFunction(gh, kind, typeName, instance); !ok {
		return asDBusError("CreateFunction", gadgeterr.New("CreateFunction", gadgeterr.OtherError, nil))
	}
	return nil
}

// watchInstance registers inst's ep0 with the event pump so readiness
// there drives the state-transition and child-launch pipeline.
func (s *Service) watchInstance(typeName, instance string, inst *ffs.Instance) {
	fd := int(inst.EP0.Fd())
	if err := s.pump.Add(fd, s.ep0Handler(typeName, instance, inst)); err != nil {
		log.Printf("watchInstance: failed to watch %s.%s: %v", typeName, instance, err)
	}
}

// ep0Handler reads one event off inst's ep0, advances its state, and
// launches the configured child process the moment the instance's
// activation event fires.
func (s *Service) ep0Handler(typeName, instance string, inst *ffs.Instance) func(dispatchID string, fd int) error {
	return func(dispatchID string, fd int) error {
		if inst.EP0 == nil {
			s.pump.Remove(fd)
			return nil
		}
		ev, ok, err := ffs.ReadEvent(inst.EP0)
		if err != nil {
			log.Printf("ep0Handler[%s]: %s.%s: read event: %v", dispatchID, typeName, instance, err)
			return nil
		}
		if !ok {
			return nil
		}

		shouldActivate, err := inst.ApplyEvent(ev)
		if err != nil {
			log.Printf("ep0Handler[%s]: %s.%s: apply event: %v", dispatchID, typeName, instance, err)
			return nil
		}
		if !shouldActivate {
			return nil
		}

		pid, err := ffs.LaunchChild(inst)
		if err != nil {
			log.Printf("ep0Handler[%s]: %s.%s: launch child: %v", dispatchID, typeName, instance, err)
			return nil
		}
		inst.MarkRunning(pid)
		s.pump.Remove(fd)
		log.Printf("ep0Handler[%s]: %s.%s: child launched pid=%d", dispatchID, typeName, instance, pid)
		return nil
	}
}

// RemoveFunction tears down a function instance previously created
// with CreateFunction.
func (s *Service) RemoveFunction(gadget, typeName, instance string) *dbus.Error {
	if err := gadgetcore.ValidateName(typeName); err != nil {
		return asDBusError("RemoveFunction", err)
	}
	if err := gadgetcore.ValidateName(instance); err != nil {
		return asDBusError("RemoveFunction", err)
	}
	gh, ok := s.om.GadgetByName(gadget)
	if !ok {
		return asDBusError("RemoveFunction", gadgeterr.New("RemoveFunction", gadgeterr.NotFound, nil))
	}
	t, ok := s.registry.Lookup(typeName)
	if !ok {
		return asDBusError("RemoveFunction", gadgeterr.New("RemoveFunction", gadgeterr.NotFound, nil))
	}
	if err := t.RemoveInstance(gadget, instance); err != nil {
		return asDBusError("RemoveFunction", err)
	}
	s.registry.Unref(typeName)

	if g, ok := s.om.Gadget(gh); ok {
		for _, fh := range g.FuncList {
			f, ok := s.om.Function(fh)
			if ok && f.TypeName == typeName && f.Instance == instance {
				s.om.RemoveFunction(fh)
				break
			}
		}
	}
	return nil
}

// LinkFunction links an existing function into an existing
// configuration, enabling it on that configuration.
func (s *Service) LinkFunction(gadget, configLabel string, configID int32, typeName, instance string) *dbus.Error {
	if err := gadgetcore.ValidateName(typeName); err != nil {
		return asDBusError("LinkFunction", err)
	}
	if err := gadgetcore.ValidateName(instance); err != nil {
		return asDBusError("LinkFunction", err)
	}
	funcDir := typeName + "." + instance
	if err := s.backend.LinkFunction(gadget, configLabel, int(configID), funcDir); err != nil {
		return asDBusError("LinkFunction", err)
	}
	return nil
}

// UnlinkFunction removes a function from a configuration without
// destroying the function instance itself.
func (s *Service) UnlinkFunction(gadget, configLabel string, configID int32, typeName, instance string) *dbus.Error {
	if err := gadgetcore.ValidateName(typeName); err != nil {
		return asDBusError("UnlinkFunction", err)
	}
	if err := gadgetcore.ValidateName(instance); err != nil {
		return asDBusError("UnlinkFunction", err)
	}
	funcDir := typeName + "." + instance
	if err := s.backend.UnlinkFunction(gadget, configLabel, int(configID), funcDir); err != nil {
		return asDBusError("UnlinkFunction", err)
	}
	return nil
}

// asDBusError wraps an internal error (usually a *gadgeterr.Error) as
// the D-Bus error reply, naming the failing operation in the error
// name so a client can dbus.As-match on it.
func asDBusError(op string, err error) *dbus.Error {
	kind := gadgeterr.KindOf(err)
	name := fmt.Sprintf("org.gadgetd.Error.%s", kind.String())
	return dbus.NewError(name, []interface{}{err.Error()})
}

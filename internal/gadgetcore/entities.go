package gadgetcore

import (
	"sync"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// FunctionKind distinguishes the two Function variants spec §3 names:
// a kernel-driver-backed function and a FunctionFS user-space
// function. It is a closed tagged-union discriminant, not an open
// string, so switches over it can be exhaustive.
type FunctionKind int

const (
	// KernelFunctionKind is a function implemented entirely by an
	// in-kernel USB function driver (acm, ecm, mass_storage, ...).
	KernelFunctionKind FunctionKind = iota
	// FFSFunctionKind is a function whose implementation lives in a
	// user-space process talking to it over FunctionFS endpoints.
	FFSFunctionKind
)

// Gadget is one ConfigFS usb_gadget directory.
type Gadget struct {
	Name    string
	Attrs   map[string]int
	Strings map[string]string

	ConfigList []Handle
	FuncList   []Handle

	BoundUDC string
}

// Configuration is one ConfigFS configuration directory within a
// Gadget.
type Configuration struct {
	Gadget  Handle
	Label   string
	ID      int
	Attrs   map[string]int
	Strings map[string]string

	Linked []Handle // Functions linked into this configuration
}

// Function is one ConfigFS function directory, either kernel- or
// FunctionFS-backed, as recorded by Kind. FunctionFS instance state
// is kept by the ffs package, not here.
type Function struct {
	Gadget   Handle
	Kind     FunctionKind
	TypeName string
	Instance string
}

// DirName is the "<type>.<instance>" ConfigFS directory name for f.
func (f Function) DirName() string {
	return f.TypeName + "." + f.Instance
}

// UDC is one entry discovered under /sys/class/udc. EnabledGadget is
// the object path of the gadget currently bound to it, or "" when
// free; spec's "at most one gadget enabled per UDC" invariant is
// enforced by the kernel bind call itself, not by this struct.
type UDC struct {
	Name          string
	EnabledGadget string
}

// ObjectManager owns every live Gadget, Configuration, Function and
// UDC and the paths they are addressed by, mirroring the "object model
// as tagged variants held behind one registry" design note.
type ObjectManager struct {
	mu sync.RWMutex

	gadgets      Table[*Gadget]
	configs      Table[*Configuration]
	functions    Table[*Function]
	udcs         Table[*UDC]
	gadgetByName map[string]Handle
	udcByName    map[string]Handle
}

// NewObjectManager returns an empty object manager.
func NewObjectManager() *ObjectManager {
	return &ObjectManager{
		gadgetByName: make(map[string]Handle),
		udcByName:    make(map[string]Handle),
	}
}

// GadgetPath formats the remote-interface object path a gadget of the
// given name is published at.
func GadgetPath(name string) string {
	return "/org/usb/Gadget/" + name
}

// AddGadget registers a new gadget under name and returns its handle.
func (m *ObjectManager) AddGadget(name string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.gadgets.Insert(&Gadget{Name: name, Attrs: map[string]int{}, Strings: map[string]string{}})
	m.gadgetByName[name] = h
	return h
}

// Gadget returns the gadget stored at h.
func (m *ObjectManager) Gadget(h Handle) (*Gadget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gadgets.Get(h)
}

// GadgetByName looks up a gadget's handle by its ConfigFS name.
func (m *ObjectManager) GadgetByName(name string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.gadgetByName[name]
	return h, ok
}

// RemoveGadget drops a gadget and every configuration and function it
// owns.
func (m *ObjectManager) RemoveGadget(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gadgets.Get(h)
	if !ok {
		return false
	}
	for _, ch := range g.ConfigList {
		m.configs.Remove(ch)
	}
	for _, fh := range g.FuncList {
		m.functions.Remove(fh)
	}
	delete(m.gadgetByName, g.Name)
	return m.gadgets.Remove(h)
}

// ListGadgets returns a snapshot of every live gadget handle.
func (m *ObjectManager) ListGadgets() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gadgets.Handles()
}

// AddConfiguration registers a configuration under gadget h.
func (m *ObjectManager) AddConfiguration(gadget Handle, label string, id int) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gadgets.Get(gadget)
	if !ok {
		return Handle{}, false
	}
	ch := m.configs.Insert(&Configuration{
		Gadget: gadget, Label: label, ID: id,
		Attrs: map[string]int{}, Strings: map[string]string{},
	})
	g.ConfigList = append(g.ConfigList, ch)
	return ch, true
}

// Configuration returns the configuration stored at h.
func (m *ObjectManager) Configuration(h Handle) (*Configuration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configs.Get(h)
}

// RemoveConfiguration drops a configuration from its owning gadget.
func (m *ObjectManager) RemoveConfiguration(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs.Get(h)
	if !ok {
		return false
	}
	if g, ok := m.gadgets.Get(c.Gadget); ok {
		g.ConfigList = removeHandle(g.ConfigList, h)
	}
	return m.configs.Remove(h)
}

// AddFunction registers a function under gadget h.
func (m *ObjectManager) AddFunction(gadget Handle, kind FunctionKind, typeName, instance string) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gadgets.Get(gadget)
	if !ok {
		return Handle{}, false
	}
	fh := m.functions.Insert(&Function{Gadget: gadget, Kind: kind, TypeName: typeName, Instance: instance})
	g.FuncList = append(g.FuncList, fh)
	return fh, true
}

// Function returns the function stored at h.
func (m *ObjectManager) Function(h Handle) (*Function, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.functions.Get(h)
}

// RemoveFunction drops a function from its owning gadget and from any
// configuration it was linked into.
func (m *ObjectManager) RemoveFunction(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.functions.Get(h)
	if !ok {
		return false
	}
	if g, ok := m.gadgets.Get(f.Gadget); ok {
		g.FuncList = removeHandle(g.FuncList, h)
	}
	for _, ch := range m.configs.Handles() {
		c, _ := m.configs.Get(ch)
		c.Linked = removeHandle(c.Linked, h)
	}
	return m.functions.Remove(h)
}

// LinkFunction records that function fh is linked into configuration
// ch.
func (m *ObjectManager) LinkFunction(ch, fh Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs.Get(ch)
	if !ok {
		return false
	}
	if _, ok := m.functions.Get(fh); !ok {
		return false
	}
	c.Linked = append(c.Linked, fh)
	return true
}

// UnlinkFunction undoes LinkFunction.
func (m *ObjectManager) UnlinkFunction(ch, fh Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs.Get(ch)
	if !ok {
		return false
	}
	c.Linked = removeHandle(c.Linked, fh)
	return true
}

func removeHandle(list []Handle, h Handle) []Handle {
	out := list[:0]
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// AddUDC registers a UDC discovered at startup. The UDC list is
// snapshotted once and never refreshed, per spec's shared-resources
// note.
func (m *ObjectManager) AddUDC(name string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.udcs.Insert(&UDC{Name: name})
	m.udcByName[name] = h
	return h
}

// UDCByName looks up a UDC's handle by its kernel name.
func (m *ObjectManager) UDCByName(name string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.udcByName[name]
	return h, ok
}

// ListUDCNames returns the name of every UDC snapshotted at startup.
func (m *ObjectManager) ListUDCNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.udcByName))
	for _, h := range m.udcs.Handles() {
		u, ok := m.udcs.Get(h)
		if ok {
			names = append(names, u.Name)
		}
	}
	return names
}

// EnabledGadgetPath returns the object path of the gadget currently
// bound to the named UDC, or "" if none.
func (m *ObjectManager) EnabledGadgetPath(udcName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.udcByName[udcName]
	if !ok {
		return "", false
	}
	u, _ := m.udcs.Get(h)
	return u.EnabledGadget, true
}

// MarkUDCEnabled records that gadgetPath is now bound to the named
// UDC, implementing the store-path half of §4.7's Enable.
func (m *ObjectManager) MarkUDCEnabled(udcName, gadgetPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.udcByName[udcName]
	if !ok {
		return false
	}
	u, _ := m.udcs.Get(h)
	u.EnabledGadget = gadgetPath
	return true
}

// MarkUDCDisabled clears the named UDC's enabled-gadget path,
// returning NotFound (surfaced by callers as "No gadget enabled") if
// it was already clear.
func (m *ObjectManager) MarkUDCDisabled(udcName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.udcByName[udcName]
	if !ok {
		return gadgeterr.New("MarkUDCDisabled", gadgeterr.NotFound, nil)
	}
	u, _ := m.udcs.Get(h)
	if u.EnabledGadget == "" {
		return gadgeterr.New("MarkUDCDisabled", gadgeterr.NotFound, nil)
	}
	u.EnabledGadget = ""
	return nil
}

// GadgetNameFromPath recovers the gadget name from a path formatted by
// GadgetPath, e.g. for resolving a UDC Enable(path) call back to a
// kernel handle.
func GadgetNameFromPath(path string) (string, bool) {
	const prefix = "/org/usb/Gadget/"
	if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
		return "", false
	}
	return path[len(prefix):], true
}

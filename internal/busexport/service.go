// Package busexport connects to the D-Bus system bus and exports a
// single GadgetManager object whose methods address gadgets,
// configurations, functions and UDCs by name, the same
// "connect to the system bus, then call or export methods on it" idiom
// the teacher uses for its Avahi client, run here as a server instead
// of a client.
package busexport

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"

	"github.com/gadgetd/gadgetd/internal/config"
	"github.com/gadgetd/gadgetd/internal/eventpump"
	"github.com/gadgetd/gadgetd/internal/ffs"
	"github.com/gadgetd/gadgetd/internal/functiontype"
	"github.com/gadgetd/gadgetd/internal/gadgetcore"
	"github.com/gadgetd/gadgetd/internal/kernel"
)

// rootPath is where the GadgetManager singleton is exported.
const rootPath = dbus.ObjectPath("/org/gadgetd/Manager")

// managerIface is the D-Bus interface name the GadgetManager object
// implements.
const managerIface = "org.gadgetd.Manager"

// Service wires the D-Bus-facing GadgetManager object to the
// kernel-facing object model: it is the daemon's composition root for
// everything reachable from the bus.
type Service struct {
	conn     *dbus.Conn
	backend  kernel.Backend
	om       *gadgetcore.ObjectManager
	registry *functiontype.Registry
	ffsMgr   *ffs.Manager
	pump     *eventpump.Pump
	cfg      *config.Config
}

// Connect opens a connection to the configured bus (system or
// session) without yet requesting a name or exporting anything.
func Connect(cfg *config.Config) (*dbus.Conn, error) {
	var conn *dbus.Conn
	var err error
	if cfg.Bus.UseSystemBus {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}
	return conn, nil
}

// NewService builds a Service over an already-established bus
// connection and the daemon's core subsystems. pump is used to watch
// every FunctionFS instance's ep0 for state-transition events and
// drive the child-launch pipeline on activation.
func NewService(conn *dbus.Conn, cfg *config.Config, backend kernel.Backend, om *gadgetcore.ObjectManager, registry *functiontype.Registry, ffsMgr *ffs.Manager, pump *eventpump.Pump) *Service {
	return &Service{conn: conn, backend: backend, om: om, registry: registry, ffsMgr: ffsMgr, pump: pump, cfg: cfg}
}

// Export requests the daemon's well-known bus name and exports the
// GadgetManager object. It must be called exactly once, after every
// kernel function type has been registered, since clients may start
// calling ListFunctionTypes the moment the name is acquired.
func (s *Service) Export() error {
	reply, err := s.conn.RequestName(s.cfg.Bus.Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name %s: %w", s.cfg.Bus.Name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already owned", s.cfg.Bus.Name)
	}

	if err := s.conn.Export(s, rootPath, managerIface); err != nil {
		return fmt.Errorf("export %s: %w", managerIface, err)
	}
	log.Printf("busexport: exported %s on %s as %s", managerIface, rootPath, s.cfg.Bus.Name)
	return nil
}

// Close releases the bus name and the connection.
func (s *Service) Close() error {
	s.conn.ReleaseName(s.cfg.Bus.Name)
	return s.conn.Close()
}

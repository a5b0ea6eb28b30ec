// Command gadgetd is a privileged system-bus service that drives the
// Linux ConfigFS USB gadget subsystem and FunctionFS, the same
// flag-parse/config-load/signal-wait shape the teacher's
// embroidery-usbd command uses, wired to a USB gadget object model
// instead of an HTTP disk-image server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gadgetd/gadgetd/internal/busexport"
	"github.com/gadgetd/gadgetd/internal/config"
	"github.com/gadgetd/gadgetd/internal/eventpump"
	"github.com/gadgetd/gadgetd/internal/ffs"
	"github.com/gadgetd/gadgetd/internal/functiontype"
	"github.com/gadgetd/gadgetd/internal/gadgetcore"
	"github.com/gadgetd/gadgetd/internal/gadgeterr"
	"github.com/gadgetd/gadgetd/internal/kernel"
)

// Exit codes per the command-line surface: 0 success, -5 bad value,
// -4 config-file open failed, -8 invalid parameter, -99 other.
const (
	exitOK             = 0
	exitBadValue       = -5
	exitConfigOpenFail = -4
	exitInvalidParam   = -8
	exitOther          = -99
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("c", "", "Path to configuration file (default: use built-in defaults)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("run: load config: %v", err)
		return exitConfigOpenFail
	}

	backend := kernel.New(cfg.Paths.ConfigFSRoot, cfg.Paths.UDCRoot)
	om := gadgetcore.NewObjectManager()
	registry := functiontype.NewRegistry()

	if err := seedUDCs(om, backend); err != nil {
		log.Printf("run: seed UDCs: %v", err)
		return exitCodeForErr(err)
	}

	if err := registerKernelFunctions(registry, backend, cfg); err != nil {
		log.Printf("run: register kernel functions: %v", err)
		return exitCodeForErr(err)
	}

	ffsMgr := ffs.NewManager(cfg.FFS.MountRoot)
	if err := registerFFSFunctions(registry, ffsMgr, cfg); err != nil {
		log.Printf("run: register FunctionFS services: %v", err)
		return exitCodeForErr(err)
	}

	pump, err := eventpump.New()
	if err != nil {
		log.Printf("run: init event pump: %v", err)
		return exitCodeForErr(err)
	}
	defer pump.Close()

	conn, err := busexport.Connect(cfg)
	if err != nil {
		log.Printf("run: connect bus: %v", err)
		return exitCodeForErr(err)
	}

	svc := busexport.NewService(conn, cfg, backend, om, registry, ffsMgr, pump)
	defer svc.Close()

	if err := svc.Export(); err != nil {
		log.Printf("run: export bus service: %v", err)
		return exitCodeForErr(err)
	}
	log.Printf("gadgetd: ready, bus name %s", cfg.Bus.Name)

	ctx, cancel := context.WithCancel(context.Background())
	pumpErr := make(chan error, 1)
	go func() { pumpErr <- pump.Run(ctx) }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Printf("gadgetd: received shutdown signal")
	case err := <-pumpErr:
		if err != nil {
			log.Printf("gadgetd: event pump exited: %v", err)
		}
	}

	cancel()
	registry.UnregisterAll()
	log.Printf("gadgetd: shut down")
	return exitOK
}

// loadConfig resolves the effective configuration, reporting a file
// that exists but can't be read or parsed distinctly from "no file
// given" (which falls back to defaults, not an error).
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// seedUDCs snapshots the UDC list once at startup per spec's
// shared-resources note: the list is never refreshed afterward.
func seedUDCs(om *gadgetcore.ObjectManager, backend kernel.Backend) error {
	names, err := backend.ListUDCs()
	if err != nil {
		return fmt.Errorf("list UDCs: %w", err)
	}
	for _, name := range names {
		om.AddUDC(name)
	}
	return nil
}

// registerKernelFunctions probes modules.alias and func_list for
// supported kernel function drivers and registers a KernelFunc for
// each, skipping (not failing on) unrecognized ones.
func registerKernelFunctions(registry *functiontype.Registry, backend kernel.Backend, cfg *config.Config) error {
	names, err := functiontype.ProbeKernelFuncNames(cfg.Paths.FuncList, cfg.Paths.ModulesAlias)
	if err != nil {
		return fmt.Errorf("probe kernel functions: %w", err)
	}
	return functiontype.RegisterProbed(registry, names, backend, cfg.MassStorage.ImageRoot, cfg.MassStorage.DefaultImageSizeMB)
}

// registerFFSFunctions loads every declarative service file under the
// configured service directory and registers an ffs.FuncType for each.
// A single bad file is logged and skipped; it does not abort startup.
func registerFFSFunctions(registry *functiontype.Registry, ffsMgr *ffs.Manager, cfg *config.Config) error {
	files, errs := ffs.LoadServiceDir(cfg.FFS.ServiceDir)
	for _, err := range errs {
		log.Printf("registerFFSFunctions: skipping invalid service file: %v", err)
	}
	for _, sf := range files {
		t := ffs.NewFuncType(sf, ffsMgr)
		if err := registry.Register(t); err != nil {
			log.Printf("registerFFSFunctions: register %s: %v", sf.Name, err)
			continue
		}
	}
	return nil
}

// exitCodeForErr maps a startup error to the command-line surface's
// exit code table via its gadgeterr.Kind, defaulting to "other".
func exitCodeForErr(err error) int {
	switch gadgeterr.KindOf(err) {
	case gadgeterr.BadValue:
		return exitBadValue
	case gadgeterr.InvalidParam:
		return exitInvalidParam
	case gadgeterr.FileOpenFailed:
		return exitConfigOpenFail
	default:
		return exitOther
	}
}

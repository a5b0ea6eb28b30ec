// Package config loads and saves the daemon's JSON configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level daemon configuration.
type Config struct {
	// Bus is the D-Bus configuration.
	Bus BusConfig `json:"bus"`

	// Paths contains every filesystem location the daemon reads from
	// or writes to on the kernel interface.
	Paths PathsConfig `json:"paths"`

	// FFS contains FunctionFS-specific settings.
	FFS FFSConfig `json:"ffs"`

	// MassStorage controls backing-file formatting for the mass_storage
	// kernel function.
	MassStorage MassStorageConfig `json:"mass_storage"`
}

// BusConfig controls which bus the daemon exports its object tree on.
type BusConfig struct {
	// Name is the well-known bus name, e.g. "org.gadgetd".
	Name string `json:"name"`

	// UseSystemBus selects the system bus over the session bus.
	UseSystemBus bool `json:"use_system_bus"`
}

// PathsConfig names the ConfigFS and sysfs locations the kernel
// function-type and UDC probes read and write.
type PathsConfig struct {
	// ConfigFSRoot is the mount point of configfs, normally "/sys/kernel/config".
	ConfigFSRoot string `json:"configfs_root"`

	// UDCRoot lists available UDC names, normally "/sys/class/udc".
	UDCRoot string `json:"udc_root"`

	// ModulesAlias is read to discover usable kernel function drivers.
	ModulesAlias string `json:"modules_alias"`

	// FuncList is an optional whitespace-separated kernel function name
	// list (normally /sys/class/usb_gadget/func_list) whose names are
	// added to those found in ModulesAlias; when empty, only
	// ModulesAlias is scanned.
	FuncList string `json:"func_list"`
}

// FFSConfig controls where FunctionFS instances are mounted and where
// declarative service files are discovered.
type FFSConfig struct {
	// MountRoot is the base directory instance mounts are created
	// under, one subdirectory per service name.
	MountRoot string `json:"mount_root"`

	// ServiceDir is scanned for declarative *.json service files.
	ServiceDir string `json:"service_dir"`
}

// MassStorageConfig controls where gadgetd formats backing image files
// for mass_storage kernel function instances that name one that
// doesn't yet exist.
type MassStorageConfig struct {
	// ImageRoot is the directory backing-file paths are resolved
	// under when an instance names one by instance name alone.
	ImageRoot string `json:"image_root"`

	// DefaultImageSizeMB sizes a freshly formatted backing file.
	DefaultImageSizeMB int64 `json:"default_image_size_mb"`
}

// Default returns the configuration the daemon starts with absent a
// config file on disk.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Name:         "org.gadgetd",
			UseSystemBus: true,
		},
		Paths: PathsConfig{
			ConfigFSRoot: "/sys/kernel/config",
			UDCRoot:      "/sys/class/udc",
			ModulesAlias: "/lib/modules/modules.alias",
			FuncList:     "",
		},
		FFS: FFSConfig{
			MountRoot:  "/tmp/gadgetd",
			ServiceDir: "/etc/gadgetd/services",
		},
		MassStorage: MassStorageConfig{
			ImageRoot:          "/var/lib/gadgetd/mass_storage",
			DefaultImageSizeMB: 64,
		},
	}
}

// Load reads path and unmarshals it over the defaults. A missing file
// is not an error: Load returns Default() unchanged.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes c to path as indented JSON, creating parent directories
// as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ParseHex converts a hex string (like "0x1d6b") to an integer.
func ParseHex(s string) (int, error) {
	var val int
	_, err := fmt.Sscanf(s, "0x%x", &val)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %s: %w", s, err)
	}
	return val, nil
}

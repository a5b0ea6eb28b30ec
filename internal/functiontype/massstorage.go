package functiontype

import (
	"fmt"
	"os"
	"path/filepath"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
)

// massStorageFuncName is the one kernel function driver whose instance
// creation needs a backing file to exist before the ConfigFS
// lun.0/file attribute can point at it.
const massStorageFuncName = "mass_storage"

// backingImagePath resolves the file mass_storage instance i of gadget
// g formats or reuses, under root.
func backingImagePath(root, gadget, instance string) string {
	return filepath.Join(root, gadget, instance+".img")
}

// ensureBackingImage creates a FAT32-formatted backing image file at
// path if one doesn't already exist, the same
// diskfs.Create/CreateFilesystem sequence the teacher's
// diskmanager.CreateDiskImage uses, adapted to size from configuration
// instead of a hardcoded constant.
func ensureBackingImage(path string, sizeMB int64) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat backing image %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create backing image directory for %s: %w", path, err)
	}

	d, err := diskfs.Create(path, sizeMB*1024*1024, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("create backing image %s: %w", path, err)
	}

	if _, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: "GADGETD",
	}); err != nil {
		return fmt.Errorf("format backing image %s: %w", path, err)
	}
	return nil
}

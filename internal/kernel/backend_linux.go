//go:build linux

package kernel

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

type backendLinux struct {
	configFSRoot string
	udcRoot      string
}

func newBackend(configFSRoot, udcRoot string) Backend {
	return &backendLinux{configFSRoot: configFSRoot, udcRoot: udcRoot}
}

func (b *backendLinux) gadgetPath(name string) string {
	return gadgetDir(b.configFSRoot, name)
}

func (b *backendLinux) CreateGadget(name string) error {
	return mkdir(b.gadgetPath(name))
}

func (b *backendLinux) RemoveGadget(name string) error {
	dir := b.gadgetPath(name)
	stringsDir := filepath.Join(dir, "strings", fmt.Sprintf("0x%x", LangUSEng))
	if exists(stringsDir) {
		if err := rmdir(stringsDir); err != nil {
			return err
		}
	}
	return rmdir(dir)
}

func (b *backendLinux) SetGadgetAttr(gadget, attr string, val int) error {
	file, _, err := lookupGadgetAttr(attr)
	if err != nil {
		return err
	}
	return writeAttr(filepath.Join(b.gadgetPath(gadget), file), formatAttr(val))
}

func (b *backendLinux) GetGadgetAttr(gadget, attr string) (int, error) {
	file, _, err := lookupGadgetAttr(attr)
	if err != nil {
		return 0, err
	}
	s, err := readAttr(filepath.Join(b.gadgetPath(gadget), file))
	if err != nil {
		return 0, err
	}
	return parseAttr(s)
}

func (b *backendLinux) SetGadgetString(gadget string, lang int, key, val string) error {
	file, err := lookupGadgetStr(key)
	if err != nil {
		return err
	}
	dir := filepath.Join(b.gadgetPath(gadget), "strings", fmt.Sprintf("0x%x", lang))
	if !exists(dir) {
		if err := mkdir(dir); err != nil {
			return err
		}
	}
	return writeAttr(filepath.Join(dir, file), val)
}

func (b *backendLinux) configPath(gadget, label string, id int) string {
	return filepath.Join(b.gadgetPath(gadget), "configs", configID(label, id))
}

func (b *backendLinux) CreateConfig(gadget, label string, id int) error {
	return mkdir(b.configPath(gadget, label, id))
}

func (b *backendLinux) RemoveConfig(gadget, label string, id int) error {
	dir := b.configPath(gadget, label, id)
	stringsDir := filepath.Join(dir, "strings", fmt.Sprintf("0x%x", LangUSEng))
	if exists(stringsDir) {
		if err := rmdir(stringsDir); err != nil {
			return err
		}
	}
	return rmdir(dir)
}

// configAttrFiles maps the two attributes usbg exposes for a
// configuration (MaxPower, bmAttributes) to their configfs file names.
var configAttrFiles = map[string]string{
	"max-power":    "MaxPower",
	"bm-attributes": "bmAttributes",
}

func (b *backendLinux) SetConfigAttr(gadget, label string, id int, attr string, val int) error {
	file, ok := configAttrFiles[attr]
	if !ok {
		return gadgeterr.New("SetConfigAttr", gadgeterr.InvalidParam, nil)
	}
	return writeAttr(filepath.Join(b.configPath(gadget, label, id), file), formatAttr(val))
}

func (b *backendLinux) SetConfigString(gadget, label string, id int, lang int, val string) error {
	dir := filepath.Join(b.configPath(gadget, label, id), "strings", fmt.Sprintf("0x%x", lang))
	if !exists(dir) {
		if err := mkdir(dir); err != nil {
			return err
		}
	}
	return writeAttr(filepath.Join(dir, "configuration"), val)
}

func (b *backendLinux) functionDir(funcType, instance string) string {
	return fmt.Sprintf("%s.%s", funcType, instance)
}

func (b *backendLinux) functionPath(gadget, funcDirName string) string {
	return filepath.Join(b.gadgetPath(gadget), "functions", funcDirName)
}

func (b *backendLinux) LinkFunction(gadget, configLabel string, configIDNum int, funcDirName string) error {
	target := b.functionPath(gadget, funcDirName)
	link := filepath.Join(b.configPath(gadget, configLabel, configIDNum), funcDirName)
	return symlink(target, link)
}

func (b *backendLinux) UnlinkFunction(gadget, configLabel string, configIDNum int, funcDirName string) error {
	link := filepath.Join(b.configPath(gadget, configLabel, configIDNum), funcDirName)
	return unlink(link)
}

func (b *backendLinux) CreateKernelFunction(gadget, funcType, instance string) error {
	return mkdir(b.functionPath(gadget, b.functionDir(funcType, instance)))
}

func (b *backendLinux) RemoveKernelFunction(gadget, funcType, instance string) error {
	return rmdir(b.functionPath(gadget, b.functionDir(funcType, instance)))
}

func (b *backendLinux) SetFunctionAttr(gadget, funcDirName, attr, val string) error {
	return writeAttr(filepath.Join(b.functionPath(gadget, funcDirName), attr), val)
}

func (b *backendLinux) ListUDCs() ([]string, error) {
	if !exists(b.udcRoot) {
		return nil, nil
	}
	return readDirNames(b.udcRoot)
}

func (b *backendLinux) BindUDC(gadget, udc string) error {
	return writeAttr(filepath.Join(b.gadgetPath(gadget), "UDC"), udc)
}

func (b *backendLinux) UnbindUDC(gadget string) error {
	return writeAttr(filepath.Join(b.gadgetPath(gadget), "UDC"), "")
}

func (b *backendLinux) BoundUDC(gadget string) (string, error) {
	return readAttr(filepath.Join(b.gadgetPath(gadget), "UDC"))
}

func formatAttr(val int) string {
	return strconv.Itoa(val)
}

func parseAttr(s string) (int, error) {
	// configfs numeric attributes are normally printed in hex with a
	// leading "0x"; fall back to decimal for files like bmAttributes.
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		v, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return 0, gadgeterr.New("parseAttr", gadgeterr.BadValue, err)
		}
		return int(v), nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, gadgeterr.New("parseAttr", gadgeterr.BadValue, err)
	}
	return v, nil
}

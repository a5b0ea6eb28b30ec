package functiontype

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanModulesAlias(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modules.alias")
	content := "alias usbfunc:acm usb_f_acm\n" +
		"alias usbfunc:ecm usb_f_ecm\n" +
		"alias usbfunc:acm usb_f_acm\n" +
		"alias usb:v1234p5678d*dc*dsc*dp*ic*isc*ip*in* usb_f_hid\n" +
		"not a function line at all\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	names, err := ProbeKernelFuncNames("", path)
	if err != nil {
		t.Fatalf("ProbeKernelFuncNames: %v", err)
	}
	if len(names) != 2 || names[0] != "acm" || names[1] != "ecm" {
		t.Fatalf("names = %v", names)
	}
}

func TestReadFuncList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "func_list")
	if err := os.WriteFile(path, []byte("acm\necm\nacm\n"), 0644); err != nil {
		t.Fatal(err)
	}
	names, err := ProbeKernelFuncNames(path, "/nonexistent/modules.alias")
	if err != nil {
		t.Fatalf("ProbeKernelFuncNames: %v", err)
	}
	if len(names) != 2 || names[0] != "acm" || names[1] != "ecm" {
		t.Fatalf("names = %v", names)
	}
}

func TestProbeKernelFuncNamesUnion(t *testing.T) {
	dir := t.TempDir()
	aliasPath := filepath.Join(dir, "modules.alias")
	if err := os.WriteFile(aliasPath, []byte("alias usbfunc:acm usb_f_acm\n"), 0644); err != nil {
		t.Fatal(err)
	}
	listPath := filepath.Join(dir, "func_list")
	if err := os.WriteFile(listPath, []byte("ecm  rndis\nacm\n"), 0644); err != nil {
		t.Fatal(err)
	}

	names, err := ProbeKernelFuncNames(listPath, aliasPath)
	if err != nil {
		t.Fatalf("ProbeKernelFuncNames: %v", err)
	}
	if len(names) != 3 || names[0] != "acm" || names[1] != "ecm" || names[2] != "rndis" {
		t.Fatalf("names = %v", names)
	}
}

func TestProbeKernelFuncNamesMissingFuncList(t *testing.T) {
	dir := t.TempDir()
	aliasPath := filepath.Join(dir, "modules.alias")
	if err := os.WriteFile(aliasPath, []byte("alias usbfunc:acm usb_f_acm\n"), 0644); err != nil {
		t.Fatal(err)
	}

	names, err := ProbeKernelFuncNames(filepath.Join(dir, "no_such_func_list"), aliasPath)
	if err != nil {
		t.Fatalf("ProbeKernelFuncNames: %v", err)
	}
	if len(names) != 1 || names[0] != "acm" {
		t.Fatalf("names = %v", names)
	}
}

func TestScanModulesAliasMissingFile(t *testing.T) {
	names, err := ProbeKernelFuncNames("", "/nonexistent/modules.alias")
	if err != nil {
		t.Fatalf("ProbeKernelFuncNames: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("names = %v, want empty", names)
	}
}

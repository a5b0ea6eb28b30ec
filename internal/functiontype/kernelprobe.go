package functiontype

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"
	"sort"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
	"github.com/gadgetd/gadgetd/internal/kernel"
)

// kernelFuncAliasRE matches the "alias usbfunc:<name> <module>" lines
// MODULE_ALIAS("usbfunc:...") generates in modules.alias, e.g.
// "alias usbfunc:acm usb_f_acm". Any other "alias ...:" line (plain
// USB device/class aliases, among others) simply fails to match and is
// skipped to end-of-line, per spec §4.3.
var kernelFuncAliasRE = regexp.MustCompile(`^alias\s+usbfunc:(\S+)`)

// ProbeKernelFuncNames discovers the set of kernel USB function driver
// names available on the running system: the union of modules.alias's
// usbfunc: aliases and, if present, the whitespace-separated tokens of
// /sys/class/usb_gadget/func_list (spec §4.3). funcListPath missing
// entirely is not an error — func_list is a recent kernel addition not
// every system has.
//
// The result is sorted and deduplicated, matching the sort+lookup
// discipline the registry itself uses for name listings.
func ProbeKernelFuncNames(funcListPath, modulesAliasPath string) ([]string, error) {
	names, err := scanModulesAlias(modulesAliasPath)
	if err != nil {
		return nil, err
	}
	if funcListPath != "" {
		fromSysfs, err := readFuncList(funcListPath)
		if err != nil {
			return nil, err
		}
		names = append(names, fromSysfs...)
	}
	return dedupSorted(names), nil
}

func readFuncList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gadgeterr.FromErr("readFuncList", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		names = append(names, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, gadgeterr.New("readFuncList", gadgeterr.LineTooLong, err)
	}
	return names, nil
}

func scanModulesAlias(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gadgeterr.FromErr("scanModulesAlias", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := kernelFuncAliasRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		names = append(names, m[1])
	}
	if err := sc.Err(); err != nil {
		return nil, gadgeterr.New("scanModulesAlias", gadgeterr.LineTooLong, err)
	}
	return dedupSorted(names), nil
}

func dedupSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	for i, n := range names {
		if i == 0 || names[i-1] != n {
			out = append(out, n)
		}
	}
	return out
}

// RegisterProbed registers a KernelFunc for every probed name that is
// in the supported set, logging and skipping the rest rather than
// failing the whole probe — matches gd_register_kernel_funcs treating
// an unrecognized function driver as non-fatal.
func RegisterProbed(reg *Registry, names []string, backend kernel.Backend, imageRoot string, imageSizeMB int64) error {
	for _, name := range names {
		if !IsSupportedKernelFunc(name) {
			log.Printf("RegisterProbed: skipping unsupported kernel function %q", name)
			continue
		}
		if err := reg.Register(NewKernelFunc(name, backend, imageRoot, imageSizeMB)); err != nil {
			return fmt.Errorf("RegisterProbed: register %q: %w", name, err)
		}
	}
	return nil
}

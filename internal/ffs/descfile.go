package ffs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// ServiceFile is the declarative description of one FunctionFS
// service: what to mount, what descriptors and strings to hand the
// kernel, and how to launch the user-space child once it's enabled.
type ServiceFile struct {
	Name            string            `json:"name"`
	ExecPath        string            `json:"exec_path"`
	WorkDir         string            `json:"work_dir,omitempty"`
	ChrootTo        string            `json:"chroot_to,omitempty"`
	User            string            `json:"user,omitempty"`
	UID             *int              `json:"uid,omitempty"`
	Group           string            `json:"group,omitempty"`
	GID             *int              `json:"gid,omitempty"`
	AllowMultiple   bool              `json:"allow_multiple"`
	AllowConcurrent bool              `json:"allow_concurrent"`
	ActivationEvent string            `json:"activation_event"`
	Descriptors     DescriptorsConfig `json:"descriptors"`
	Strings         []StringsEntry    `json:"strings,omitempty"`
}

// DescriptorsConfig carries the declarative, per-speed descriptor
// lists of spec §4.4. FSDesc is required; HSDesc may be empty to omit
// the high-speed block entirely.
type DescriptorsConfig struct {
	FSDesc []rawDescEntry `json:"fs_desc"`
	HSDesc []rawDescEntry `json:"hs_desc,omitempty"`
}

// StringsEntry is one language's ordered string list, per spec §4.4's
// "list of {lang, str}".
type StringsEntry struct {
	Lang string   `json:"lang"`
	Str  []string `json:"str"`
}

// ActivationEventType parses ActivationEvent into an EventType. Only
// the BIND, ENABLE and SETUP events are accepted, each either by its
// FUNCTIONFS_* name or by the lowercase short form ("bind", "enable",
// "setup").
func (s *ServiceFile) ActivationEventType() (EventType, error) {
	switch s.ActivationEvent {
	case "FUNCTIONFS_BIND", "bind":
		return EventBind, nil
	case "FUNCTIONFS_ENABLE", "enable":
		return EventEnable, nil
	case "FUNCTIONFS_SETUP", "setup":
		return EventSetup, nil
	default:
		return 0, gadgeterr.New("ActivationEventType", gadgeterr.BadValue,
			fmt.Errorf("unknown activation_event %q", s.ActivationEvent))
	}
}

// Build parses the declarative descriptor lists into the raw,
// concatenated per-speed descriptor byte runs EncodeDescriptors packs
// into the wire block, assigning bInterfaceNumber and bNumEndpoints as
// it goes.
func (d DescriptorsConfig) Build() (fs, hs []byte, err error) {
	if len(d.FSDesc) == 0 {
		return nil, nil, nil
	}
	fs, err = buildSpeedBlock("fs", d.FSDesc)
	if err != nil {
		return nil, nil, err
	}
	if len(d.HSDesc) > 0 {
		hs, err = buildSpeedBlock("hs", d.HSDesc)
		if err != nil {
			return nil, nil, err
		}
	}
	return fs, hs, nil
}

// langCode parses a StringsEntry.Lang field as a hexadecimal USB
// LANGID, with or without a "0x" prefix ("0409" and "0x409" are both
// 0x0409). Decimal input is not recognized: "1033" parses as 0x1033.
func langCode(s string) (uint16, error) {
	if v, err := parseHexOrDecimalU16(s); err == nil {
		return v, nil
	}
	return 0, gadgeterr.New("langCode", gadgeterr.BadValue, fmt.Errorf("bad language code %q", s))
}

func parseHexOrDecimalU16(s string) (uint16, error) {
	var v uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		_, err = fmt.Sscanf(s, "0x%x", &v)
	} else {
		_, err = fmt.Sscanf(s, "%x", &v)
	}
	if err != nil || v > 0xffff {
		return 0, fmt.Errorf("invalid language code %q", s)
	}
	return uint16(v), nil
}

// LangStringsFromConfig converts the Strings list into the ordered
// LangStrings the wire encoder needs, validating that every language
// code is pairwise distinct per spec §4.4.
func (s *ServiceFile) LangStringsFromConfig() ([]LangStrings, error) {
	if len(s.Strings) == 0 {
		return []LangStrings{{Lang: 0x0409, Strings: []string{"", "", ""}}}, nil
	}

	seen := make(map[uint16]bool, len(s.Strings))
	out := make([]LangStrings, 0, len(s.Strings))
	for _, entry := range s.Strings {
		lang, err := langCode(entry.Lang)
		if err != nil {
			return nil, err
		}
		if seen[lang] {
			return nil, gadgeterr.New("LangStringsFromConfig", gadgeterr.BadValue,
				fmt.Errorf("duplicate language code %q", entry.Lang))
		}
		seen[lang] = true
		out = append(out, LangStrings{Lang: lang, Strings: entry.Str})
	}
	return out, nil
}

// LoadServiceFile parses and validates one declarative service file.
// Unknown keys are a hard error, not a warning: there is no
// loop-variable residue left over from an unrecognized key (spec §9's
// open question on descriptors_set/strings_set). allow_concurrent
// without allow_multiple is rejected outright rather than silently
// implying allow_multiple, and user xor uid / group xor gid are
// mutually exclusive per spec §4.4's table.
func LoadServiceFile(path string) (*ServiceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gadgeterr.FromErr("LoadServiceFile", err)
	}

	var sf ServiceFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sf); err != nil {
		return nil, gadgeterr.New("LoadServiceFile", gadgeterr.BadValue, fmt.Errorf("%s: %w", path, err))
	}

	if sf.Name == "" || sf.ExecPath == "" {
		return nil, gadgeterr.New("LoadServiceFile", gadgeterr.BadValue,
			fmt.Errorf("%s: name and exec_path are required", path))
	}
	if sf.AllowConcurrent && !sf.AllowMultiple {
		return nil, gadgeterr.New("LoadServiceFile", gadgeterr.BadValue,
			fmt.Errorf("%s: allow_concurrent requires allow_multiple", path))
	}
	if sf.User != "" && sf.UID != nil {
		return nil, gadgeterr.New("LoadServiceFile", gadgeterr.BadValue,
			fmt.Errorf("%s: user and uid are mutually exclusive", path))
	}
	if sf.Group != "" && sf.GID != nil {
		return nil, gadgeterr.New("LoadServiceFile", gadgeterr.BadValue,
			fmt.Errorf("%s: group and gid are mutually exclusive", path))
	}
	if sf.User != "" {
		uid, err := resolveUID(sf.User)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sf.UID = &uid
	}
	if sf.Group != "" {
		gid, err := resolveGID(sf.Group)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		sf.GID = &gid
	}
	if len(sf.Descriptors.FSDesc) == 0 {
		return nil, gadgeterr.New("LoadServiceFile", gadgeterr.BadValue,
			fmt.Errorf("%s: descriptors.fs_desc is required", path))
	}
	if _, err := sf.ActivationEventType(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, _, err := sf.Descriptors.Build(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := sf.LangStringsFromConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &sf, nil
}

// resolveUID resolves a "user" descriptor-file value, accepting a
// name or a bare numeric uid, per spec §4.4's "user xor uid" row.
func resolveUID(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, gadgeterr.New("resolveUID", gadgeterr.InvalidParam, fmt.Errorf("user %q: %w", name, err))
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, gadgeterr.New("resolveUID", gadgeterr.OtherError, err)
	}
	return uid, nil
}

// resolveGID resolves a "group" descriptor-file value, accepting a
// name or a bare numeric gid.
func resolveGID(name string) (int, error) {
	if n, err := strconv.Atoi(name); err == nil {
		return n, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, gadgeterr.New("resolveGID", gadgeterr.InvalidParam, fmt.Errorf("group %q: %w", name, err))
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, gadgeterr.New("resolveGID", gadgeterr.OtherError, err)
	}
	return gid, nil
}

// LoadServiceDir loads every *.json service file in dir, in
// alphabetical order, skipping dotfiles and any file ending in
// ".example" (a convention for documenting the format without
// activating it). A parse failure rejects only that file; the rest of
// the directory still loads.
func LoadServiceDir(dir string) ([]*ServiceFile, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{gadgeterr.FromErr("LoadServiceDir", err)}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".example") {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*ServiceFile, 0, len(names))
	var errs []error
	for _, name := range names {
		sf, err := LoadServiceFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, sf)
	}
	return out, errs
}

package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Bus.Name != def.Bus.Name || cfg.Paths.ConfigFSRoot != def.Paths.ConfigFSRoot {
		t.Fatalf("Load on missing file did not return defaults: %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gadgetd.json")

	cfg := Default()
	cfg.Bus.Name = "org.example.gadgetd"
	cfg.FFS.MountRoot = "/run/gadgetd"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Bus.Name != cfg.Bus.Name {
		t.Errorf("Bus.Name = %q, want %q", loaded.Bus.Name, cfg.Bus.Name)
	}
	if loaded.FFS.MountRoot != cfg.FFS.MountRoot {
		t.Errorf("FFS.MountRoot = %q, want %q", loaded.FFS.MountRoot, cfg.FFS.MountRoot)
	}
}

func TestParseHex(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0x1d6b", 0x1d6b, false},
		{"0x0100", 0x0100, false},
		{"not-hex", 0, true},
	}
	for _, c := range cases {
		got, err := ParseHex(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseHex(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseHex(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseHex(%q) = %#x, want %#x", c.in, got, c.want)
		}
	}
}

package keys

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type fileFormat struct {
	Binding []Override `toml:"binding"`
}

// LoadFile reads overrides from a TOML file. A missing file yields no overrides.
func LoadFile(path string) ([]Override, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keybindings: %w", err)
	}
	var f fileFormat
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("parse keybindings %s: %w", path, err)
	}
	return f.Binding, nil
}

// WriteFile writes overrides as TOML using a temp file and rename.
func WriteFile(path string, items []Override) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(fileFormat{Binding: items}); err != nil {
		return fmt.Errorf("encode keybindings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create keybindings dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write keybindings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace keybindings: %w", err)
	}
	return nil
}

// Load builds the default registry and applies overrides from path.
func Load(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}
	items, err := LoadFile(path)
	if err != nil {
		return r, err
	}
	if err := r.Apply(items); err != nil {
		return r, err
	}
	return r, nil
}

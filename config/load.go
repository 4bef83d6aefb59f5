//go:build !tinygo

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"
)

// DefaultFileName is the configuration file looked up when none is named
const DefaultFileName = "cnc.yml"

// Load layers the YAML file at path over Default. A missing file leaves
// the defaults in place.
func Load(path string) (*MachineConfig, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(*Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg MachineConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Dump writes cfg as YAML, in the form Load reads back
func Dump(w io.Writer, cfg *MachineConfig) error {
	b, err := yml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// WriteFile dumps cfg to path, for mkconf
func WriteFile(path string, cfg *MachineConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Dump(f, cfg)
}

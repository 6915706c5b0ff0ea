package bench

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// LoadConfig starts from DefaultConfig and overlays whatever fields path
// sets, the way original_source/include/cmdline_option.hpp's option
// parser applies explicit overrides onto compiled-in defaults. Missing
// keys in the TOML file simply leave the default untouched, since
// toml.Decode only writes fields the document mentions.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("bench: decode config %s: %w", path, err)
	}
	return cfg, nil
}

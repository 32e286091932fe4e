package temper

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultMaxIncludeDepth is the include nesting limit used when
// Config.MaxIncludeDepth isn't positive.
const DefaultMaxIncludeDepth = 32

// DefaultMaxIncludes is the per-render include limit used when
// Config.MaxIncludes isn't positive.
const DefaultMaxIncludes = 10000

// Config controls how a Collection loads and renders templates.
type Config struct {
	// Recursive loads templates from subdirectories too, keyed by their
	// slash-separated path relative to the root.
	Recursive bool `toml:"recursive"`

	// IgnoreBadTemplates skips template files that fail to compile
	// instead of failing the whole load.
	IgnoreBadTemplates bool `toml:"ignore_bad_templates"`

	// MaxIncludeDepth limits how deeply includes can nest. An include
	// past the limit renders as nothing.
	MaxIncludeDepth int `toml:"max_include_depth"`

	// MaxIncludes limits how many includes a single Render expands,
	// counting nested ones. Includes past the limit render as nothing.
	MaxIncludes int `toml:"max_includes"`

	// RejectIncludeCycles fails Load, Reload, and Add when templates
	// include each other in a cycle. Otherwise cycles are only logged; a
	// render that re-enters a template on its own include path renders
	// that include as nothing either way.
	RejectIncludeCycles bool `toml:"reject_include_cycles"`
}

// DefaultConfig returns the Config used when none is given: a
// non-recursive, lenient load with the default include limits.
func DefaultConfig() Config {
	return Config{
		IgnoreBadTemplates: true,
		MaxIncludeDepth:    DefaultMaxIncludeDepth,
		MaxIncludes:        DefaultMaxIncludes,
	}
}

func (c Config) maxIncludeDepth() int {
	if c.MaxIncludeDepth <= 0 {
		return DefaultMaxIncludeDepth
	}
	return c.MaxIncludeDepth
}

func (c Config) maxIncludes() int {
	if c.MaxIncludes <= 0 {
		return DefaultMaxIncludes
	}
	return c.MaxIncludes
}

// DecodeConfig reads a TOML config from r. Keys missing from r keep their
// DefaultConfig values; keys Config doesn't have are an error.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: %v", ErrUnknownConfigKey, undecoded)
	}
	return cfg, nil
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error opening config %q: %w", path, err)
	}
	defer f.Close()
	cfg, err := DecodeConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("error loading %q: %w", path, err)
	}
	return cfg, nil
}

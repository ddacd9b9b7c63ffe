// Package config loads the user configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/imdario/mergo"
	"gopkg.in/yaml.v2"
)

// FileName is the configuration file looked up in the XDG config home.
const FileName = "config.yml"

// Config holds every user-configurable default. Values given on the command
// line take precedence over the file.
type Config struct {
	Find     FindConfig     `yaml:"find,omitempty"`
	Select   SelectConfig   `yaml:"select,omitempty"`
	Upload   UploadConfig   `yaml:"upload,omitempty"`
	Snapshot SnapshotConfig `yaml:"snapshot,omitempty"`
}

// FindConfig configures the crawler. Depth and LogDepth are pointers because
// zero is a meaningful setting for both.
type FindConfig struct {
	Depth    *int     `yaml:"depth,omitempty"`
	Nproc    int      `yaml:"nproc,omitempty"`
	LogDepth *int     `yaml:"logDepth,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"`
}

// SelectConfig configures queue selection.
type SelectConfig struct {
	// Threshold is the largest unit size, in humanized bytes ("1TB", "500GiB").
	Threshold string `yaml:"threshold,omitempty"`
}

// UploadConfig configures the transfer stage. Primary and Fallback are argv
// prefixes; the subcommand and paths are appended per entry.
type UploadConfig struct {
	Bucket   string   `yaml:"bucket,omitempty"`
	Primary  []string `yaml:"primary,omitempty"`
	Fallback []string `yaml:"fallback,omitempty"`
}

// SnapshotConfig configures SQLite snapshots of finished crawls.
type SnapshotConfig struct {
	Dir       string `yaml:"dir,omitempty"`
	Retention int    `yaml:"retention,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Find: FindConfig{
			Nproc: 1,
		},
		Select: SelectConfig{
			Threshold: "1TB",
		},
		Upload: UploadConfig{
			Primary:  []string{"s5cmd", "--numworkers", "16"},
			Fallback: []string{"aws", "s3"},
		},
		Snapshot: SnapshotConfig{
			Retention: 5,
		},
	}
}

// MaxDepth returns the configured truncation depth, -1 when unset.
func (f FindConfig) MaxDepth() int {
	if f.Depth == nil {
		return -1
	}
	return *f.Depth
}

// ProgressDepth returns the configured progress depth, 2 when unset.
func (f FindConfig) ProgressDepth() int {
	if f.LogDepth == nil {
		return 2
	}
	return *f.LogDepth
}

// DefaultPath returns the config file location under the XDG config home.
func DefaultPath() string {
	return filepath.Join(xdg.New("michaelscutari", "treesize").ConfigHome(), FileName)
}

// Load reads path, or DefaultPath when path is empty, and merges it over the
// defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	user, err := Parse(content)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := mergo.Merge(&cfg, user, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merging config: %w", err)
	}
	return cfg, nil
}

// Parse decodes a configuration document. Unknown keys are an error.
func Parse(content []byte) (Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

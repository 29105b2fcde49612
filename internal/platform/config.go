package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/casebook/internal/atomicfile"
	"github.com/aretw0/casebook/pkg/adapters/s3"
)

const (
	// ConfigFileName is the optional vault configuration file.
	ConfigFileName = "casebook.yaml"
	// DefaultSystemDir marks a vault and holds its bookkeeping files.
	DefaultSystemDir = ".casebook"
	// DefaultAssetDir is where photos live, relative to the vault.
	DefaultAssetDir = "photos"
)

// Config is the content of casebook.yaml. Options passed in code win over it.
type Config struct {
	Adapter     string        `yaml:"adapter,omitempty"`
	RecordsFile string        `yaml:"records_file,omitempty"`
	AssetDir    string        `yaml:"asset_dir,omitempty"`
	Mirror      *MirrorConfig `yaml:"mirror,omitempty"`
}

// MirrorConfig describes the S3 bucket photos are copied to.
type MirrorConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// LoadConfig reads casebook.yaml from root. A missing file yields the zero Config.
func LoadConfig(root string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Join(root, ConfigFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}
	switch cfg.Adapter {
	case "", AdapterFS, AdapterSQLite, AdapterMemory:
	default:
		return cfg, fmt.Errorf("%s: unknown adapter %q", ConfigFileName, cfg.Adapter)
	}
	return cfg, nil
}

// WriteConfig stores cfg as casebook.yaml in root.
func WriteConfig(root string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return atomicfile.WriteFile(filepath.Join(root, ConfigFileName), data, 0644)
}

// mirrorConfig merges the file mirror settings with CASEBOOK_S3_* variables,
// the environment taking precedence. ok is false when no bucket is set.
func (c Config) mirrorConfig() (s3.Config, bool) {
	var out s3.Config
	if c.Mirror != nil {
		out = s3.Config{
			Bucket:    c.Mirror.Bucket,
			Region:    c.Mirror.Region,
			Endpoint:  c.Mirror.Endpoint,
			Prefix:    c.Mirror.Prefix,
			PathStyle: c.Mirror.PathStyle,
		}
	}
	env, _ := s3.ConfigFromEnv()
	if env.Bucket != "" {
		out.Bucket = env.Bucket
	}
	if env.Region != "" {
		out.Region = env.Region
	}
	if env.Endpoint != "" {
		out.Endpoint = env.Endpoint
	}
	if env.Prefix != "" {
		out.Prefix = env.Prefix
	}
	if env.PathStyle {
		out.PathStyle = true
	}
	return out, out.Bucket != ""
}

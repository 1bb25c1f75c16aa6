// Package config holds the plain configuration structs BAR's packages
// bind against. There is no flag/CLI parsing here — a host program
// builds these from whatever source it prefers and a profile can be
// loaded from YAML via LoadProfile.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BackendConfig configures one storage back end target, most directly
// the S3-compatible object storage variant.
type BackendConfig struct {
	Provider  string `yaml:"provider"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// Profile is the top-level configuration a BAR invocation runs with:
// which storage target an archive reads/writes, encryption/compression
// defaults, and part-size policy.
type Profile struct {
	Name              string         `yaml:"name"`
	StorageURL        string         `yaml:"storage_url"`
	Backend           *BackendConfig `yaml:"backend,omitempty"`
	CompressAlgorithm string         `yaml:"compress_algorithm"`
	CryptAlgorithm    string         `yaml:"crypt_algorithm"`
	PartSize          int64          `yaml:"part_size"`
	BandwidthLimitBps int64          `yaml:"bandwidth_limit_bps"`
	Include           []string       `yaml:"include"`
	Exclude           []string       `yaml:"exclude"`
}

// LoadProfile reads and parses a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parsing profile %s: %w", path, err)
	}
	return &p, nil
}

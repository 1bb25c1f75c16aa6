package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	yamlDoc := `
name: nightly
storage_url: /backups/nightly.bar
compress_algorithm: zip6
crypt_algorithm: AES256
part_size: 1073741824
bandwidth_limit_bps: 0
include:
  - /srv/data/*.db
exclude:
  - "*.tmp"
backend:
  provider: s3
  endpoint: https://s3.example.com
  region: us-east-1
  bucket: nightly-backups
  path_style: true
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", p.Name)
	assert.Equal(t, "/backups/nightly.bar", p.StorageURL)
	assert.Equal(t, "zip6", p.CompressAlgorithm)
	assert.Equal(t, "AES256", p.CryptAlgorithm)
	assert.Equal(t, int64(1073741824), p.PartSize)
	assert.Equal(t, []string{"/srv/data/*.db"}, p.Include)
	assert.Equal(t, []string{"*.tmp"}, p.Exclude)

	require.NotNil(t, p.Backend)
	assert.Equal(t, "s3", p.Backend.Provider)
	assert.Equal(t, "nightly-backups", p.Backend.Bucket)
	assert.True(t, p.Backend.PathStyle)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadProfileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0644))

	_, err := LoadProfile(path)
	assert.Error(t, err)
}

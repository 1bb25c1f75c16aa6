package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bar/internal/compressor"
	"bar/internal/keystore"
	"bar/internal/packer"
)

func TestParseCompressAlgorithm(t *testing.T) {
	alg, err := parseCompressAlgorithm("zip6")
	require.NoError(t, err)
	assert.Equal(t, compressor.Zip6, alg)

	_, err = parseCompressAlgorithm("bogus")
	assert.Error(t, err)
}

func TestToIncludeRulesProducesExactGlobRules(t *testing.T) {
	rules := toIncludeRules([]string{"/srv/*.db", "/etc/hosts"})
	require.Len(t, rules, 2)
	for i, r := range rules {
		assert.Equal(t, packer.Glob, r.Type)
		assert.Equal(t, packer.Exact, r.Mode)
		assert.Equal(t, []string{"/srv/*.db", "/etc/hosts"}[i], r.Pattern)
	}
}

func TestReadKeyMaterialPrefersFileOverLiteral(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.b64")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0600))

	got, err := readKeyMaterial(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = readKeyMaterial("inline-literal")
	require.NoError(t, err)
	assert.Equal(t, "inline-literal", got)
}

func TestWrapAndUnwrapSessionPasswordRoundTrip(t *testing.T) {
	kp, err := keystore.Generate(1024)
	require.NoError(t, err)

	pub, err := kp.ExportPublic()
	require.NoError(t, err)
	priv, err := kp.Export()
	require.NoError(t, err)

	password, envelopeB64, err := wrapSessionPassword(pub)
	require.NoError(t, err)

	recovered, err := unwrapSessionPassword(priv, envelopeB64)
	require.NoError(t, err)

	assert.Equal(t, password.Length(), recovered.Length())
	for i := 0; i < password.Length(); i++ {
		assert.Equal(t, password.At(i), recovered.At(i))
	}
}

package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bar/internal/compressor"
	"bar/internal/secmem"
	"bar/internal/storage"
	"bar/internal/symcipher"
)

func TestWriteKeyEnvelopeRoundTrip(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "wrapped.bar")
	password := secmem.FromString("session password stand-in")
	opts := storage.Options{}

	w, err := NewWriter(stem, 0, compressor.None, symcipher.AES128, password, opts)
	require.NoError(t, err)
	require.NoError(t, w.WriteKeyEnvelope("ZW52ZWxvcGU="))
	writeOneFile(t, w, "payload.bin", []byte("hello envelope"))
	require.NoError(t, w.Close())

	r, err := NewReader(stem, password, opts)
	require.NoError(t, err)
	defer r.Close()

	envelope, err := r.ReadKeyEnvelope()
	require.NoError(t, err)
	assert.Equal(t, "ZW52ZWxvcGU=", envelope)

	meta, _, partSize, err := r.ReadFile()
	require.NoError(t, err)
	assert.Equal(t, "payload.bin", meta.Name)
	buf := make([]byte, partSize)
	n, err := r.ReadFileData(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello envelope", string(buf[:n]))
}

func TestReadKeyEnvelopeWithoutOneFails(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "unwrapped.bar")
	password := secmem.FromString("plain password")
	opts := storage.Options{}

	w, err := NewWriter(stem, 0, compressor.None, symcipher.AES128, password, opts)
	require.NoError(t, err)
	writeOneFile(t, w, "payload.bin", []byte("no envelope here"))
	require.NoError(t, w.Close())

	r, err := NewReader(stem, password, opts)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadKeyEnvelope()
	assert.ErrorIs(t, err, ErrNoKeyChunk)
}

package packer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bar/internal/archive"
	"bar/internal/compressor"
	"bar/internal/secmem"
	"bar/internal/storage"
	"bar/internal/symcipher"
)

func TestPackerEndToEndCollectAndRestore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"docs/a.txt": "hello world",
		"docs/b.txt": "goodbye world",
		"docs/c.bak": "ignore me",
	})

	q := NewQueue(8)
	c, err := NewCollector(
		[]IncludeRule{{Pattern: filepath.Join(root, "docs", "*.txt"), Type: Glob, Mode: Exact}},
		nil, q, false,
	)
	require.NoError(t, err)

	stem := filepath.Join(t.TempDir(), "out.bar")
	password := secmem.FromString("hunter2")
	w, err := archive.NewWriter(stem, 0, compressor.Zip6, symcipher.AES256, password, storage.Options{})
	require.NoError(t, err)
	p := NewPacker(w, q)

	collectErr := make(chan error, 1)
	go func() { collectErr <- c.Run() }()

	var packErrs []string
	require.NoError(t, p.Run(func(name string, err error) { packErrs = append(packErrs, name) }))
	require.NoError(t, <-collectErr)
	require.NoError(t, w.Close())

	assert.Empty(t, packErrs)
	assert.Equal(t, 2, p.Packed)
	assert.Equal(t, int64(len("hello world")+len("goodbye world")), p.Bytes)

	r, err := archive.NewReader(stem, password, storage.Options{})
	require.NoError(t, err)
	defer r.Close()

	names := map[string]bool{}
	for {
		meta, _, partSize, err := r.ReadFile()
		if err == archive.ErrEndOfArchive {
			break
		}
		require.NoError(t, err)
		names[filepath.Base(meta.Name)] = true
		payload := make([]byte, partSize)
		_, err = r.ReadFileData(payload)
		require.NoError(t, err)
		require.NoError(t, r.CloseFile())
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["b.txt"])
	assert.False(t, names["c.bak"])
}

func TestPackerSkipsUnreadableFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"ok.txt": "fine"})

	q := NewQueue(4)
	q.Push(filepath.Join(root, "ok.txt"))
	q.Push(filepath.Join(root, "missing.txt"))
	q.Close()

	stem := filepath.Join(t.TempDir(), "out.bar")
	password := secmem.FromString("hunter2")
	w, err := archive.NewWriter(stem, 0, compressor.None, symcipher.AES128, password, storage.Options{})
	require.NoError(t, err)
	p := NewPacker(w, q)

	var failed []string
	require.NoError(t, p.Run(func(name string, err error) { failed = append(failed, name) }))
	require.NoError(t, w.Close())

	assert.Equal(t, 1, p.Packed)
	assert.Equal(t, 1, p.Skipped)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0], "missing.txt")
}

func TestPackerSkipsNonRegularFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "subdir")
	require.NoError(t, os.MkdirAll(dir, 0755))

	q := NewQueue(2)
	q.Push(dir)
	q.Close()

	stem := filepath.Join(t.TempDir(), "out.bar")
	password := secmem.FromString("hunter2")
	w, err := archive.NewWriter(stem, 0, compressor.None, symcipher.AES128, password, storage.Options{})
	require.NoError(t, err)
	p := NewPacker(w, q)

	require.NoError(t, p.Run(nil))
	require.NoError(t, w.Close())
	assert.Equal(t, 0, p.Packed)
	assert.Equal(t, 0, p.Skipped)
}

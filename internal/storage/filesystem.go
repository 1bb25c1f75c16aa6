package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// filesystemBackend stores archive parts as ordinary files on the local
// filesystem, the default back end when a storage URL carries no
// scheme.
type filesystemBackend struct {
	file *os.File
	eof  bool
}

func newFilesystemBackend() *filesystemBackend {
	return &filesystemBackend{}
}

func (b *filesystemBackend) Create(path string, sizeHint int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if sizeHint > 0 {
		_ = f.Truncate(sizeHint)
		_, _ = f.Seek(0, io.SeekStart)
	}
	b.file = f
	return nil
}

func (b *filesystemBackend) Open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	b.file = f
	return nil
}

func (b *filesystemBackend) Close() error {
	if b.file == nil {
		return nil
	}
	return b.file.Close()
}

func (b *filesystemBackend) EOF() bool { return b.eof }

func (b *filesystemBackend) Read(buf []byte) error {
	n, err := io.ReadFull(b.file, buf)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		b.eof = true
	}
	if n == len(buf) {
		return nil
	}
	return err
}

func (b *filesystemBackend) Write(buf []byte) error {
	_, err := b.file.Write(buf)
	return err
}

func (b *filesystemBackend) Tell() (uint64, error) {
	pos, err := b.file.Seek(0, io.SeekCurrent)
	return uint64(pos), err
}

func (b *filesystemBackend) Seek(offset uint64) error {
	b.eof = false
	_, err := b.file.Seek(int64(offset), io.SeekStart)
	return err
}

func (b *filesystemBackend) GetSize() (int64, error) {
	info, err := b.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (b *filesystemBackend) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

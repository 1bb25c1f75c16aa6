// Package packer implements the collection side of archive creation:
// walking the filesystem for names matching a set of include/exclude
// patterns and streaming each one into an archive.Writer.
package packer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bar/internal/archive"
)

// StatFunc abstracts os.Lstat so tests can substitute synthetic
// metadata without touching the filesystem.
type StatFunc func(name string) (os.FileInfo, error)

// Packer pops file names off a Queue and writes each one's metadata
// and payload into an archive.Writer.
type Packer struct {
	writer   *archive.Writer
	queue    *Queue
	stat     StatFunc
	open     func(name string) (io.ReadCloser, error)
	blockSize int

	Packed  int
	Skipped int
	Bytes   int64
}

// NewPacker returns a Packer writing into w, consuming names from q.
func NewPacker(w *archive.Writer, q *Queue) *Packer {
	return &Packer{
		writer: w,
		queue:  q,
		stat:   os.Lstat,
		open:   func(name string) (io.ReadCloser, error) { return os.Open(name) },
		blockSize: 64 * 1024,
	}
}

// Run drains the queue until the Collector closes it, packing every
// regular file it sees. A per-file error is recorded via onError (if
// non-nil) and the name is skipped rather than aborting the whole run.
func (p *Packer) Run(onError func(name string, err error)) error {
	for {
		name, ok := p.queue.Pop()
		if !ok {
			return nil
		}
		if err := p.packOne(name); err != nil {
			p.Skipped++
			if onError != nil {
				onError(name, err)
			}
			continue
		}
		p.Packed++
	}
}

func (p *Packer) packOne(name string) error {
	info, err := p.stat(name)
	if err != nil {
		return fmt.Errorf("packer: stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	meta := archive.Metadata{
		Size:       uint64(info.Size()),
		MTime:      uint64(info.ModTime().Unix()),
		ATime:      uint64(info.ModTime().Unix()),
		CTime:      uint64(info.ModTime().Unix()),
		Permission: uint32(info.Mode().Perm()),
		Name:       filepath.ToSlash(name),
	}
	meta.UID, meta.GID = ownershipOf(info)

	f, err := p.open(name)
	if err != nil {
		return fmt.Errorf("packer: open %s: %w", name, err)
	}
	defer f.Close()

	if err := p.writer.NewFile(meta); err != nil {
		return fmt.Errorf("packer: new file %s: %w", name, err)
	}

	buf := make([]byte, p.blockSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if werr := p.writer.WriteFileData(buf[:n]); werr != nil {
				return fmt.Errorf("packer: write %s: %w", name, werr)
			}
			p.Bytes += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("packer: read %s: %w", name, rerr)
		}
	}

	if err := p.writer.CloseFile(); err != nil {
		return fmt.Errorf("packer: close file %s: %w", name, err)
	}
	p.Packed++
	return nil
}


package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// stagedBackend implements the DVD and DEVICE back ends. Writes
// accumulate in a local staging directory; nothing reaches the medium
// until PostProcess runs the external-command pipeline that burns or
// copies the staged files, with macro substitution for the commands
// that do the actual work.
type stagedBackend struct {
	target Target

	stagingDir string
	file       *os.File
	volumeSize int64
	staged     int64

	commands VolumeCommands
	volume   int
}

// VolumeCommands names the external commands run at each step of the
// DVD/Device write pipeline, each with macro substitution applied
// before exec.Command runs it. A blank command skips that step (ecc is
// typically blank unless ECC was requested).
type VolumeCommands struct {
	ImagePreProcess  string
	Image            string
	ImagePostProcess string
	ECC              string
	WritePreProcess  string
	Write            string
	WritePostProcess string
}

// macros available for substitution in VolumeCommands entries.
type macros struct {
	device  string
	file    string
	image   string
	number  int
	sectors int64
}

func newStagedBackend(target Target) *stagedBackend {
	return &stagedBackend{target: target}
}

func (b *stagedBackend) Create(path string, sizeHint int64) error {
	dir, err := os.MkdirTemp("", "bar-volume-stage-*")
	if err != nil {
		return fmt.Errorf("storage: staging dir: %w", err)
	}
	b.stagingDir = dir
	return b.openStagingFile(path)
}

func (b *stagedBackend) openStagingFile(path string) error {
	full := filepath.Join(b.stagingDir, filepath.Base(path))
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	b.file = f
	return nil
}

func (b *stagedBackend) Open(path string) error {
	return fmt.Errorf("storage: reading from a %s back end is not supported, restore from staged media instead", b.target.Kind)
}

func (b *stagedBackend) Close() error {
	if b.file != nil {
		if err := b.file.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (b *stagedBackend) EOF() bool { return false }

func (b *stagedBackend) Read(buf []byte) error {
	return ErrNotSupported
}

func (b *stagedBackend) Write(buf []byte) error {
	n, err := b.file.Write(buf)
	if err != nil {
		return err
	}
	b.staged += int64(n)
	if b.volumeSize > 0 && b.staged >= b.volumeSize {
		return b.PostProcess(false)
	}
	return nil
}

func (b *stagedBackend) Tell() (uint64, error) {
	pos, err := b.file.Seek(0, io.SeekCurrent)
	return uint64(pos), err
}

func (b *stagedBackend) Seek(offset uint64) error {
	_, err := b.file.Seek(int64(offset), io.SeekStart)
	return err
}

func (b *stagedBackend) GetSize() (int64, error) {
	info, err := b.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// PostProcess runs the image/write pipeline against the staged files.
// Called automatically once staged bytes reach the configured volume
// size, or explicitly by the caller with final=true to flush a
// shorter trailing volume.
func (b *stagedBackend) PostProcess(final bool) error {
	stagedFiles, err := filepath.Glob(filepath.Join(b.stagingDir, "*"))
	if err != nil {
		return fmt.Errorf("storage: listing staged files: %w", err)
	}
	var totalBytes int64
	for _, f := range stagedFiles {
		if info, err := os.Stat(f); err == nil {
			totalBytes += info.Size()
		}
	}

	m := macros{
		device:  b.target.Device,
		file:    strings.Join(stagedFiles, " "),
		image:   filepath.Join(b.stagingDir, "image.iso"),
		number:  b.volume,
		sectors: totalBytes / 2048,
	}

	steps := []string{b.commands.ImagePreProcess, b.commands.Image, b.commands.ImagePostProcess}
	if b.commands.ECC != "" {
		steps = append(steps, b.commands.ECC)
	}
	steps = append(steps, b.commands.WritePreProcess, b.commands.Write, b.commands.WritePostProcess)

	for _, step := range steps {
		if step == "" {
			continue
		}
		if err := runVolumeCommand(step, m); err != nil {
			return err
		}
	}

	b.volume++
	b.staged = 0
	return nil
}

func runVolumeCommand(template string, m macros) error {
	cmdline := substituteMacros(template, m)
	cmd := exec.CommandContext(context.Background(), "/bin/sh", "-c", cmdline)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("storage: volume command %q failed: %w (%s)", cmdline, err, output)
	}
	return nil
}

func substituteMacros(template string, m macros) string {
	replacer := strings.NewReplacer(
		"%device", m.device,
		"%file", m.file,
		"%image", m.image,
		"%number", strconv.Itoa(m.number),
		"%sectors", strconv.FormatInt(m.sectors, 10),
	)
	return replacer.Replace(template)
}

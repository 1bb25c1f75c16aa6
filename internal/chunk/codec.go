package chunk

import (
	"encoding/binary"
	"fmt"

	"bar/internal/symcipher"
)

// HeaderSize is the on-disk size of a chunk header: a 4-byte id followed
// by an 8-byte size, matching CHUNK_HEADER_SIZE (4+8) in chunks.h. The
// header's start offset is tracked in memory only, never serialized.
const HeaderSize = 4 + 8

// IO is the five-callback file abstraction the codec is bound to:
// sequential byte-oriented read/write plus random-access tell/seek.
// Implementations live in internal/storage.
type IO interface {
	EOF() bool
	Read(buf []byte) error
	Write(buf []byte) error
	Tell() (uint64, error)
	Seek(offset uint64) error
}

// Header is one chunk's id/size/offset triple.
type Header struct {
	ID     ID
	Size   uint64
	Offset uint64
}

// Next reads the next chunk header at io's current position.
func Next(io IO) (Header, error) {
	offset, err := io.Tell()
	if err != nil {
		return Header{}, fmt.Errorf("chunk: tell: %w", err)
	}
	var raw [HeaderSize]byte
	if err := io.Read(raw[:]); err != nil {
		return Header{}, fmt.Errorf("chunk: read header: %w", err)
	}
	return Header{
		ID:     ID(binary.BigEndian.Uint32(raw[0:4])),
		Size:   binary.BigEndian.Uint64(raw[4:12]),
		Offset: offset,
	}, nil
}

// Skip seeks past header's payload without reading it.
func Skip(io IO, header Header) error {
	return io.Seek(header.Offset + HeaderSize + header.Size)
}

// Eof reports whether io has no more top-level chunks.
func Eof(io IO) bool { return io.EOF() }

// Info is an open chunk scope: either being written (mode Write) or
// read (mode Read), optionally nested inside a parent Info.
type Info struct {
	io        IO
	parent    *Info
	mode      mode
	alignment uint64
	cipher    *symcipher.Cipher // nil means the chunk's definition is stored in the clear

	id         ID
	definition Definition
	size       uint64 // declared/finalized payload size, without header
	offset     uint64 // header start offset
}

type mode int

const (
	modeRead mode = iota
	modeWrite
)

// end returns the absolute offset one past this chunk's payload.
func (info *Info) end() uint64 { return info.offset + HeaderSize + info.size }

func alignUp(n, alignment uint64) uint64 {
	if alignment == 0 {
		return n
	}
	rem := n % alignment
	if rem == 0 {
		return n
	}
	return n + (alignment - rem)
}

// Create opens a new chunk for writing at io's current position: it
// writes a placeholder header, then the (optionally aligned and
// encrypted) serialized definition.
func Create(parent *Info, io IO, alignment uint64, cipher *symcipher.Cipher, id ID, def Definition) (*Info, error) {
	offset, err := io.Tell()
	if err != nil {
		return nil, fmt.Errorf("chunk: tell: %w", err)
	}

	var placeholder [HeaderSize]byte
	if err := io.Write(placeholder[:]); err != nil {
		return nil, fmt.Errorf("chunk: write placeholder header: %w", err)
	}

	if err := writeDefinition(io, alignment, cipher, def); err != nil {
		return nil, err
	}

	return &Info{
		io:         io,
		parent:     parent,
		mode:       modeWrite,
		alignment:  alignment,
		cipher:     cipher,
		id:         id,
		definition: def,
		offset:     offset,
	}, nil
}

func writeDefinition(io IO, alignment uint64, cipher *symcipher.Cipher, def Definition) error {
	raw, err := def.Marshal()
	if err != nil {
		return err
	}
	padded := make([]byte, alignUp(uint64(len(raw)), alignment))
	copy(padded, raw)

	if cipher != nil && len(padded) > 0 {
		cipher.Reset(0)
		if err := cipher.Encrypt(padded); err != nil {
			return fmt.Errorf("chunk: encrypt definition: %w", err)
		}
	}
	if err := io.Write(padded); err != nil {
		return fmt.Errorf("chunk: write definition: %w", err)
	}
	return nil
}

// Open opens an existing chunk for reading: header must already have
// been produced by Next/NextSub and have the expected id.
func Open(parent *Info, io IO, header Header, expectedID ID, alignment uint64, cipher *symcipher.Cipher, def Definition) (*Info, error) {
	if header.ID != expectedID {
		return nil, fmt.Errorf("chunk: unexpected chunk id %v, want %v", header.ID, expectedID)
	}

	rawLen := uint64(def.Size())
	paddedLen := alignUp(rawLen, alignment)
	if paddedLen > header.Size {
		return nil, fmt.Errorf("chunk: definition length %d exceeds declared chunk size %d", paddedLen, header.Size)
	}

	padded := make([]byte, paddedLen)
	if paddedLen > 0 {
		if err := io.Read(padded); err != nil {
			return nil, fmt.Errorf("chunk: read definition: %w", err)
		}
		if cipher != nil {
			cipher.Reset(0)
			if err := cipher.Decrypt(padded); err != nil {
				return nil, fmt.Errorf("chunk: decrypt definition: %w", err)
			}
		}
		if err := def.Unmarshal(padded[:rawLen]); err != nil {
			return nil, fmt.Errorf("chunk: unmarshal definition: %w", err)
		}
	}

	return &Info{
		io:         io,
		parent:     parent,
		mode:       modeRead,
		alignment:  alignment,
		cipher:     cipher,
		id:         header.ID,
		definition: def,
		size:       header.Size,
		offset:     header.Offset,
	}, nil
}

// Update rewrites info's definition bytes in place (the new serialized
// form must be the same length as the original, which it is by
// construction since the definition's field widths never change).
func Update(info *Info, def Definition) error {
	if info.mode != modeWrite {
		return fmt.Errorf("chunk: update on a chunk not open for writing")
	}
	cur, err := info.io.Tell()
	if err != nil {
		return fmt.Errorf("chunk: tell: %w", err)
	}
	if err := info.io.Seek(info.offset + HeaderSize); err != nil {
		return fmt.Errorf("chunk: seek to definition: %w", err)
	}
	if err := writeDefinition(info.io, info.alignment, info.cipher, def); err != nil {
		return err
	}
	info.definition = def
	return info.io.Seek(cur)
}

// Close finalizes a chunk opened with Create: it computes the real
// payload size from the current stream position, seeks back to the
// header, writes the real id and size, then restores the stream
// position to just past the chunk.
func Close(info *Info) error {
	if info.mode != modeWrite {
		return nil
	}
	cur, err := info.io.Tell()
	if err != nil {
		return fmt.Errorf("chunk: tell: %w", err)
	}
	info.size = cur - info.offset - HeaderSize

	var raw [HeaderSize]byte
	binary.BigEndian.PutUint32(raw[0:4], uint32(info.id))
	binary.BigEndian.PutUint64(raw[4:12], info.size)

	if err := info.io.Seek(info.offset); err != nil {
		return fmt.Errorf("chunk: seek to header: %w", err)
	}
	if err := info.io.Write(raw[:]); err != nil {
		return fmt.Errorf("chunk: write header: %w", err)
	}
	return info.io.Seek(cur)
}

// NextSub reads the next chunk header nested inside info, erroring if
// it would extend past info's declared end.
func NextSub(info *Info) (Header, error) {
	h, err := Next(info.io)
	if err != nil {
		return Header{}, err
	}
	if h.Offset+HeaderSize+h.Size > info.end() {
		return Header{}, fmt.Errorf("chunk: sub-chunk %v extends past parent boundary", h.ID)
	}
	return h, nil
}

// SkipSub skips a sub-chunk previously read with NextSub.
func SkipSub(info *Info, header Header) error { return Skip(info.io, header) }

// EofSub reports whether info has no more sub-chunks to read.
func EofSub(info *Info) bool {
	pos, err := info.io.Tell()
	if err != nil {
		return true
	}
	return pos >= info.end() || info.io.EOF()
}

// ReadData reads len(buf) raw bytes from info's payload, bypassing the
// definition framing entirely: FILE_DATA's bulk content is written and
// read as plain bytes, already encrypted/decrypted by the caller's
// cipher at the block level before this call.
func ReadData(info *Info, buf []byte) error {
	return info.io.Read(buf)
}

// WriteData writes len(buf) raw bytes into info's payload.
func WriteData(info *Info, buf []byte) error {
	return info.io.Write(buf)
}

// SkipData advances size bytes forward without reading them.
func SkipData(info *Info, size uint64) error {
	cur, err := info.io.Tell()
	if err != nil {
		return fmt.Errorf("chunk: tell: %w", err)
	}
	return info.io.Seek(cur + size)
}

// ID returns the chunk's id.
func (info *Info) ID() ID { return info.id }

// Size returns the chunk's declared or finalized payload size.
func (info *Info) Size() uint64 { return info.size }

// Offset returns the chunk header's start offset.
func (info *Info) Offset() uint64 { return info.offset }

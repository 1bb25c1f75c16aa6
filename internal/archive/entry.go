// Package archive implements the writer and reader sides of a BAR
// archive: the FILE/FILE_ENTRY/FILE_DATA chunk tree, part rotation, and
// the compress+encrypt / decrypt+decompress pipeline bridging the
// chunk codec to file payload bytes.
package archive

import (
	"bar/internal/chunk"
)

// Metadata is the per-file information stored in a FILE_ENTRY chunk.
type Metadata struct {
	Size       uint64
	ATime      uint64
	MTime      uint64
	CTime      uint64
	UID        uint32
	GID        uint32
	Permission uint32
	Name       string
}

// fileFields describes the FILE chunk's own payload: the
// compression and encryption algorithm IDs applied to everything
// nested beneath it.
type fileFields struct {
	CompressAlgorithm uint8
	CryptAlgorithm    uint8
}

func (f *fileFields) definition() chunk.Definition {
	return chunk.Definition{
		{Kind: chunk.KindUint8, Uint8Ptr: &f.CompressAlgorithm},
		{Kind: chunk.KindUint8, Uint8Ptr: &f.CryptAlgorithm},
	}
}

// entryFields mirrors Metadata in the fixed field order the wire
// format uses.
type entryFields struct {
	Size       uint64
	ATime      uint64
	MTime      uint64
	CTime      uint64
	UID        uint32
	GID        uint32
	Permission uint32
	Name       string
}

func (e *entryFields) definition() chunk.Definition {
	return chunk.Definition{
		{Kind: chunk.KindUint64, Uint64Ptr: &e.Size},
		{Kind: chunk.KindUint64, Uint64Ptr: &e.ATime},
		{Kind: chunk.KindUint64, Uint64Ptr: &e.MTime},
		{Kind: chunk.KindUint64, Uint64Ptr: &e.CTime},
		{Kind: chunk.KindUint32, Uint32Ptr: &e.UID},
		{Kind: chunk.KindUint32, Uint32Ptr: &e.GID},
		{Kind: chunk.KindUint32, Uint32Ptr: &e.Permission},
		{Kind: chunk.KindName, NamePtr: &e.Name},
	}
}

func (e *entryFields) toMetadata() Metadata {
	return Metadata{
		Size: e.Size, ATime: e.ATime, MTime: e.MTime, CTime: e.CTime,
		UID: e.UID, GID: e.GID, Permission: e.Permission, Name: e.Name,
	}
}

func metadataToFields(m Metadata) entryFields {
	return entryFields{
		Size: m.Size, ATime: m.ATime, MTime: m.MTime, CTime: m.CTime,
		UID: m.UID, GID: m.GID, Permission: m.Permission, Name: m.Name,
	}
}

// keyFields is the root-level KEY chunk's payload: the base64-encoded
// RSA envelope wrapping the session password an asymmetrically-wrapped
// archive's FILE chunks are actually keyed with.
type keyFields struct {
	Envelope string
}

func (k *keyFields) definition() chunk.Definition {
	return chunk.Definition{
		{Kind: chunk.KindName, NamePtr: &k.Envelope},
	}
}

// dataFields is the FILE_DATA chunk's own payload: where this
// fragment's stored bytes (the compressor's output, counted before
// block padding) start within the file's stored stream, and how many
// of them it holds. Without compression these equal plaintext offsets
// and lengths.
type dataFields struct {
	PartOffset uint64
	PartSize   uint64
}

func (d *dataFields) definition() chunk.Definition {
	return chunk.Definition{
		{Kind: chunk.KindUint64, Uint64Ptr: &d.PartOffset},
		{Kind: chunk.KindUint64, Uint64Ptr: &d.PartSize},
	}
}

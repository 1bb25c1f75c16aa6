package chunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// FieldKind identifies the on-disk representation of one definition
// field, matching the CHUNK_DATATYPE_* constants in chunks.h.
type FieldKind int

const (
	KindUint8 FieldKind = iota
	KindUint16
	KindUint32
	KindUint64
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindName
	KindData
	KindCRC32
)

// Field binds one definition slot to the Go value it serializes.
// Exactly one of the typed pointer fields is set, chosen by Kind; Data
// fields serialize the bytes *DataPtr currently holds (the caller is
// responsible for sizing the slice before Size/Marshal/Unmarshal are
// called).
type Field struct {
	Kind FieldKind

	Uint8Ptr  *uint8
	Uint16Ptr *uint16
	Uint32Ptr *uint32
	Uint64Ptr *uint64
	Int8Ptr   *int8
	Int16Ptr  *int16
	Int32Ptr  *int32
	Int64Ptr  *int64
	NamePtr   *string
	DataPtr   *[]byte
}

// Definition is an ordered list of fields making up one chunk's payload
// (FILE_ENTRY's metadata fields, FILE's algorithm fields, and so on).
type Definition []Field

// Size computes the serialized payload length for def at its fields'
// current values: names contribute 2+len(name), data fields their
// current length, CRC32 fields a fixed 4 bytes.
func (def Definition) Size() int {
	n := 0
	for _, f := range def {
		switch f.Kind {
		case KindUint8, KindInt8:
			n++
		case KindUint16, KindInt16:
			n += 2
		case KindUint32, KindInt32, KindCRC32:
			n += 4
		case KindUint64, KindInt64:
			n += 8
		case KindName:
			n += 2 + len(*f.NamePtr)
		case KindData:
			n += len(*f.DataPtr)
		}
	}
	return n
}

// Marshal serializes def into a freshly allocated buffer, big-endian,
// with a trailing CRC32 field (if def declares one) computed over every
// byte written before it.
func (def Definition) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range def {
		switch f.Kind {
		case KindUint8:
			buf.WriteByte(*f.Uint8Ptr)
		case KindInt8:
			buf.WriteByte(byte(*f.Int8Ptr))
		case KindUint16:
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], *f.Uint16Ptr)
			buf.Write(b[:])
		case KindInt16:
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(*f.Int16Ptr))
			buf.Write(b[:])
		case KindUint32:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], *f.Uint32Ptr)
			buf.Write(b[:])
		case KindInt32:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(*f.Int32Ptr))
			buf.Write(b[:])
		case KindUint64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], *f.Uint64Ptr)
			buf.Write(b[:])
		case KindInt64:
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(*f.Int64Ptr))
			buf.Write(b[:])
		case KindName:
			name := *f.NamePtr
			if len(name) > 0xFFFF {
				return nil, fmt.Errorf("chunk: name field too long (%d bytes)", len(name))
			}
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(len(name)))
			buf.Write(b[:])
			buf.WriteString(name)
		case KindData:
			buf.Write(*f.DataPtr)
		case KindCRC32:
			sum := crc32.ChecksumIEEE(buf.Bytes())
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], sum)
			buf.Write(b[:])
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes buf into def's bound fields, in declaration order.
// A CRC32 field is validated against the CRC of every byte consumed
// before it; mismatch is a format error.
func (def Definition) Unmarshal(buf []byte) error {
	r := bytes.NewReader(buf)
	consumed := 0
	for _, f := range def {
		switch f.Kind {
		case KindUint8:
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			*f.Uint8Ptr = b
			consumed++
		case KindInt8:
			b, err := r.ReadByte()
			if err != nil {
				return err
			}
			*f.Int8Ptr = int8(b)
			consumed++
		case KindUint16:
			var b [2]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			*f.Uint16Ptr = binary.BigEndian.Uint16(b[:])
			consumed += 2
		case KindInt16:
			var b [2]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			*f.Int16Ptr = int16(binary.BigEndian.Uint16(b[:]))
			consumed += 2
		case KindUint32:
			var b [4]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			*f.Uint32Ptr = binary.BigEndian.Uint32(b[:])
			consumed += 4
		case KindInt32:
			var b [4]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			*f.Int32Ptr = int32(binary.BigEndian.Uint32(b[:]))
			consumed += 4
		case KindUint64:
			var b [8]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			*f.Uint64Ptr = binary.BigEndian.Uint64(b[:])
			consumed += 8
		case KindInt64:
			var b [8]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			*f.Int64Ptr = int64(binary.BigEndian.Uint64(b[:]))
			consumed += 8
		case KindName:
			var lb [2]byte
			if _, err := readExact(r, lb[:]); err != nil {
				return err
			}
			nameLen := binary.BigEndian.Uint16(lb[:])
			nameBuf := make([]byte, nameLen)
			if _, err := readExact(r, nameBuf); err != nil {
				return err
			}
			*f.NamePtr = string(nameBuf)
			consumed += 2 + int(nameLen)
		case KindData:
			if _, err := readExact(r, *f.DataPtr); err != nil {
				return err
			}
			consumed += len(*f.DataPtr)
		case KindCRC32:
			want := crc32.ChecksumIEEE(buf[:consumed])
			var b [4]byte
			if _, err := readExact(r, b[:]); err != nil {
				return err
			}
			got := binary.BigEndian.Uint32(b[:])
			if got != want {
				return fmt.Errorf("chunk: CRC32 mismatch: got %08x want %08x", got, want)
			}
			consumed += 4
		}
	}
	return nil
}

func readExact(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, fmt.Errorf("chunk: unexpected end of definition data")
		}
	}
	return n, nil
}

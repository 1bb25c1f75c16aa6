// Package compressor implements the streaming deflate/inflate layer:
// byte-at-a-time plaintext input/output backed by a compressed-side ring
// buffer whose fill level drives the block-granular handoff to the
// cipher engine and chunk writer.
package compressor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// Algorithm identifies a compression algorithm: none, or deflate at a
// given level.
type Algorithm int

const (
	None Algorithm = iota
	Zip0
	Zip1
	Zip2
	Zip3
	Zip4
	Zip5
	Zip6
	Zip7
	Zip8
	Zip9
)

// Level returns the deflate compression level Algorithm maps to, or -1
// for None (caller must not pass None to a deflate constructor).
func (a Algorithm) Level() int {
	switch a {
	case Zip0:
		return flate.NoCompression
	case Zip1, Zip2, Zip3, Zip4, Zip5, Zip6, Zip7, Zip8, Zip9:
		return int(a - Zip0)
	default:
		return -1
	}
}

// ringBuffer is an unbounded byte FIFO; BAR's compressed-side buffer has
// no fixed capacity bound in the original (it grows with deflate output
// until drained by block-sized reads), so a bytes.Buffer is the natural
// fit rather than a fixed-capacity circular array.
type ringBuffer struct {
	buf bytes.Buffer
}

func (r *ringBuffer) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *ringBuffer) Len() int                     { return r.buf.Len() }

func (r *ringBuffer) Read(p []byte) (int, error) { return r.buf.Read(p) }

// Compressor drives deflate: callers feed plaintext one byte at a time
// and drain fixed-size blocks of compressed output.
type Compressor struct {
	alg         Algorithm
	blockLength int

	plain      bytes.Buffer
	compressed ringBuffer

	writer    *flate.Writer
	flushed   bool
	totalIn   uint64
	totalOut  uint64
}

// NewCompressor builds a Compressor for alg, whose compressed-side block
// granularity is blockLength (normally the cipher engine's block
// length, or a small constant with encryption disabled).
func NewCompressor(alg Algorithm, blockLength int) (*Compressor, error) {
	c := &Compressor{alg: alg, blockLength: blockLength}
	if alg == None {
		return c, nil
	}
	w, err := flate.NewWriter(&c.compressed.buf, alg.Level())
	if err != nil {
		return nil, fmt.Errorf("compressor: new writer: %w", err)
	}
	c.writer = w
	return c, nil
}

// DeflateByte appends one plaintext byte. It is an error to call after
// Flush.
func (c *Compressor) DeflateByte(b byte) error {
	if c.flushed {
		return fmt.Errorf("compressor: deflate after flush")
	}
	c.totalIn++
	if c.alg == None {
		return c.compressed.buf.WriteByte(b)
	}
	if _, err := c.writer.Write([]byte{b}); err != nil {
		return fmt.Errorf("compressor: deflate byte: %w", err)
	}
	return nil
}

// Flush marks end of input, draining any buffered deflate state into the
// compressed-side buffer. Further DeflateByte calls are rejected.
func (c *Compressor) Flush() error {
	if c.flushed {
		return nil
	}
	c.flushed = true
	if c.alg == None {
		return nil
	}
	if err := c.writer.Close(); err != nil {
		return fmt.Errorf("compressor: flush: %w", err)
	}
	return nil
}

// BlockIsFull reports whether the compressed-side buffer holds at least
// one full block.
func (c *Compressor) BlockIsFull() bool { return c.compressed.Len() >= c.blockLength }

// BlockIsEmpty reports whether the compressed-side buffer is empty.
func (c *Compressor) BlockIsEmpty() bool { return c.compressed.Len() == 0 }

// GetBlock drains exactly blockLength bytes (or whatever remains, if
// less, after Flush) from the compressed side into buf, returning the
// number of bytes copied.
func (c *Compressor) GetBlock(buf []byte) (int, error) {
	n := len(buf)
	if n > c.blockLength {
		n = c.blockLength
	}
	got, err := io.ReadFull(&c.compressed, buf[:n])
	if err != nil && err != io.ErrUnexpectedEOF {
		return got, fmt.Errorf("compressor: get block: %w", err)
	}
	c.totalOut += uint64(got)
	return got, nil
}

// TotalIn returns the number of plaintext bytes fed in so far.
func (c *Compressor) TotalIn() uint64 { return c.totalIn }

// TotalOut returns the number of compressed bytes drained so far.
func (c *Compressor) TotalOut() uint64 { return c.totalOut }

// Decompressor is the inverse of Compressor: callers feed fixed-size
// compressed blocks (PutBlock) and drain plaintext one byte at a time
// (InflateByte).
//
// A deflate block routinely spans more than one PutBlock-sized chunk,
// so the compressed stream is accumulated whole rather than inflated
// incrementally: feeding flate.Reader from a buffer that intermittently
// runs dry makes it see a premature end of stream and latch that error
// permanently, even once more bytes are appended. Finish marks the
// point at which the accumulated bytes are known to be the complete
// stream and runs inflate to completion.
type Decompressor struct {
	alg         Algorithm
	blockLength int

	compressed bytes.Buffer
	plain      ringBuffer

	finished bool
	totalIn  uint64
	totalOut uint64
}

// NewDecompressor builds a Decompressor mirroring NewCompressor.
func NewDecompressor(alg Algorithm, blockLength int) *Decompressor {
	return &Decompressor{alg: alg, blockLength: blockLength}
}

// PutBlock hands a fixed-size (up to blockLength) compressed block to
// the decompressor. The bytes are buffered; call Finish once every
// block for the stream has been supplied to make the decompressed
// output available via InflateByte.
func (d *Decompressor) PutBlock(block []byte) error {
	d.totalIn += uint64(len(block))
	if d.alg == None {
		n, err := d.plain.Write(block)
		d.totalOut += uint64(n)
		return err
	}
	if _, err := d.compressed.Write(block); err != nil {
		return fmt.Errorf("decompressor: put block: %w", err)
	}
	return nil
}

// Finish signals that every compressed block has been supplied via
// PutBlock, runs the accumulated stream through inflate to completion,
// and makes the result available via InflateByte. Safe to call more
// than once; only the first call does any work.
func (d *Decompressor) Finish() error {
	if d.alg == None || d.finished {
		return nil
	}
	d.finished = true
	reader := flate.NewReader(&d.compressed)
	defer reader.Close()
	n, err := io.Copy(&d.plain.buf, reader)
	d.totalOut += uint64(n)
	if err != nil {
		return fmt.Errorf("decompressor: inflate: %w", err)
	}
	return nil
}

// InflateByte returns one plaintext byte, or io.EOF if none is currently
// buffered. For compressed algorithms, no output is available until
// Finish has been called.
func (d *Decompressor) InflateByte() (byte, error) {
	return d.plain.buf.ReadByte()
}

// TotalIn returns the number of compressed bytes fed in so far.
func (d *Decompressor) TotalIn() uint64 { return d.totalIn }

// TotalOut returns the number of plaintext bytes produced so far.
func (d *Decompressor) TotalOut() uint64 { return d.totalOut }

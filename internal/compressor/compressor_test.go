package compressor

import (
	"io"
	"testing"
)

func roundTrip(t *testing.T, alg Algorithm, blockLength int, data []byte) []byte {
	t.Helper()

	c, err := NewCompressor(alg, blockLength)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	for _, b := range data {
		if err := c.DeflateByte(b); err != nil {
			t.Fatalf("DeflateByte: %v", err)
		}
	}
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	d := NewDecompressor(alg, blockLength)
	block := make([]byte, blockLength)
	for !c.BlockIsEmpty() {
		n, err := c.GetBlock(block)
		if err != nil {
			t.Fatalf("GetBlock: %v", err)
		}
		if n == 0 {
			break
		}
		if err := d.PutBlock(block[:n]); err != nil {
			t.Fatalf("PutBlock: %v", err)
		}
	}
	if err := d.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	var out []byte
	for {
		b, err := d.InflateByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("InflateByte: %v", err)
		}
		out = append(out, b)
	}
	return out
}

func TestRoundTripNone(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	got := roundTrip(t, None, 16, data)
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestRoundTripDeflateLevels(t *testing.T) {
	data := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaabbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	for _, alg := range []Algorithm{Zip0, Zip1, Zip5, Zip9} {
		got := roundTrip(t, alg, 16, data)
		if string(got) != string(data) {
			t.Fatalf("alg %v: got %q, want %q", alg, got, data)
		}
	}
}

func TestBlockIsFullThreshold(t *testing.T) {
	c, err := NewCompressor(None, 8)
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	if !c.BlockIsEmpty() {
		t.Fatalf("expected empty compressor on construction")
	}
	for i := 0; i < 8; i++ {
		if err := c.DeflateByte(byte(i)); err != nil {
			t.Fatalf("DeflateByte: %v", err)
		}
	}
	if !c.BlockIsFull() {
		t.Fatalf("expected BlockIsFull after 8 bytes with blockLength 8")
	}
}

func TestDeflateAfterFlushFails(t *testing.T) {
	c, _ := NewCompressor(Zip5, 16)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := c.DeflateByte('x'); err == nil {
		t.Fatalf("expected error deflating after flush")
	}
}

func TestCountersAreMonotonic(t *testing.T) {
	c, _ := NewCompressor(Zip3, 8)
	data := []byte("monotonic counters test data, repeated repeated repeated")
	for _, b := range data {
		_ = c.DeflateByte(b)
	}
	_ = c.Flush()

	var lastOut uint64
	block := make([]byte, 8)
	for !c.BlockIsEmpty() {
		n, err := c.GetBlock(block)
		if err != nil {
			t.Fatalf("GetBlock: %v", err)
		}
		if n == 0 {
			break
		}
		if c.TotalOut() < lastOut {
			t.Fatalf("TotalOut went backwards")
		}
		lastOut = c.TotalOut()
	}
	if c.TotalIn() != uint64(len(data)) {
		t.Fatalf("TotalIn() = %d, want %d", c.TotalIn(), len(data))
	}
}

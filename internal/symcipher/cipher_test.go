package symcipher

import (
	"bytes"
	"testing"

	"bar/internal/secmem"
)

func TestRoundTripWholeBlocks(t *testing.T) {
	for _, alg := range []Algorithm{None, ThreeDES, CAST5, Blowfish, AES128, AES192, AES256, Twofish128, Twofish256} {
		pw := secmem.FromString("correcthorsebatterystaple")
		enc, err := New(alg, pw)
		if err != nil {
			t.Fatalf("%v: New: %v", alg, err)
		}
		dec, err := New(alg, pw)
		if err != nil {
			t.Fatalf("%v: New: %v", alg, err)
		}

		bl := enc.BlockLength()
		plain := bytes.Repeat([]byte("x"), bl*3)
		buf := append([]byte(nil), plain...)

		if err := enc.Encrypt(buf); err != nil {
			t.Fatalf("%v: Encrypt: %v", alg, err)
		}
		if alg != None && bytes.Equal(buf, plain) {
			t.Fatalf("%v: ciphertext equals plaintext", alg)
		}
		if err := dec.Decrypt(buf); err != nil {
			t.Fatalf("%v: Decrypt: %v", alg, err)
		}
		if !bytes.Equal(buf, plain) {
			t.Fatalf("%v: round trip mismatch: got %x want %x", alg, buf, plain)
		}
	}
}

func TestRoundTripCiphertextStealing(t *testing.T) {
	pw := secmem.FromString("hunter2hunter2")
	for _, alg := range []Algorithm{AES128, Blowfish, CAST5} {
		bl, _ := BlockLength(alg)
		for _, extra := range []int{1, bl - 1, bl + 3} {
			enc, _ := New(alg, pw)
			dec, _ := New(alg, pw)

			plain := bytes.Repeat([]byte("y"), bl*2+extra)
			buf := append([]byte(nil), plain...)

			if err := enc.Encrypt(buf); err != nil {
				t.Fatalf("%v len=%d: Encrypt: %v", alg, len(plain), err)
			}
			if len(buf) != len(plain) {
				t.Fatalf("%v len=%d: ciphertext length changed: got %d", alg, len(plain), len(buf))
			}
			if err := dec.Decrypt(buf); err != nil {
				t.Fatalf("%v len=%d: Decrypt: %v", alg, len(plain), err)
			}
			if !bytes.Equal(buf, plain) {
				t.Fatalf("%v len=%d: round trip mismatch: got %x want %x", alg, len(plain), buf, plain)
			}
		}
	}
}

func TestResetMatchesSeedFormula(t *testing.T) {
	pw := secmem.FromString("seed-test-password")
	c, err := New(AES128, pw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var seed uint64 = 0x0102030405060708
	c.Reset(seed)

	want := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	for i := 0; i < c.BlockLength(); i++ {
		if c.iv[i] != want[i%8] {
			t.Fatalf("iv[%d] = %x, want %x", i, c.iv[i], want[i%8])
		}
	}
}

func TestResetZeroSeedZeroesIV(t *testing.T) {
	pw := secmem.FromString("zero-seed-password")
	c, _ := New(AES128, pw)
	c.Reset(42)
	c.Reset(0)
	for i, b := range c.iv {
		if b != 0 {
			t.Fatalf("iv[%d] = %x after zero-seed reset, want 0", i, b)
		}
	}
}

func TestNoneAlgorithmIsIdentity(t *testing.T) {
	pw := secmem.FromString("irrelevant")
	c, err := New(None, pw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BlockLength() != blockLengthNone {
		t.Fatalf("BlockLength() = %d, want %d", c.BlockLength(), blockLengthNone)
	}
	buf := []byte("some plaintext bytes")
	orig := append([]byte(nil), buf...)
	if err := c.Encrypt(buf); err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !bytes.Equal(buf, orig) {
		t.Fatalf("None algorithm modified buffer")
	}
}

func TestParseAlgorithmRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, ThreeDES, CAST5, Blowfish, AES128, AES192, AES256, Twofish128, Twofish256} {
		got, err := ParseAlgorithm(alg.String())
		if err != nil {
			t.Fatalf("ParseAlgorithm(%v): %v", alg, err)
		}
		if got != alg {
			t.Fatalf("ParseAlgorithm(%v) = %v", alg, got)
		}
	}
}

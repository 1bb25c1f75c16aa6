// Package symcipher implements the symmetric cipher engine: the algorithm
// catalog, key/IV derivation from a password, and CBC mode with ciphertext
// stealing for messages that are not a whole multiple of the block length.
//
// Grounded on crypt.c's CRYPT_ALGORITHMS table and Crypt_getKeyLength /
// Crypt_getBlockLength / Crypt_reset; AES and 3DES come from the standard
// library, CAST5/Blowfish/Twofish from golang.org/x/crypto, matching the
// teacher's use of golang.org/x/crypto for non-stdlib primitives.
package symcipher

import "fmt"

// Algorithm identifies a symmetric cipher, in the fixed table order the
// on-disk cryptAlgorithm field encodes.
type Algorithm uint32

const (
	None Algorithm = iota
	ThreeDES
	CAST5
	Blowfish
	AES128
	AES192
	AES256
	Twofish128
	Twofish256
)

// blockLengthNone is the nominal block length used when encryption is
// disabled, matching BLOCK_LENGTH_CRYPT_NONE in crypt.c.
const blockLengthNone = 4

var names = map[Algorithm]string{
	None:       "none",
	ThreeDES:   "3DES",
	CAST5:      "CAST5",
	Blowfish:   "Blowfish",
	AES128:     "AES128",
	AES192:     "AES192",
	AES256:     "AES256",
	Twofish128: "Twofish128",
	Twofish256: "Twofish256",
}

// String returns the canonical algorithm name.
func (a Algorithm) String() string {
	if n, ok := names[a]; ok {
		return n
	}
	return fmt.Sprintf("Algorithm(%d)", uint32(a))
}

// ParseAlgorithm maps a canonical name back to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, n := range names {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("symcipher: unsupported algorithm %q", name)
}

// KeyBits returns the derived-key length in bits for alg.
func KeyBits(alg Algorithm) (int, error) {
	switch alg {
	case None:
		return 0, nil
	case ThreeDES:
		return 192, nil
	case CAST5:
		return 128, nil
	case Blowfish:
		return 128, nil
	case AES128:
		return 128, nil
	case AES192:
		return 192, nil
	case AES256:
		return 256, nil
	case Twofish128:
		return 128, nil
	case Twofish256:
		return 256, nil
	default:
		return 0, fmt.Errorf("symcipher: unsupported algorithm %v", alg)
	}
}

// BlockLength returns the cipher's block length in bytes. It is never
// zero: algorithm None reports a small constant block length so that
// chunk alignment and compressor block size remain well-defined even with
// encryption disabled.
func BlockLength(alg Algorithm) (int, error) {
	switch alg {
	case None:
		return blockLengthNone, nil
	case ThreeDES:
		return 8, nil
	case CAST5:
		return 8, nil
	case Blowfish:
		return 8, nil
	case AES128, AES192, AES256:
		return 16, nil
	case Twofish128, Twofish256:
		return 16, nil
	default:
		return 0, fmt.Errorf("symcipher: unsupported algorithm %v", alg)
	}
}

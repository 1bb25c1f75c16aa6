package symcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/twofish"

	"bar/internal/bufpool"
	"bar/internal/secmem"
)

// Cipher encrypts and decrypts whole-block buffers under CBC mode with
// ciphertext stealing for a final short block, as crypt.c does around a
// libgcrypt GCRY_CIPHER_MODE_CBC/CTS handle.
type Cipher struct {
	alg         Algorithm
	blockLength int
	key         []byte
	iv          []byte
	block       cipher.Block // nil when alg == None
}

// New derives a key from password's plaintext and constructs a Cipher for
// alg. The key is the first keyBits/8 bytes of the deployed password,
// zero-padded if the password is shorter, mirroring Crypt_init's use of
// the raw password bytes as key material (BAR has no separate KDF).
func New(alg Algorithm, password *secmem.Password) (*Cipher, error) {
	blockLength, err := BlockLength(alg)
	if err != nil {
		return nil, err
	}
	keyBits, err := KeyBits(alg)
	if err != nil {
		return nil, err
	}
	keyLen := (keyBits + 7) / 8

	key := bufpool.Global.Get(max(keyLen, 1))
	if password != nil && keyLen > 0 {
		plain := password.Deploy()
		defer password.Undeploy()
		n := len(plain)
		if n > keyLen {
			n = keyLen
		}
		copy(key, plain[:n])
	}

	block, err := newBlockCipher(alg, key[:keyLen])
	if err != nil {
		return nil, err
	}

	c := &Cipher{
		alg:         alg,
		blockLength: blockLength,
		key:         key[:keyLen],
		iv:          make([]byte, blockLength),
		block:       block,
	}
	return c, nil
}

func newBlockCipher(alg Algorithm, key []byte) (cipher.Block, error) {
	switch alg {
	case None:
		return nil, nil
	case ThreeDES:
		return des.NewTripleDESCipher(key)
	case CAST5:
		return cast5.NewCipher(key)
	case Blowfish:
		return blowfish.NewCipher(key)
	case AES128, AES192, AES256:
		return aes.NewCipher(key)
	case Twofish128, Twofish256:
		return twofish.NewCipher(key)
	default:
		return nil, fmt.Errorf("symcipher: unsupported algorithm %v", alg)
	}
}

// BlockLength returns the block length this cipher was constructed with.
func (c *Cipher) BlockLength() int { return c.blockLength }

// Algorithm returns the cipher's algorithm.
func (c *Cipher) Algorithm() Algorithm { return c.alg }

// Reset re-derives the IV from seed, matching Crypt_reset's formula:
// iv[i] = (seed >> ((i mod 8)*8)) & 0xFF for i within the block length,
// zero beyond the low 8 bytes of seed. A zero seed leaves the IV zeroed,
// matching the "no per-part randomization" branch in Crypt_reset.
func (c *Cipher) Reset(seed uint64) {
	for i := range c.iv {
		c.iv[i] = 0
	}
	if seed == 0 {
		return
	}
	for i := 0; i < c.blockLength; i++ {
		shift := uint((i % 8) * 8)
		c.iv[i] = byte((seed >> shift) & 0xFF)
	}
}

// Encrypt encrypts plaintext in place. len(buf) must be a positive
// multiple of the block length, except possibly the final call for a
// message whose last block is short, which is handled via ciphertext
// stealing inside buf; such a buffer must be longer than one block.
func (c *Cipher) Encrypt(buf []byte) error {
	if c.alg == None {
		return nil
	}
	if len(buf) == 0 {
		return nil
	}
	if len(buf) == c.blockLength || len(buf)%c.blockLength == 0 {
		mode := cipher.NewCBCEncrypter(c.block, c.iv)
		mode.CryptBlocks(buf, buf)
		copy(c.iv, buf[len(buf)-c.blockLength:])
		return nil
	}
	return c.encryptWithStealing(buf)
}

// Decrypt is the inverse of Encrypt.
func (c *Cipher) Decrypt(buf []byte) error {
	if c.alg == None {
		return nil
	}
	if len(buf) == 0 {
		return nil
	}
	if len(buf)%c.blockLength == 0 {
		nextIV := make([]byte, c.blockLength)
		copy(nextIV, buf[len(buf)-c.blockLength:])
		mode := cipher.NewCBCDecrypter(c.block, c.iv)
		mode.CryptBlocks(buf, buf)
		copy(c.iv, nextIV)
		return nil
	}
	return c.decryptWithStealing(buf)
}

// encryptWithStealing implements ciphertext stealing for a buffer whose
// length is not a block multiple: the last two ciphertext blocks are a
// short block (the head of E(P_{n-1} XOR chain)) followed by a full one
// (E((P_n || stolen tail) XOR chain)), where chain is the ciphertext
// block before them or the IV, keeping total length equal to the
// plaintext length instead of padding up to the next block boundary.
// This byte layout differs from RFC 3962's CBC-CS3.
func (c *Cipher) encryptWithStealing(buf []byte) error {
	bl := c.blockLength
	n := len(buf)
	if n <= bl {
		return fmt.Errorf("symcipher: ciphertext-stealing input too short (%d <= %d)", n, bl)
	}
	rem := n % bl
	if rem == 0 {
		rem = bl
	}
	penultimate := n - bl - rem // offset of the second-to-last full plaintext block

	if penultimate > 0 {
		mode := cipher.NewCBCEncrypter(c.block, c.iv)
		mode.CryptBlocks(buf[:penultimate], buf[:penultimate])
		copy(c.iv, buf[penultimate-bl:penultimate])
	}
	chain := append([]byte(nil), c.iv...)

	tmp := make([]byte, bl)
	copy(tmp, buf[penultimate:penultimate+bl])
	for i := range tmp {
		tmp[i] ^= chain[i]
	}
	c.block.Encrypt(tmp, tmp) // tmp = E(P_{n-1} XOR chain), not transmitted directly

	dLast := make([]byte, bl)
	copy(dLast, buf[penultimate+bl:penultimate+bl+rem]) // P_n
	copy(dLast[rem:], tmp[rem:])                         // stolen tail

	for i := range dLast {
		dLast[i] ^= chain[i]
	}
	c.block.Encrypt(dLast, dLast) // full replacement block for P_{n-1}'s ciphertext

	copy(buf[penultimate:penultimate+rem], tmp[:rem])
	copy(buf[penultimate+rem:penultimate+rem+bl], dLast)

	copy(c.iv, dLast)
	return nil
}

// decryptWithStealing reverses encryptWithStealing.
func (c *Cipher) decryptWithStealing(buf []byte) error {
	bl := c.blockLength
	n := len(buf)
	if n <= bl {
		return fmt.Errorf("symcipher: ciphertext-stealing input too short (%d <= %d)", n, bl)
	}
	rem := n % bl
	if rem == 0 {
		rem = bl
	}
	penultimate := n - bl - rem

	if penultimate > 0 {
		nextIV := append([]byte(nil), buf[penultimate-bl:penultimate]...)
		mode := cipher.NewCBCDecrypter(c.block, c.iv)
		mode.CryptBlocks(buf[:penultimate], buf[:penultimate])
		copy(c.iv, nextIV)
	}
	chain := append([]byte(nil), c.iv...)

	cLast := append([]byte(nil), buf[penultimate+rem:penultimate+rem+bl]...)
	dn := make([]byte, bl)
	c.block.Decrypt(dn, cLast)
	for i := range dn {
		dn[i] ^= chain[i]
	}
	plainLast := dn[:rem]
	stolenTail := dn[rem:]

	tmp := make([]byte, bl)
	copy(tmp, buf[penultimate:penultimate+rem])
	copy(tmp[rem:], stolenTail)
	c.block.Decrypt(tmp, tmp)
	for i := range tmp {
		tmp[i] ^= chain[i]
	}

	copy(buf[penultimate:penultimate+bl], tmp)
	copy(buf[penultimate+bl:penultimate+bl+rem], plainLast)

	copy(c.iv, cLast)
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

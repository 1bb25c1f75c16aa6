// Package keystore implements the asymmetric key store: RSA keypair
// generation, a base64-wrapped DER wire format for storing keys in
// chunks, and wrapping/unwrapping of a random session password
// (the one an archive's symmetric cipher is actually keyed with) under a
// recipient's public key.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"math/big"

	"bar/internal/secmem"
)

// pkcs1EncodedMessageLength is the size, in bytes, of the padded message
// block that RSA encrypts: 512 bits (64 bytes) whatever the recipient's
// modulus size, matching PKCS1_ENCODED_MESSAGE_LENGTH in the original
// crypt.c. BAR always wraps a short random session password, never raw
// archive data, so a fixed small block is sufficient.
const pkcs1EncodedMessageLength = 512 / 8

// randomKeyLength is the number of plaintext bytes carried inside the
// envelope: PKCS1_RANDOM_KEY_LENGTH in crypt.c, derived from the message
// length minus the 0x00 0x02 header, the eight-byte minimum padding
// string and the zero separator.
const randomKeyLength = (pkcs1EncodedMessageLength-(1+1+8+1))

// KeyPair holds an RSA keypair used to wrap and unwrap session
// passwords. The zero value is not usable; construct with Generate or
// Import.
type KeyPair struct {
	public  *rsa.PublicKey
	private *rsa.PrivateKey // nil for a public-only KeyPair
}

// Generate creates a fresh RSA keypair of the given modulus size in
// bits (2048 is BAR's MAX_KEY_SIZE default).
func Generate(bits int) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("keystore: generate: %w", err)
	}
	return &KeyPair{public: &priv.PublicKey, private: priv}, nil
}

// IsPublic reports whether kp holds only a public key (e.g. after
// ImportPublic), matching the original's gcry_sexp_find_token check for
// a "public-key" vs "private-key" token before an operation.
func (kp *KeyPair) IsPublic() bool { return kp.private == nil }

// Export serializes kp to the wire format: a DER-encoded key (PKCS#1 for
// private, PKIX for public) wrapped in standard base64, the Go-idiomatic
// analogue of the original's gcry_sexp canonical form also wrapped in
// base64 before being written into a chunk field.
func (kp *KeyPair) Export() (string, error) {
	var der []byte
	if kp.private != nil {
		der = x509.MarshalPKCS1PrivateKey(kp.private)
	} else {
		var err error
		der, err = x509.MarshalPKIXPublicKey(kp.public)
		if err != nil {
			return "", fmt.Errorf("keystore: export: %w", err)
		}
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ExportPublic serializes only the public half of kp, for distributing
// an encrypt-only key.
func (kp *KeyPair) ExportPublic() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(kp.public)
	if err != nil {
		return "", fmt.Errorf("keystore: export public: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ImportPrivate parses a base64-wrapped PKCS#1 private key.
func ImportPrivate(s string) (*KeyPair, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("keystore: decode: %w", err)
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("keystore: parse private key: %w", err)
	}
	return &KeyPair{public: &priv.PublicKey, private: priv}, nil
}

// ImportPublic parses a base64-wrapped PKIX public key.
func ImportPublic(s string) (*KeyPair, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("keystore: decode: %w", err)
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("keystore: parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keystore: not an RSA public key")
	}
	return &KeyPair{public: rsaPub}, nil
}

// WrapRandomPassword generates a fresh random session password of
// randomKeyLength bytes, builds the PKCS#1 v1.5-shaped envelope
// (0x00 0x02 | PS | 0x00 | key) by hand to mirror the original's
// manual construction, and encrypts it under kp's public key. It
// returns the session password (to key the archive's symmetric cipher)
// and the wire-format envelope to store in the archive's KEY chunk.
func (kp *KeyPair) WrapRandomPassword() (*secmem.Password, []byte, error) {
	raw := make([]byte, randomKeyLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, nil, fmt.Errorf("keystore: random password: %w", err)
	}

	envelope, err := encryptPKCS1Envelope(kp.public, raw)
	if err != nil {
		return nil, nil, err
	}

	pw := secmem.New()
	for _, b := range raw {
		pw.AppendChar(b)
	}
	return pw, envelope, nil
}

// UnwrapPassword decrypts envelope under kp's private key and recovers
// the session password it carries.
func (kp *KeyPair) UnwrapPassword(envelope []byte) (*secmem.Password, error) {
	if kp.private == nil {
		return nil, fmt.Errorf("keystore: not a private key")
	}
	raw, err := decryptPKCS1Envelope(kp.private, envelope)
	if err != nil {
		return nil, err
	}
	pw := secmem.New()
	for _, b := range raw {
		pw.AppendChar(b)
	}
	return pw, nil
}

// encryptPKCS1Envelope builds the padded message block
// 0x00 0x02 PS 0x00 key (PS pseudo-random, non-zero) and performs raw
// RSA encryption, the same construction crypto/rsa.EncryptPKCS1v15
// performs internally; done explicitly here because BAR's envelope
// length (pkcs1EncodedMessageLength) is fixed independently of the
// recipient's actual modulus size, unlike the general-purpose stdlib
// helper which sizes the message to the key.
func encryptPKCS1Envelope(pub *rsa.PublicKey, key []byte) ([]byte, error) {
	k := pub.Size()
	n := pkcs1EncodedMessageLength
	if len(key) > n-11 {
		return nil, fmt.Errorf("keystore: key too long for envelope")
	}

	em := make([]byte, n)
	em[0] = 0x00
	em[1] = 0x02
	ps := em[2 : n-len(key)-1]
	if err := fillNonZeroRandom(ps); err != nil {
		return nil, err
	}
	em[n-len(key)-1] = 0x00
	copy(em[n-len(key):], key)

	m := new(big.Int).SetBytes(em)
	if m.Cmp(pub.N) >= 0 {
		return nil, fmt.Errorf("keystore: message too large for modulus")
	}
	c := new(big.Int).Exp(m, big.NewInt(int64(pub.E)), pub.N)
	ct := c.Bytes()
	if len(ct) < k {
		padded := make([]byte, k)
		copy(padded[k-len(ct):], ct)
		ct = padded
	}
	return ct, nil
}

func decryptPKCS1Envelope(priv *rsa.PrivateKey, envelope []byte) ([]byte, error) {
	k := priv.Size()
	if len(envelope) != k {
		return nil, fmt.Errorf("keystore: envelope length mismatch")
	}
	c := new(big.Int).SetBytes(envelope)
	m := new(big.Int).Exp(c, priv.D, priv.N)
	em := m.Bytes()
	if len(em) > pkcs1EncodedMessageLength {
		return nil, fmt.Errorf("keystore: invalid envelope header")
	}
	if len(em) != pkcs1EncodedMessageLength {
		padded := make([]byte, pkcs1EncodedMessageLength)
		copy(padded[pkcs1EncodedMessageLength-len(em):], em)
		em = padded
	}
	if em[0] != 0x00 || em[1] != 0x02 {
		return nil, fmt.Errorf("keystore: invalid envelope header")
	}
	i := 2
	for i < len(em) && em[i] != 0x00 {
		i++
	}
	if i == len(em) {
		return nil, fmt.Errorf("keystore: envelope separator not found")
	}
	return em[i+1:], nil
}

func fillNonZeroRandom(buf []byte) error {
	for i := range buf {
		var b [1]byte
		for {
			if _, err := rand.Read(b[:]); err != nil {
				return err
			}
			if b[0] != 0 {
				break
			}
		}
		buf[i] = b[0]
	}
	return nil
}

package rsakeys

import (
	"crypto"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"

	"github.com/quadprime/rsakeys/wipe"
)

// These are ASN1 DER structures:
//
//	DigestInfo ::= SEQUENCE {
//	  digestAlgorithm AlgorithmIdentifier,
//	  digest OCTET STRING
//	}
//
// For performance, we don't use the generic ASN1 encoder. Rather, we
// precompute a prefix of the digest value that makes a valid ASN1 DER string
// with the correct contents.
var hashPrefixes = map[crypto.Hash][]byte{
	crypto.MD5:       {0x30, 0x20, 0x30, 0x0c, 0x06, 0x08, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x05, 0x05, 0x00, 0x04, 0x10},
	crypto.SHA1:      {0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14},
	crypto.SHA224:    {0x30, 0x2d, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x04, 0x05, 0x00, 0x04, 0x1c},
	crypto.SHA256:    {0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20},
	crypto.SHA384:    {0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30},
	crypto.SHA512:    {0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40},
	crypto.MD5SHA1:   {}, // A special TLS case which doesn't use an ASN1 prefix.
	crypto.RIPEMD160: {0x30, 0x20, 0x30, 0x08, 0x06, 0x06, 0x28, 0xcf, 0x06, 0x03, 0x00, 0x31, 0x04, 0x14},
}

// PKCS1v15Encryption is the RSAES-PKCS1-V1_5 encryption scheme from RSA
// PKCS #1 v1.5. The message must be no longer than the modulus size
// minus 11 bytes.
type PKCS1v15Encryption struct{}

var _ EncryptionScheme = PKCS1v15Encryption{}

// Encrypt encrypts msg under pub. random fills the padding string; if
// nil, crypto/rand is used.
func (PKCS1v15Encryption) Encrypt(random io.Reader, pub *PublicKey, msg []byte) ([]byte, error) {
	k := pub.Size()
	if len(msg) > k-11 {
		return nil, ErrMessageTooLong
	}
	if random == nil {
		random = rand.Reader
	}

	// EM = 0x00 || 0x02 || PS || 0x00 || M
	em := make([]byte, k)
	em[1] = 2
	ps, mm := em[2:len(em)-len(msg)-1], em[len(em)-len(msg):]
	if err := nonZeroRandomBytes(ps, random); err != nil {
		return nil, err
	}
	em[len(em)-len(msg)-1] = 0
	copy(mm, msg)

	m := new(big.Int).SetBytes(em)
	c := encryptInt(pub, m)

	return c.FillBytes(em), nil
}

// Decrypt decrypts ciphertext under priv. If random is not nil, the
// private operation is blinded.
//
// The padding check runs in constant time so that an attacker cannot
// learn from decryption timing whether a forged ciphertext produced
// well-formed padding. The length of the returned plaintext still
// leaks, so this scheme is only safe in protocols where all plaintexts
// have a fixed, known length.
func (PKCS1v15Encryption) Decrypt(random io.Reader, priv *PrivateKey, ciphertext []byte) ([]byte, error) {
	k := priv.Size()
	if k < 11 || len(ciphertext) != k {
		return nil, ErrDecryption
	}

	c := new(big.Int).SetBytes(ciphertext)
	m, err := decryptInt(random, priv, c)
	if err != nil {
		return nil, err
	}
	em := m.FillBytes(make([]byte, k))
	wipe.BigInt(m)
	defer wipe.Bytes(em)

	firstByteIsZero := subtle.ConstantTimeByteEq(em[0], 0)
	secondByteIsTwo := subtle.ConstantTimeByteEq(em[1], 2)

	// The remainder of the plaintext must be a string of non-zero random
	// octets, followed by a 0, followed by the message.
	//   lookingForIndex: 1 iff we are still looking for the zero.
	//   index: the offset of the first zero byte.
	lookingForIndex := 1
	index := 0
	for i := 2; i < len(em); i++ {
		equals0 := subtle.ConstantTimeByteEq(em[i], 0)
		index = subtle.ConstantTimeSelect(lookingForIndex&equals0, i, index)
		lookingForIndex = subtle.ConstantTimeSelect(equals0, 0, lookingForIndex)
	}

	// The PS padding must be at least 8 bytes long, and it starts two
	// bytes into em.
	validPS := subtle.ConstantTimeLessOrEq(2+8, index)

	valid := firstByteIsZero & secondByteIsTwo & (^lookingForIndex & 1) & validPS
	if valid != 1 {
		return nil, ErrDecryption
	}

	msg := make([]byte, len(em)-index-1)
	copy(msg, em[index+1:])
	return msg, nil
}

// nonZeroRandomBytes fills s with random bytes from random, none of
// which are zero.
func nonZeroRandomBytes(s []byte, random io.Reader) error {
	if _, err := io.ReadFull(random, s); err != nil {
		return err
	}
	for i := range s {
		for s[i] == 0 {
			if _, err := io.ReadFull(random, s[i:i+1]); err != nil {
				return err
			}
			// In tests, the PRNG may return all zeros so we mask to
			// break the loop.
			s[i] &= 0x7f
			s[i] |= 0x40
		}
	}
	return nil
}

// PKCS1v15Signature is the deterministic RSASSA-PKCS1-V1_5 signature
// scheme from RSA PKCS #1 v1.5 over the given hash. A zero Hash means
// the digest is signed directly, which isn't advisable except for
// interoperability.
type PKCS1v15Signature struct {
	Hash crypto.Hash
}

var _ SignatureScheme = PKCS1v15Signature{}

// Sign signs digest under priv. digest must be the result of hashing
// the message with s.Hash. If random is not nil, the private operation
// is blinded.
func (s PKCS1v15Signature) Sign(random io.Reader, priv *PrivateKey, digest []byte) ([]byte, error) {
	hashLen, prefix, err := pkcs1v15HashInfo(s.Hash, len(digest))
	if err != nil {
		return nil, err
	}

	tLen := len(prefix) + hashLen
	k := priv.Size()
	if k < tLen+11 {
		return nil, ErrMessageTooLong
	}

	// EM = 0x00 || 0x01 || PS || 0x00 || T
	em := make([]byte, k)
	em[1] = 1
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-tLen:k-hashLen], prefix)
	copy(em[k-hashLen:k], digest)

	m := new(big.Int).SetBytes(em)
	c, err := decryptAndCheck(random, priv, m)
	if err != nil {
		return nil, err
	}

	return c.FillBytes(em), nil
}

// Verify checks sig over digest under pub, returning nil for a valid
// signature and ErrVerification otherwise.
func (s PKCS1v15Signature) Verify(pub *PublicKey, digest, sig []byte) error {
	hashLen, prefix, err := pkcs1v15HashInfo(s.Hash, len(digest))
	if err != nil {
		return err
	}

	tLen := len(prefix) + hashLen
	k := pub.Size()
	if k < tLen+11 {
		return ErrVerification
	}
	if k != len(sig) {
		return ErrVerification
	}

	c := new(big.Int).SetBytes(sig)
	m := encryptInt(pub, c)
	em := m.FillBytes(make([]byte, k))

	ok := subtle.ConstantTimeByteEq(em[0], 0)
	ok &= subtle.ConstantTimeByteEq(em[1], 1)
	ok &= subtle.ConstantTimeCompare(em[k-hashLen:k], digest)
	ok &= subtle.ConstantTimeCompare(em[k-tLen:k-hashLen], prefix)
	ok &= subtle.ConstantTimeByteEq(em[k-tLen-1], 0)
	for i := 2; i < k-tLen-1; i++ {
		ok &= subtle.ConstantTimeByteEq(em[i], 0xff)
	}

	if ok != 1 {
		return ErrVerification
	}
	return nil
}

func pkcs1v15HashInfo(hash crypto.Hash, inLen int) (hashLen int, prefix []byte, err error) {
	// Special case: crypto.Hash(0) is used to indicate that the data is
	// signed directly.
	if hash == 0 {
		return inLen, nil, nil
	}

	hashLen = hash.Size()
	if inLen != hashLen {
		return 0, nil, errors.New("rsakeys: input must be hashed message")
	}
	prefix, ok := hashPrefixes[hash]
	if !ok {
		return 0, nil, errors.New("rsakeys: unsupported hash function")
	}
	return
}

package rsakeys

import (
	"io"
	"math/big"

	"github.com/quadprime/rsakeys/numeric"
)

const (
	// MinPublicExponent is the smallest accepted public exponent e.
	MinPublicExponent uint64 = 2

	// MaxPublicExponent is the largest accepted public exponent e.
	MaxPublicExponent uint64 = 1<<33 - 1

	// MaxModulusBits is the default upper bound on the size of the
	// modulus n, in bits.
	MaxModulusBits = 4096
)

// A PublicKey holds the public half of an RSA key: the modulus n and
// the public exponent e, typically 0x10001 (65537). It carries no
// secrets and is cheap to share. The reduction context for n is built
// once at construction and reused by every operation.
type PublicKey struct {
	n *big.Int
	e uint64

	nCtx *numeric.Modulus
}

// NewPublicKey creates a public key from its components, accepting
// moduli up to MaxModulusBits bits.
func NewPublicKey(n *big.Int, e uint64) (*PublicKey, error) {
	return NewPublicKeyWithMaxSize(n, e, MaxModulusBits)
}

// NewPublicKeyWithMaxSize creates a public key from its components,
// accepting moduli up to maxSize bits.
func NewPublicKeyWithMaxSize(n *big.Int, e uint64, maxSize int) (*PublicKey, error) {
	if err := checkPublicComponents(n, e, maxSize); err != nil {
		return nil, err
	}
	return NewPublicKeyUnchecked(n, e), nil
}

// NewPublicKeyUnchecked creates a public key bypassing the checks
// around the modulus and exponent. Not recommended; intended for
// unusual use cases only. The modulus must still be nonzero.
func NewPublicKeyUnchecked(n *big.Int, e uint64) *PublicKey {
	nCopy := new(big.Int).Set(n)
	return &PublicKey{
		n:    nCopy,
		e:    e,
		nCtx: numeric.NewModulus(nCopy),
	}
}

// checkPublicComponents verifies that the public components are well
// formed and within acceptable bounds.
func checkPublicComponents(n *big.Int, e uint64, maxSize int) error {
	if n.BitLen() > maxSize {
		return ErrModulusTooLarge
	}
	if new(big.Int).SetUint64(e).Cmp(n) >= 0 || n.Bit(0) == 0 {
		return ErrInvalidModulus
	}
	if e&1 == 0 {
		return ErrInvalidExponent
	}
	if e < MinPublicExponent {
		return ErrPublicExponentTooSmall
	}
	if e > MaxPublicExponent {
		return ErrPublicExponentTooLarge
	}
	return nil
}

// N returns the modulus. The returned value must not be modified.
func (pub *PublicKey) N() *big.Int {
	return pub.n
}

// E returns the public exponent.
func (pub *PublicKey) E() uint64 {
	return pub.e
}

// BitLen returns the bit length of the modulus.
func (pub *PublicKey) BitLen() int {
	return pub.n.BitLen()
}

// Size returns the modulus size in bytes. Ciphertexts and signatures
// produced with this key have the same size.
func (pub *PublicKey) Size() int {
	return (pub.n.BitLen() + 7) / 8
}

// Equal reports whether pub and other have the same modulus and
// exponent.
func (pub *PublicKey) Equal(other *PublicKey) bool {
	return pub.n.Cmp(other.n) == 0 && pub.e == other.e
}

// Encrypt encrypts msg with the given scheme. random supplies the
// scheme's padding randomness.
func (pub *PublicKey) Encrypt(random io.Reader, scheme EncryptionScheme, msg []byte) ([]byte, error) {
	return scheme.Encrypt(random, pub, msg)
}

// Verify checks sig over digest with the given scheme. digest must be
// the result of hashing the message with the scheme's hash function.
func (pub *PublicKey) Verify(scheme SignatureScheme, digest, sig []byte) error {
	return scheme.Verify(pub, digest, sig)
}

package rsakeys

import (
	"bytes"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/quadprime/rsakeys/wipe"
)

const (
	publicPEMType  = "MULTIPRIME RSA PUBLIC KEY"
	privatePEMType = "MULTIPRIME RSA PRIVATE KEY"
)

// used exclusively as a placeholder for encoding-decoding
type encodedPublicKey struct {
	N []byte
	E int64
}

// used exclusively as a placeholder for encoding-decoding. Precomputed
// values are deliberately absent; they are rebuilt after decoding.
type encodedPrivateKey struct {
	PublicKey encodedPublicKey
	D         []byte
	Primes    [][]byte
}

// EncodePEM serializes the public key as a PEM-wrapped DER structure.
func (pub *PublicKey) EncodePEM() (string, error) {
	pubToMarshal := encodedPublicKey{
		N: pub.n.Bytes(),
		E: int64(pub.e),
	}
	b, err := asn1.Marshal(pubToMarshal)
	if err != nil {
		return "", fmt.Errorf("failed to DER-encode: %s", err)
	}

	keyPEM := new(bytes.Buffer)
	err = pem.Encode(keyPEM, &pem.Block{
		Type:  publicPEMType,
		Bytes: b,
	})
	if err != nil {
		return "", fmt.Errorf("failed to PEM-encode: %s", err)
	}

	return keyPEM.String(), nil
}

// DecodePublicPEM parses a public key from its PEM encoding, applying
// the same component checks as NewPublicKey.
func DecodePublicPEM(encoded string) (*PublicKey, error) {
	block, _ := pem.Decode([]byte(encoded))
	if block == nil || block.Type != publicPEMType {
		return nil, fmt.Errorf("failed to decode PEM block containing public key")
	}

	var pubToUnmarshal encodedPublicKey
	if _, err := asn1.Unmarshal(block.Bytes, &pubToUnmarshal); err != nil {
		return nil, fmt.Errorf("failed to DER-decode: %s", err)
	}
	if pubToUnmarshal.E < 0 {
		return nil, ErrInvalidExponent
	}

	return NewPublicKey(new(big.Int).SetBytes(pubToUnmarshal.N), uint64(pubToUnmarshal.E))
}

// EncodePEM serializes the whole key pair as a PEM-wrapped DER
// structure. Only the modulus, the exponents and the primes are
// written; precomputed values never leave the process.
//
// The output contains the key's secrets in the clear. Callers are
// responsible for wiping the returned string's backing memory if that
// matters to them; Go strings cannot be wiped through this package.
func (priv *PrivateKey) EncodePEM() (string, error) {
	primes := make([][]byte, len(priv.primes))
	for i, p := range priv.primes {
		primes[i] = p.Bytes()
	}
	privToMarshal := encodedPrivateKey{
		PublicKey: encodedPublicKey{
			N: priv.n.Bytes(),
			E: int64(priv.e),
		},
		D:      priv.d.Bytes(),
		Primes: primes,
	}
	b, err := asn1.Marshal(privToMarshal)
	if err != nil {
		return "", fmt.Errorf("failed to DER-encode: %s", err)
	}
	for _, p := range primes {
		wipe.Bytes(p)
	}
	wipe.Bytes(privToMarshal.D)

	keyPEM := new(bytes.Buffer)
	err = pem.Encode(keyPEM, &pem.Block{
		Type:  privatePEMType,
		Bytes: b,
	})
	wipe.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to PEM-encode: %s", err)
	}

	return keyPEM.String(), nil
}

// DecodePrivatePEM parses a key pair from its PEM encoding. The key is
// rebuilt through PrivateKeyFromComponents, so precomputed values are
// regenerated and an encoding without primes goes through two-prime
// recovery and validation.
func DecodePrivatePEM(encoded string) (*PrivateKey, error) {
	block, _ := pem.Decode([]byte(encoded))
	if block == nil || block.Type != privatePEMType {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}
	defer wipe.Bytes(block.Bytes)

	var privToUnmarshal encodedPrivateKey
	if _, err := asn1.Unmarshal(block.Bytes, &privToUnmarshal); err != nil {
		return nil, fmt.Errorf("failed to DER-decode: %s", err)
	}
	if privToUnmarshal.PublicKey.E < 0 {
		return nil, ErrInvalidExponent
	}

	n := new(big.Int).SetBytes(privToUnmarshal.PublicKey.N)
	d := new(big.Int).SetBytes(privToUnmarshal.D)
	primes := make([]*big.Int, len(privToUnmarshal.Primes))
	for i, p := range privToUnmarshal.Primes {
		primes[i] = new(big.Int).SetBytes(p)
		wipe.Bytes(p)
	}
	wipe.Bytes(privToUnmarshal.D)
	defer func() {
		wipe.BigInt(d)
		wipe.BigInts(primes)
	}()

	return PrivateKeyFromComponents(n, uint64(privToUnmarshal.PublicKey.E), d, primes)
}

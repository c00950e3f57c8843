package rsakeys

import (
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// yields its prefix first, then falls through to the wrapped source
type prefixedReader struct {
	prefix []byte
	rest   io.Reader
}

func (r *prefixedReader) Read(p []byte) (int, error) {
	if len(r.prefix) > 0 {
		n := copy(p, r.prefix)
		r.prefix = r.prefix[n:]
		return n, nil
	}
	return r.rest.Read(p)
}

// counts how many bytes were drawn from the wrapped source
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// a known-good 128-bit two-prime key, handy because every component is
// small enough to eyeball
func referenceComponents() (n *big.Int, e uint64, d, p, q *big.Int) {
	n = new(big.Int).SetBytes([]byte{180, 200, 73, 75, 107, 75, 151, 49, 29, 7, 220, 0, 179, 208, 192, 99})
	e = 65537
	d = new(big.Int).SetBytes([]byte{65, 63, 12, 28, 249, 51, 133, 244, 42, 144, 159, 171, 144, 254, 163, 81})
	p = new(big.Int).SetBytes([]byte{192, 3, 153, 19, 173, 60, 101, 105})
	q = new(big.Int).SetBytes([]byte{241, 6, 136, 32, 134, 160, 65, 235})
	return
}

func referenceKey() *PrivateKey {
	n, e, d, p, q := referenceComponents()
	priv, err := PrivateKeyFromComponents(n, e, d, []*big.Int{p, q})
	Expect(err).To(BeNil(), fmt.Sprintf("failed to build reference key: %s", err))
	return priv
}

var _ = Describe("Key construction", func() {

	Context("From explicit components", func() {
		It("Accepts the reference key", func() {
			priv := referenceKey()

			Expect(priv.BitLen()).To(Equal(128))
			Expect(priv.Size()).To(Equal(16))
			Expect(priv.Validate()).To(Succeed())
			Expect(priv.PrecomputeErr()).To(BeNil())
			checkRoundTrip(priv)
		})

		It("Refuses a zero modulus", func() {
			_, e, d, p, q := referenceComponents()
			_, err := PrivateKeyFromComponents(big.NewInt(0), e, d, []*big.Int{p, q})
			Expect(err).To(MatchError(ErrInvalidModulus))

			// the recovery path must refuse it too, before dividing by n
			_, err = PrivateKeyFromComponents(new(big.Int), e, d, nil)
			Expect(err).To(MatchError(ErrInvalidModulus))

			_, err = PrivateKeyFromComponents(nil, e, d, []*big.Int{p, q})
			Expect(err).To(MatchError(ErrInvalidModulus))
		})

		It("Refuses a single prime", func() {
			n, e, d, p, _ := referenceComponents()
			_, err := PrivateKeyFromComponents(n, e, d, []*big.Int{p})
			Expect(err).To(MatchError(ErrNprimesTooSmall))
		})

		It("Stores copies of its inputs", func() {
			n, e, d, p, q := referenceComponents()
			priv, err := PrivateKeyFromComponents(n, e, d, []*big.Int{p, q})
			Expect(err).To(BeNil())

			d.SetInt64(0)
			p.SetInt64(0)
			Expect(priv.D().Sign()).NotTo(Equal(0))
			Expect(priv.Validate()).To(Succeed())
		})
	})

	Context("Recovering primes from (n, e, d)", func() {
		It("Finds the factors of the reference modulus", func() {
			n, e, d, p, q := referenceComponents()
			priv, err := PrivateKeyFromComponents(n, e, d, nil)
			Expect(err).To(BeNil(), fmt.Sprintf("failed to recover primes: %s", err))

			Expect(len(priv.Primes())).To(Equal(2))
			recovered := priv.Primes()
			// recovery orders the pair largest first
			Expect(recovered[0].Cmp(q)).To(Equal(0))
			Expect(recovered[1].Cmp(p)).To(Equal(0))
			Expect(priv.D().Cmp(d)).To(Equal(0))
			Expect(priv.Dp().Cmp(new(big.Int).Mod(d, new(big.Int).Sub(q, bigOne)))).To(Equal(0))
			Expect(priv.Dq().Cmp(new(big.Int).Mod(d, new(big.Int).Sub(p, bigOne)))).To(Equal(0))
			Expect(priv.Validate()).To(Succeed())
			checkRoundTrip(priv)
		})

		It("Refuses public exponents below 2^16", func() {
			n, _, d, _, _ := referenceComponents()
			_, err := PrivateKeyFromComponents(n, 257, d, nil)
			Expect(err).To(MatchError(ErrInvalidExponent))
		})

		It("Rejects an inconsistent triple", func() {
			n, e, d, _, _ := referenceComponents()
			d.Add(d, big.NewInt(2))
			_, err := PrivateKeyFromComponents(n, e, d, nil)
			Expect(err).NotTo(BeNil(), "a corrupted private exponent must not produce a key")
		})
	})

	Context("From a (p, q) pair", func() {
		It("Derives the modulus and a working private exponent", func() {
			n, e, _, p, q := referenceComponents()
			priv, err := PrivateKeyFromPQ(p, q, e)
			Expect(err).To(BeNil(), fmt.Sprintf("failed to build key from p and q: %s", err))

			Expect(priv.N().Cmp(n)).To(Equal(0))
			Expect(priv.Validate()).To(Succeed())
			checkRoundTrip(priv)
		})

		It("Refuses p == q", func() {
			_, e, _, p, _ := referenceComponents()
			_, err := PrivateKeyFromPQ(p, p, e)
			Expect(err).To(MatchError(ErrInvalidPrime))
		})
	})

	Context("From a prime list", func() {
		It("Rebuilds a generated multiprime key exactly", func() {
			generated, err := GenerateMultiPrimeKey(rand.Reader, 3, 256)
			Expect(err).To(BeNil())

			rebuilt, err := PrivateKeyFromPrimes(generated.Primes(), generated.E())
			Expect(err).To(BeNil())
			Expect(rebuilt.Equal(generated)).To(BeTrue(), "same primes and exponent must rebuild the same key")
		})

		It("Refuses duplicate primes", func() {
			_, e, _, p, q := referenceComponents()
			_, err := PrivateKeyFromPrimes([]*big.Int{p, q, p}, e)
			Expect(err).To(MatchError(ErrInvalidPrime))
		})
	})
})

var _ = Describe("Key checks", func() {

	Context("Public component bounds", func() {
		n, _, _, _, _ := referenceComponents()

		It("Rejects oversized moduli first", func() {
			huge := new(big.Int).Lsh(bigOne, 4098)
			huge.Add(huge, bigOne)
			// even with a bad exponent, the size check wins
			_, err := NewPublicKey(huge, 4)
			Expect(err).To(MatchError(ErrModulusTooLarge))

			_, err = NewPublicKeyWithMaxSize(huge, 65537, 4099)
			Expect(err).To(BeNil(), "a raised limit should admit the same modulus")
		})

		It("Rejects an exponent at least as large as the modulus", func() {
			_, err := NewPublicKey(big.NewInt(15), 17)
			Expect(err).To(MatchError(ErrInvalidModulus))
		})

		It("Rejects an even modulus", func() {
			_, err := NewPublicKey(big.NewInt(1024), 17)
			Expect(err).To(MatchError(ErrInvalidModulus))
		})

		It("Rejects an even exponent", func() {
			_, err := NewPublicKey(n, 4)
			Expect(err).To(MatchError(ErrInvalidExponent))
		})

		It("Rejects exponents outside the accepted range", func() {
			_, err := NewPublicKey(n, 1)
			Expect(err).To(MatchError(ErrPublicExponentTooSmall))

			vast := new(big.Int).Lsh(bigOne, 64)
			vast.Add(vast, bigOne)
			_, err = NewPublicKey(vast, 1<<33+1)
			Expect(err).To(MatchError(ErrPublicExponentTooLarge))
		})
	})

	Context("Private key validation", func() {
		It("Detects primes that don't multiply to the modulus", func() {
			n, e, d, p, q := referenceComponents()
			q.Add(q, bigTwo)
			priv, err := PrivateKeyFromComponents(n, e, d, []*big.Int{p, q})
			Expect(err).To(BeNil(), "construction with explicit primes is unchecked")
			Expect(priv.Validate()).To(MatchError(ErrInvalidModulus))
		})

		It("Detects a prime of one before dividing by zero", func() {
			n, e, d, p, _ := referenceComponents()
			priv, err := PrivateKeyFromComponents(n, e, d, []*big.Int{p, bigOne})
			Expect(err).To(BeNil())
			Expect(priv.Validate()).To(MatchError(ErrInvalidPrime))
		})

		It("Detects a broken d/e relationship", func() {
			n, e, d, p, q := referenceComponents()
			d.Add(d, bigTwo)
			priv, err := PrivateKeyFromComponents(n, e, d, []*big.Int{p, q})
			Expect(err).To(BeNil())
			Expect(priv.Validate()).To(MatchError(ErrInvalidExponent))
		})
	})

	Context("Precomputation", func() {
		It("Derives the CRT parameters from the first two primes", func() {
			priv := referenceKey()
			_, _, d, p, q := referenceComponents()

			pm1 := new(big.Int).Sub(p, bigOne)
			qm1 := new(big.Int).Sub(q, bigOne)
			Expect(priv.Dp().Cmp(new(big.Int).Mod(d, pm1))).To(Equal(0))
			Expect(priv.Dq().Cmp(new(big.Int).Mod(d, qm1))).To(Equal(0))
			Expect(priv.Qinv().Cmp(new(big.Int).ModInverse(q, p))).To(Equal(0))
			Expect(priv.PParams().Big().Cmp(p)).To(Equal(0))
			Expect(priv.QParams().Big().Cmp(q)).To(Equal(0))
		})

		It("Is idempotent", func() {
			priv := referenceKey()
			dp := priv.Dp()
			Expect(priv.Precompute()).To(Succeed())
			Expect(priv.Dp()).To(BeIdenticalTo(dp))
		})

		It("Decrypts identically with and without the fast path", func() {
			priv := referenceKey()
			m := big.NewInt(42)
			c := encryptInt(&priv.PublicKey, m)

			withCRT, err := decryptInt(nil, priv, c)
			Expect(err).To(BeNil())

			priv.ClearPrecomputed()
			Expect(priv.Dp()).To(BeNil())
			Expect(priv.Qinv()).To(BeNil())

			withoutCRT, err := decryptInt(nil, priv, c)
			Expect(err).To(BeNil())
			Expect(withCRT.Cmp(withoutCRT)).To(Equal(0), "both decryption paths must agree")

			Expect(priv.Precompute()).To(Succeed())
			Expect(priv.Dp()).NotTo(BeNil())
		})

		It("Never accelerates primes beyond the second", func() {
			priv, err := GenerateMultiPrimeKey(rand.Reader, 3, 256)
			Expect(err).To(BeNil())
			Expect(priv.PrecomputeErr()).To(BeNil())
			Expect(priv.PParams().Big().Cmp(priv.Primes()[0])).To(Equal(0))
			Expect(priv.QParams().Big().Cmp(priv.Primes()[1])).To(Equal(0))
			checkRoundTrip(priv)
		})
	})

	Context("Blinding", func() {
		It("Redraws a zero blinding factor", func() {
			priv := referenceKey()
			m := big.NewInt(42)
			c := encryptInt(&priv.PublicKey, m)

			// the prefix makes the first draw exactly zero, which must
			// be rejected and replaced by a fresh draw
			random := &countingReader{r: &prefixedReader{
				prefix: make([]byte, priv.Size()),
				rest:   rand.Reader,
			}}
			got, err := decryptInt(random, priv, c)
			Expect(err).To(BeNil())
			Expect(got.Cmp(m)).To(Equal(0))
			Expect(random.n > priv.Size()).To(BeTrue(), "a zero draw must consume a second draw's worth of randomness")
		})
	})

	Context("Wiping", func() {
		It("Zeroes every secret component", func() {
			priv := referenceKey()
			priv.Wipe()

			Expect(priv.D().Sign()).To(Equal(0))
			for _, p := range priv.Primes() {
				Expect(p.Sign()).To(Equal(0))
			}
			Expect(priv.Dp()).To(BeNil())
			Expect(priv.N().Sign()).NotTo(Equal(0), "the public half survives a wipe")
		})

		It("Rejects decryption against an out-of-range ciphertext", func() {
			priv := referenceKey()
			tooBig := new(big.Int).Add(priv.N(), bigOne)
			_, err := decryptInt(nil, priv, tooBig)
			Expect(err).To(MatchError(ErrDecryption))
		})
	})
})

var _ = Describe("Serialization", func() {

	It("Round-trips a private key through PEM", func() {
		priv := referenceKey()
		encoded, err := priv.EncodePEM()
		Expect(err).To(BeNil(), fmt.Sprintf("failed to encode: %s", err))

		decoded, err := DecodePrivatePEM(encoded)
		Expect(err).To(BeNil(), fmt.Sprintf("failed to decode: %s", err))
		Expect(decoded.Equal(priv)).To(BeTrue(), "decoding must invert encoding")
		Expect(decoded.Dp()).NotTo(BeNil(), "precomputed values are rebuilt on decode")
	})

	It("Round-trips a multiprime private key through PEM", func() {
		priv, err := GenerateMultiPrimeKey(rand.Reader, 4, 256)
		Expect(err).To(BeNil())

		encoded, err := priv.EncodePEM()
		Expect(err).To(BeNil())
		decoded, err := DecodePrivatePEM(encoded)
		Expect(err).To(BeNil())
		Expect(decoded.Equal(priv)).To(BeTrue())
	})

	It("Round-trips a public key through PEM", func() {
		priv := referenceKey()
		encoded, err := priv.Public().EncodePEM()
		Expect(err).To(BeNil())

		decoded, err := DecodePublicPEM(encoded)
		Expect(err).To(BeNil())
		Expect(decoded.Equal(priv.Public())).To(BeTrue())
	})

	It("Rejects a record carrying an empty modulus", func() {
		_, e, d, p, q := referenceComponents()
		raw, err := asn1.Marshal(encodedPrivateKey{
			PublicKey: encodedPublicKey{N: []byte{}, E: int64(e)},
			D:         d.Bytes(),
			Primes:    [][]byte{p.Bytes(), q.Bytes()},
		})
		Expect(err).To(BeNil())
		hostile := string(pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: raw}))

		_, err = DecodePrivatePEM(hostile)
		Expect(err).To(MatchError(ErrInvalidModulus))
	})

	It("Refuses a PEM block of the wrong type", func() {
		priv := referenceKey()
		encoded, err := priv.EncodePEM()
		Expect(err).To(BeNil())

		_, err = DecodePublicPEM(encoded)
		Expect(err).NotTo(BeNil(), "a private block must not parse as a public key")
	})
})

var _ = Describe("Schemes", func() {

	var priv *PrivateKey

	BeforeEach(func() {
		var err error
		priv, err = GenerateKey(rand.Reader, 1024)
		Expect(err).To(BeNil(), fmt.Sprintf("failed to generate key: %s", err))
	})

	Context("PKCS #1 v1.5 encryption", func() {
		scheme := PKCS1v15Encryption{}

		It("Round-trips a message", func() {
			msg := []byte("the quick brown fox")
			ciphertext, err := priv.Public().Encrypt(rand.Reader, scheme, msg)
			Expect(err).To(BeNil(), fmt.Sprintf("failed to encrypt: %s", err))
			Expect(len(ciphertext)).To(Equal(priv.Size()))

			plaintext, err := priv.Decrypt(scheme, ciphertext)
			Expect(err).To(BeNil(), fmt.Sprintf("failed to decrypt: %s", err))
			Expect(plaintext).To(Equal(msg))

			plaintext, err = priv.DecryptBlinded(rand.Reader, scheme, ciphertext)
			Expect(err).To(BeNil(), fmt.Sprintf("failed to decrypt with blinding: %s", err))
			Expect(plaintext).To(Equal(msg))
		})

		It("Pads even when the randomness source only yields zeros", func() {
			msg := []byte("zeros")
			ciphertext, err := priv.Public().Encrypt(zeroReader{}, scheme, msg)
			Expect(err).To(BeNil(), "padding must redraw its way out of zero bytes")

			plaintext, err := priv.Decrypt(scheme, ciphertext)
			Expect(err).To(BeNil())
			Expect(plaintext).To(Equal(msg))
		})

		It("Refuses messages longer than the modulus allows", func() {
			msg := make([]byte, priv.Size()-10)
			_, err := priv.Public().Encrypt(rand.Reader, scheme, msg)
			Expect(err).To(MatchError(ErrMessageTooLong))
		})

		It("Rejects a tampered ciphertext", func() {
			ciphertext, err := priv.Public().Encrypt(rand.Reader, scheme, []byte("intact"))
			Expect(err).To(BeNil())

			ciphertext[len(ciphertext)-1] ^= 0xff
			_, err = priv.Decrypt(scheme, ciphertext)
			Expect(err).To(MatchError(ErrDecryption))
		})
	})

	Context("PKCS #1 v1.5 signatures", func() {
		scheme := PKCS1v15Signature{Hash: crypto.SHA256}
		digest := sha256.Sum256([]byte("TEST MESSAGE"))

		It("Produces a signature the public key verifies", func() {
			sig, err := priv.Sign(scheme, digest[:])
			Expect(err).To(BeNil(), fmt.Sprintf("failed to sign: %s", err))
			Expect(len(sig)).To(Equal(priv.Size()))
			Expect(priv.Public().Verify(scheme, digest[:], sig)).To(Succeed())

			blindedSig, err := priv.SignWithRand(rand.Reader, scheme, digest[:])
			Expect(err).To(BeNil(), fmt.Sprintf("failed to sign with blinding: %s", err))
			Expect(blindedSig).To(Equal(sig), "blinding must not change the deterministic signature")
		})

		It("Rejects a tampered signature", func() {
			sig, err := priv.Sign(scheme, digest[:])
			Expect(err).To(BeNil())

			sig[0] ^= 0x01
			Expect(priv.Public().Verify(scheme, digest[:], sig)).To(MatchError(ErrVerification))
		})

		It("Rejects a signature over a different digest", func() {
			sig, err := priv.Sign(scheme, digest[:])
			Expect(err).To(BeNil())

			other := sha256.Sum256([]byte("OTHER MESSAGE"))
			Expect(priv.Public().Verify(scheme, other[:], sig)).To(MatchError(ErrVerification))
		})

		It("Refuses a digest of the wrong length", func() {
			_, err := priv.Sign(scheme, []byte("short"))
			Expect(err).NotTo(BeNil())
		})
	})
})

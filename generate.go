package rsakeys

import (
	"crypto/rand"
	"io"
	"math"
	"math/big"

	"github.com/quadprime/rsakeys/wipe"
)

// DefaultExponent is the public exponent used when none is specified.
const DefaultExponent uint64 = 65537

// Components is the transient output of the multiprime generator:
// everything needed to build a PrivateKey, before any precomputation.
type Components struct {
	N      *big.Int
	E      uint64
	D      *big.Int
	Primes []*big.Int
}

// Wipe overwrites the secret parts (d and the primes) with zeros.
func (c *Components) Wipe() {
	wipe.BigInt(c.D)
	wipe.BigInts(c.Primes)
}

// drawPrime produces a probable prime of the requested bit length with
// its two most significant bits set. Swapped out in tests.
var drawPrime = rand.Prime

// GenerateComponents generates the components of a multiprime RSA key
// of the given bit size and public exponent, reading randomness from
// random.
//
// The only reported failures are ErrNprimesTooSmall and, for bit sizes
// under 64, ErrTooFewPrimes when not enough distinct primes of the
// required length exist. Everything else retries silently: the loop is
// uncapped and correctness-oriented, so callers needing a latency bound
// must impose it externally.
func GenerateComponents(random io.Reader, nprimes, bits int, e uint64) (*Components, error) {
	if nprimes < 2 {
		return nil, ErrNprimesTooSmall
	}

	if bits < 64 {
		primeLimit := float64(uint64(1) << uint(bits/nprimes))
		// pi approximates the number of primes less than primeLimit
		pi := primeLimit / (math.Log(primeLimit) - 1)
		// Generated primes start with 11 (in binary) so we can only
		// use a quarter of them.
		pi /= 4
		// Use a factor of two to ensure that key generation terminates
		// in a reasonable amount of time.
		pi /= 2
		if pi <= float64(nprimes) {
			return nil, ErrTooFewPrimes
		}
	}

	primes := make([]*big.Int, nprimes)
	var n, d *big.Int

NextSetOfPrimes:
	for {
		todo := bits
		// drawPrime sets the top two bits in each prime, so each prime
		// has the form
		//   p_i = 2^bitlen(p_i) × 0.11... (in base 2)
		// and the product is
		//   P = 2^todo × α
		// where α is the product of nprimes numbers of the form 0.11...
		//
		// If α < 1/2 (which can happen for nprimes > 2), we need to
		// shift todo to compensate for lost bits: the mean value of
		// 0.11... is 7/8, so todo + shift - nprimes * log2(7/8)
		// ~= bits - 1/2 will give good results.
		if nprimes >= 7 {
			todo += (nprimes - 2) / 5
		}

		for i := 0; i < nprimes; i++ {
			p, err := drawPrime(random, todo/(nprimes-i))
			if err != nil {
				wipe.BigInts(primes)
				return nil, err
			}
			primes[i] = p
			todo -= p.BitLen()
		}

		// make sure the primes are pairwise unequal
		for i, p := range primes {
			for j := 0; j < i; j++ {
				if p.Cmp(primes[j]) == 0 {
					wipe.BigInts(primes)
					continue NextSetOfPrimes
				}
			}
		}

		n = computeModulus(primes)
		if n.BitLen() != bits {
			// This should never happen for nprimes == 2 because
			// drawPrime pins the top two bits in each prime.
			// For nprimes > 2 we hope it does not happen often.
			wipe.BigInt(n)
			wipe.BigInts(primes)
			continue NextSetOfPrimes
		}

		var err error
		d, err = privateExponentEulerTotient(primes, e)
		if err != nil {
			// e has no inverse mod phi for this set of primes; an
			// expected probabilistic event, not a reportable error
			wipe.BigInt(n)
			wipe.BigInts(primes)
			continue NextSetOfPrimes
		}
		break
	}

	return &Components{N: n, E: e, D: d, Primes: primes}, nil
}

// GenerateKey generates a two-prime RSA key pair of the given bit size
// with the default public exponent 65537.
func GenerateKey(random io.Reader, bits int) (*PrivateKey, error) {
	return GenerateKeyWithExponent(random, bits, DefaultExponent)
}

// GenerateKeyWithExponent generates a two-prime RSA key pair of the
// given bit size and public exponent. Unless you have specific needs,
// use GenerateKey instead.
func GenerateKeyWithExponent(random io.Reader, bits int, e uint64) (*PrivateKey, error) {
	return generateKey(random, 2, bits, e)
}

// GenerateMultiPrimeKey generates an RSA key pair whose modulus is the
// product of nprimes primes. Public keys are indistinguishable from the
// two-prime case, but multiprime private keys may not be exportable to
// formats that assume two primes.
func GenerateMultiPrimeKey(random io.Reader, nprimes, bits int) (*PrivateKey, error) {
	return generateKey(random, nprimes, bits, DefaultExponent)
}

func generateKey(random io.Reader, nprimes, bits int, e uint64) (*PrivateKey, error) {
	comps, err := GenerateComponents(random, nprimes, bits, e)
	if err != nil {
		return nil, err
	}
	defer comps.Wipe()
	return PrivateKeyFromComponents(comps.N, comps.E, comps.D, comps.Primes)
}

package rsakeys

import (
	"io"
	"math/big"

	"github.com/quadprime/rsakeys/numeric"
	"github.com/quadprime/rsakeys/wipe"
)

// A PrivateKey holds a whole RSA key, public and private parts. The key
// exclusively owns its private exponent, its prime factors and its
// precomputed values; callers must not modify what the accessors
// return. Once constructed, a key is safe for concurrent read-only use
// as long as no goroutine calls Precompute, ClearPrecomputed or Wipe
// concurrently with other use.
type PrivateKey struct {
	PublicKey
	d      *big.Int
	primes []*big.Int

	precomputed   *precomputedValues
	precomputeErr error
}

// precomputedValues accelerate private operations over the first two
// primes. Never persisted; rebuilt on demand.
type precomputedValues struct {
	dp   *big.Int // d mod (p-1)
	dq   *big.Int // d mod (q-1)
	qinv *big.Int // q^-1 mod p

	p *numeric.Modulus
	q *numeric.Modulus
}

func (pc *precomputedValues) wipeValues() {
	wipe.BigInt(pc.dp)
	wipe.BigInt(pc.dq)
	wipe.BigInt(pc.qinv)
}

// PrivateKeyFromComponents constructs a key pair from individual
// components: the modulus n, public exponent e, private exponent d and
// the prime factors of n.
//
// With two or more primes the components are accepted as supplied and
// validation is opt-in via Validate. With exactly one prime the
// construction fails with ErrNprimesTooSmall. With no primes at all,
// the two factors are recovered from (n, e, d) per NIST SP 800-56B r2
// appendix C.2 — this works only for two-prime keys with e in
// [2^16, 2^256) — and the recovered key is always validated.
//
// The key stores copies of all inputs; wiping the caller's values
// afterwards is the caller's business.
func PrivateKeyFromComponents(n *big.Int, e uint64, d *big.Int, primes []*big.Int) (*PrivateKey, error) {
	// a zero modulus can arrive in a hostile serialized record; reject
	// it before any reduction context or recovery division touches it
	if n == nil || n.Sign() == 0 {
		return nil, ErrInvalidModulus
	}

	ps := make([]*big.Int, len(primes))
	for i, p := range primes {
		ps[i] = new(big.Int).Set(p)
	}

	shouldValidate := false
	if len(ps) < 2 {
		if len(ps) != 0 {
			wipe.BigInts(ps)
			return nil, ErrNprimesTooSmall
		}
		p, q, err := recoverPrimes(n, e, d)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p, q)
		shouldValidate = true
	}

	priv := &PrivateKey{
		PublicKey: *NewPublicKeyUnchecked(n, e),
		d:         new(big.Int).Set(d),
		primes:    ps,
	}

	// recovery is probabilistic, so a recovered key must be confirmed
	if shouldValidate {
		if err := priv.Validate(); err != nil {
			priv.Wipe()
			return nil, err
		}
	}

	// precompute when possible; a key without acceleration is still
	// fully usable, so the error is recorded, not returned
	priv.precomputeErr = priv.Precompute()

	return priv, nil
}

// PrivateKeyFromPQ constructs a key pair from its two primes, deriving
// the modulus and, per NIST 800-56B section 6.2.1, the private exponent
// from the Carmichael function lcm(p-1, q-1).
func PrivateKeyFromPQ(p, q *big.Int, e uint64) (*PrivateKey, error) {
	if p.Cmp(q) == 0 {
		return nil, ErrInvalidPrime
	}

	n := computeModulus([]*big.Int{p, q})
	d, err := privateExponentCarmichael(p, q, e)
	if err != nil {
		return nil, err
	}
	defer wipe.BigInt(d)

	return PrivateKeyFromComponents(n, e, d, []*big.Int{p, q})
}

// PrivateKeyFromPrimes constructs a key pair from two or more pairwise
// distinct primes, deriving the modulus and the private exponent from
// the Euler totient.
func PrivateKeyFromPrimes(primes []*big.Int, e uint64) (*PrivateKey, error) {
	if len(primes) < 2 {
		return nil, ErrNprimesTooSmall
	}
	for i, p := range primes {
		for j := 0; j < i; j++ {
			if p.Cmp(primes[j]) == 0 {
				return nil, ErrInvalidPrime
			}
		}
	}

	n := computeModulus(primes)
	d, err := privateExponentEulerTotient(primes, e)
	if err != nil {
		return nil, err
	}
	defer wipe.BigInt(d)

	return PrivateKeyFromComponents(n, e, d, primes)
}

// Public returns a secret-free snapshot of the public half of the key.
func (priv *PrivateKey) Public() *PublicKey {
	pub := priv.PublicKey
	return &pub
}

// D returns the private exponent. The returned value must not be
// modified.
func (priv *PrivateKey) D() *big.Int {
	return priv.d
}

// Primes returns the ordered prime factors of the modulus. The returned
// values must not be modified.
func (priv *PrivateKey) Primes() []*big.Int {
	return priv.primes
}

// Dp returns d mod (p-1), or nil if Precompute has not succeeded.
func (priv *PrivateKey) Dp() *big.Int {
	if priv.precomputed == nil {
		return nil
	}
	return priv.precomputed.dp
}

// Dq returns d mod (q-1), or nil if Precompute has not succeeded.
func (priv *PrivateKey) Dq() *big.Int {
	if priv.precomputed == nil {
		return nil
	}
	return priv.precomputed.dq
}

// Qinv returns q^-1 mod p, or nil if Precompute has not succeeded.
func (priv *PrivateKey) Qinv() *big.Int {
	if priv.precomputed == nil {
		return nil
	}
	return priv.precomputed.qinv
}

// PParams returns the reduction context for the first prime, or nil if
// Precompute has not succeeded.
func (priv *PrivateKey) PParams() *numeric.Modulus {
	if priv.precomputed == nil {
		return nil
	}
	return priv.precomputed.p
}

// QParams returns the reduction context for the second prime, or nil if
// Precompute has not succeeded.
func (priv *PrivateKey) QParams() *numeric.Modulus {
	if priv.precomputed == nil {
		return nil
	}
	return priv.precomputed.q
}

// PrecomputeErr reports the outcome of the opportunistic Precompute run
// at construction, for callers that want to propagate it.
func (priv *PrivateKey) PrecomputeErr() error {
	return priv.precomputeErr
}

// Equal reports whether priv and other have the same public components,
// private exponent and prime factors.
func (priv *PrivateKey) Equal(other *PrivateKey) bool {
	if !priv.PublicKey.Equal(&other.PublicKey) {
		return false
	}
	if priv.d.Cmp(other.d) != 0 || len(priv.primes) != len(other.primes) {
		return false
	}
	for i, p := range priv.primes {
		if p.Cmp(other.primes[i]) != 0 {
			return false
		}
	}
	return true
}

// Precompute derives the CRT acceleration parameters from the first two
// primes: dp = d mod (p-1), dq = d mod (q-1) and qinv = q^-1 mod p,
// plus reduction contexts for p and q. It is an idempotent no-op if the
// values are already present. Primes beyond the second never gain
// acceleration.
func (priv *PrivateKey) Precompute() error {
	if priv.precomputed != nil {
		return nil
	}

	p, q := priv.primes[0], priv.primes[1]
	if p.Cmp(bigOne) <= 0 || q.Cmp(bigOne) <= 0 {
		return ErrInvalidPrime
	}

	pm1 := new(big.Int).Sub(p, bigOne)
	qm1 := new(big.Int).Sub(q, bigOne)
	dp := new(big.Int).Mod(priv.d, pm1)
	dq := new(big.Int).Mod(priv.d, qm1)
	wipe.BigInt(pm1)
	wipe.BigInt(qm1)

	// no inverse means p and q were not coprime, i.e. the key is bad
	qinv := new(big.Int).ModInverse(q, p)
	if qinv == nil {
		wipe.BigInt(dp)
		wipe.BigInt(dq)
		return ErrInvalidPrime
	}

	priv.precomputed = &precomputedValues{
		dp:   dp,
		dq:   dq,
		qinv: qinv,
		p:    numeric.NewModulus(p),
		q:    numeric.NewModulus(q),
	}
	return nil
}

// ClearPrecomputed wipes and drops the precomputed values, for example
// before serializing the key without leaking acceleration state.
// Private operations keep working without them.
func (priv *PrivateKey) ClearPrecomputed() {
	if priv.precomputed == nil {
		return
	}
	priv.precomputed.wipeValues()
	priv.precomputed = nil
}

// Validate performs basic sanity checks on the key, re-deriving every
// invariant and ignoring any precomputed values. It returns nil if
// everything is good, otherwise the first violated invariant.
func (priv *PrivateKey) Validate() error {
	if err := checkPublicComponents(priv.n, priv.e, MaxModulusBits); err != nil {
		return err
	}

	// check that Πprimes == n
	m := new(big.Int).Set(bigOne)
	defer wipe.BigInt(m)
	for _, p := range priv.primes {
		// any prime <= 1 would cause a divide-by-zero below
		if p.Cmp(bigOne) <= 0 {
			return ErrInvalidPrime
		}
		m.Mul(m, p)
	}
	if m.Cmp(priv.n) != 0 {
		return ErrInvalidModulus
	}

	// Check that de ≡ 1 mod p-1, for each prime. This implies that e
	// is coprime to each p-1 as e has a multiplicative inverse.
	// Therefore e is coprime to lcm(p-1, q-1, r-1, ...) =
	// exponent(ℤ/nℤ). It also implies that a^de ≡ a mod p as
	// a^(p-1) ≡ 1 mod p. Thus a^de ≡ a mod n for all a coprime to n,
	// as required. The product is taken at doubled precision so it
	// cannot overflow its declared size.
	de := numeric.MulWide(priv.d, new(big.Int).SetUint64(priv.e))
	defer wipe.BigInt(de)
	for _, p := range priv.primes {
		pm1 := new(big.Int).Sub(p, bigOne)
		congruence := numeric.NewModulus(pm1).Reduce(de)
		ok := congruence.Cmp(bigOne) == 0
		wipe.BigInt(pm1)
		wipe.BigInt(congruence)
		if !ok {
			return ErrInvalidExponent
		}
	}

	return nil
}

// Wipe overwrites the key's secret material — the private exponent, the
// primes and any precomputed values — with zeros. The key must not be
// used afterwards.
func (priv *PrivateKey) Wipe() {
	wipe.BigInt(priv.d)
	wipe.BigInts(priv.primes)
	if priv.precomputed != nil {
		priv.precomputed.wipeValues()
		priv.precomputed = nil
	}
}

// Decrypt decrypts ciphertext with the given scheme, without blinding.
func (priv *PrivateKey) Decrypt(scheme EncryptionScheme, ciphertext []byte) ([]byte, error) {
	return scheme.Decrypt(nil, priv, ciphertext)
}

// DecryptBlinded decrypts ciphertext with the given scheme, using
// random to blind the private operation against timing side channels.
func (priv *PrivateKey) DecryptBlinded(random io.Reader, scheme EncryptionScheme, ciphertext []byte) ([]byte, error) {
	return scheme.Decrypt(random, priv, ciphertext)
}

// Sign signs digest with the given scheme, without blinding. digest
// must be the result of hashing the message with the scheme's hash
// function.
func (priv *PrivateKey) Sign(scheme SignatureScheme, digest []byte) ([]byte, error) {
	return scheme.Sign(nil, priv, digest)
}

// SignWithRand signs digest with the given scheme, using random to
// blind the private operation. Operations on keys exposed to any
// externally observable channel should always use this variant.
func (priv *PrivateKey) SignWithRand(random io.Reader, scheme SignatureScheme, digest []byte) ([]byte, error) {
	return scheme.Sign(random, priv, digest)
}

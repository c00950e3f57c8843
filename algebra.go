package rsakeys

import (
	"math/big"

	"github.com/quadprime/rsakeys/wipe"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// computeModulus returns n = p[0] * p[1] * ... however many primes
// there are. It never fails.
func computeModulus(primes []*big.Int) *big.Int {
	n := new(big.Int).Set(primes[0])
	for _, p := range primes[1:] {
		n.Mul(n, p)
	}
	return n
}

// eulerTotient calculates phi(n) from the prime factors of n.
func eulerTotient(primes []*big.Int) *big.Int {
	// phi <- (p[0] - 1) * (p[1] - 1)
	p0m1 := new(big.Int).Sub(primes[0], bigOne)
	p1m1 := new(big.Int).Sub(primes[1], bigOne)
	phi := new(big.Int).Mul(p0m1, p1m1)
	wipe.BigInt(p0m1)
	wipe.BigInt(p1m1)

	// iteratively multiply any additional primes into phi
	for i := 2; i < len(primes); i++ {
		pim1 := new(big.Int).Sub(primes[i], bigOne)
		phi.Mul(phi, pim1)
		wipe.BigInt(pim1)
	}

	return phi
}

// privateExponentEulerTotient returns d = e^-1 mod phi(n) with
// phi(n) = (p[0]-1)(p[1]-1)... over all primes.
func privateExponentEulerTotient(primes []*big.Int, e uint64) (*big.Int, error) {
	phi := eulerTotient(primes)
	defer wipe.BigInt(phi)

	// this only succeeds if e is coprime to phi, because otherwise
	// e has no multiplicative inverse in the ring ℤ/phiℤ
	d := new(big.Int).ModInverse(new(big.Int).SetUint64(e), phi)
	if d == nil {
		return nil, ErrInvalidExponent
	}
	return d, nil
}

// privateExponentCarmichael returns d = e^-1 mod lambda(n) for a
// two-prime key, with lambda(n) = lcm(p-1, q-1). This matches the
// NIST 800-56B section 6.2.1 reconstruction convention for keys built
// from an explicit (p, q) pair.
func privateExponentCarmichael(p, q *big.Int, e uint64) (*big.Int, error) {
	pm1 := new(big.Int).Sub(p, bigOne)
	qm1 := new(big.Int).Sub(q, bigOne)
	gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
	lambda := new(big.Int).Div(pm1, gcd)
	lambda.Mul(lambda, qm1)
	defer wipe.BigInts([]*big.Int{pm1, qm1, gcd, lambda})

	d := new(big.Int).ModInverse(new(big.Int).SetUint64(e), lambda)
	if d == nil {
		return nil, ErrInvalidExponent
	}
	return d, nil
}

// recoverPrimes factors n into exactly two primes given a consistent
// (n, e, d) triple, using the deterministic method of NIST SP 800-56B
// revision 2, appendix C.2. The method requires 2^16 <= e < 2^256; the
// upper bound is enforced by e's 64-bit representation together with
// the public exponent checks.
//
// Recovery can produce wrong factors for an inconsistent triple, so
// callers must validate the resulting key.
func recoverPrimes(n *big.Int, e uint64, d *big.Int) (*big.Int, *big.Int, error) {
	if e < 1<<16 {
		return nil, nil, ErrInvalidExponent
	}

	// a = (de - 1) * gcd(n - 1, de - 1)
	de1 := new(big.Int).Mul(d, new(big.Int).SetUint64(e))
	de1.Sub(de1, bigOne)
	nm1 := new(big.Int).Sub(n, bigOne)
	gcd := new(big.Int).GCD(nil, nil, nm1, de1)
	a := new(big.Int).Mul(de1, gcd)
	defer wipe.BigInts([]*big.Int{de1, nm1, gcd, a})

	// split a = m*n + r with 0 <= r < n
	m := new(big.Int)
	r := new(big.Int)
	m.DivMod(a, n, r)
	defer wipe.BigInt(m)
	defer wipe.BigInt(r)

	// b = (n - r)/(m + 1) + 1 must be an integer
	mp1 := new(big.Int).Add(m, bigOne)
	nr := new(big.Int).Sub(n, r)
	b := new(big.Int)
	rem := new(big.Int)
	b.DivMod(nr, mp1, rem)
	defer wipe.BigInts([]*big.Int{mp1, nr, rem})
	if rem.Sign() != 0 {
		return nil, nil, ErrInvalidPrime
	}
	b.Add(b, bigOne)
	defer wipe.BigInt(b)

	// y = sqrt(b^2 - 4n) must be a whole number, and then
	// p = (b + y)/2, q = (b - y)/2
	b2 := new(big.Int).Mul(b, b)
	fourN := new(big.Int).Lsh(n, 2)
	defer wipe.BigInt(b2)
	if b2.Cmp(fourN) <= 0 {
		return nil, nil, ErrInvalidPrime
	}
	b2.Sub(b2, fourN)
	y := new(big.Int).Sqrt(b2)
	defer wipe.BigInt(y)
	y2 := new(big.Int).Mul(y, y)
	whole := y2.Cmp(b2) == 0
	wipe.BigInt(y2)
	if !whole {
		return nil, nil, ErrInvalidPrime
	}

	p := new(big.Int).Add(b, y)
	p.Div(p, bigTwo)
	q := new(big.Int).Sub(b, y)
	q.Div(q, bigTwo)
	return p, q, nil
}

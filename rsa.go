package rsakeys

import (
	"crypto/rand"
	"io"
	"math/big"

	"github.com/quadprime/rsakeys/wipe"
)

// encryptInt computes m^e mod n through the key's cached reduction
// context.
func encryptInt(pub *PublicKey, m *big.Int) *big.Int {
	return pub.nCtx.Exp(m, new(big.Int).SetUint64(pub.e))
}

// decryptInt performs a raw RSA decryption, resulting in a plaintext
// integer. If random is not nil the private operation is blinded: a
// random invertible scalar masks the input before the exponentiation
// and is divided back out afterwards, which defeats timing analysis of
// the exponentiation itself.
//
// With exactly two primes and precomputed values present, the CRT fast
// path is taken. Keys with more primes always use plain exponentiation;
// primes beyond the second never gain acceleration.
func decryptInt(random io.Reader, priv *PrivateKey, c *big.Int) (*big.Int, error) {
	if priv.n.Sign() == 0 || c.Cmp(priv.n) > 0 {
		return nil, ErrDecryption
	}

	var ir *big.Int
	if random != nil {
		// Blinding: c' = c * r^e mod n, so that c'^d = m * r mod n.
		// r must be invertible mod n. A draw sharing a factor with n
		// has no inverse, so retry until one exists.
		var r *big.Int
		for {
			var err error
			r, err = rand.Int(random, priv.n)
			if err != nil {
				return nil, err
			}
			// a zero draw would leave the input unmasked; redraw
			if r.Sign() == 0 {
				continue
			}
			ir = new(big.Int).ModInverse(r, priv.n)
			if ir != nil {
				break
			}
			wipe.BigInt(r)
		}
		rpowe := encryptInt(&priv.PublicKey, r)
		blinded := new(big.Int).Mul(c, rpowe)
		c = priv.nCtx.Reduce(blinded)
		wipe.BigInt(r)
		wipe.BigInt(rpowe)
		wipe.BigInt(blinded)
	}

	var m *big.Int
	pc := priv.precomputed
	if pc == nil || len(priv.primes) != 2 {
		m = priv.nCtx.Exp(c, priv.d)
	} else {
		// m1 = c^dp mod p, m2 = c^dq mod q,
		// h = qinv * (m1 - m2) mod p, m = m2 + h*q
		m1 := pc.p.Exp(c, pc.dp)
		m2 := pc.q.Exp(c, pc.dq)
		h := new(big.Int).Sub(m1, m2)
		h.Mod(h, pc.p.Big())
		hq := pc.p.ModMul(pc.qinv, h)
		m = new(big.Int).Mul(hq, pc.q.Big())
		m.Add(m, m2)
		wipe.BigInts([]*big.Int{m1, m2, h, hq})
	}

	if ir != nil {
		// unblind: m = m * r^-1 mod n
		masked := m
		product := new(big.Int).Mul(masked, ir)
		m = priv.nCtx.Reduce(product)
		wipe.BigInts([]*big.Int{masked, product, ir})
	}

	return m, nil
}

// decryptAndCheck re-encrypts the plaintext and compares it against the
// ciphertext. A fault in the CRT computation would otherwise yield an
// output that leaks the factorization of the modulus.
func decryptAndCheck(random io.Reader, priv *PrivateKey, c *big.Int) (*big.Int, error) {
	m, err := decryptInt(random, priv, c)
	if err != nil {
		return nil, err
	}

	check := encryptInt(&priv.PublicKey, m)
	ok := check.Cmp(c) == 0
	wipe.BigInt(check)
	if !ok {
		wipe.BigInt(m)
		return nil, ErrDecryption
	}
	return m, nil
}

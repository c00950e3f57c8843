/*
Package rsakeys implements generation, validation and secure handling of
multiprime RSA keys.

# Overview

The package covers the key-management half of an RSA implementation: it
generates keys with two or more prime factors, derives the private
exponent and the CRT acceleration parameters, validates keys rebuilt
from externally supplied components, and guarantees that secret material
can be wiped from memory. Padding and signature schemes are deliberately
kept outside: keys talk to them only through the narrow
[EncryptionScheme] and [SignatureScheme] interfaces, of which
[PKCS1v15Encryption] and [PKCS1v15Signature] are the bundled
implementations.

Generating and using a key:

	priv, err := rsakeys.GenerateKey(rand.Reader, 2048)
	ct, err := priv.Public().Encrypt(rand.Reader, rsakeys.PKCS1v15Encryption{}, msg)
	pt, err := priv.DecryptBlinded(rand.Reader, rsakeys.PKCS1v15Encryption{}, ct)

A key can also be rebuilt from parts. With two or more primes the
supplied components are trusted as-is and validation is opt-in via
[PrivateKey.Validate]. With no primes at all, the two factors are
recovered from (n, e, d) following NIST SP 800-56B r2 appendix C.2 and
the result is always validated, because recovered factors must be
confirmed before use:

	priv, err := rsakeys.PrivateKeyFromComponents(n, e, d, nil)

# Multiprime keys

More than two primes make private operations cheaper at a given modulus
size, at some security cost for large prime counts. Public keys are
indistinguishable from the two-prime case. CRT acceleration only ever
covers the first two primes; keys with more primes fall back to plain
exponentiation for private operations.

# Secrets

The private exponent, the prime factors and the precomputed CRT
exponents are cryptographic secrets. [PrivateKey.Wipe] overwrites all of
them with zeros, and transient secrets created internally (blinding
factors, rejected generation rounds, recovery intermediates) are wiped
before the function holding them returns. Keys should be treated as
immutable once constructed; the package adds no internal locking.

Generation has no retry cap: rounds that draw duplicate primes, miss the
requested modulus length or hit a non-invertible exponent are expected
probabilistic events and restart silently. Callers that need a timeout
should run generation under their own cancellation mechanism.
*/
package rsakeys

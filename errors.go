package rsakeys

import "errors"

// Structural and numeric checks fail fast with one of these sentinels.
// The two deliberately silent paths are the generator's internal
// retries and the opportunistic precompute after construction; see
// PrecomputeErr for observing the latter.
var (
	// ErrNprimesTooSmall is returned when fewer than two primes are
	// requested or supplied.
	ErrNprimesTooSmall = errors.New("rsakeys: multiprime key needs at least two primes")

	// ErrTooFewPrimes is returned when the requested bit size is so
	// small that not enough distinct primes of the required length
	// exist.
	ErrTooFewPrimes = errors.New("rsakeys: too few primes of given length to generate a key")

	ErrInvalidPrime    = errors.New("rsakeys: invalid prime")
	ErrInvalidModulus  = errors.New("rsakeys: invalid modulus")
	ErrInvalidExponent = errors.New("rsakeys: invalid exponent")

	ErrModulusTooLarge        = errors.New("rsakeys: modulus too large")
	ErrPublicExponentTooSmall = errors.New("rsakeys: public exponent too small")
	ErrPublicExponentTooLarge = errors.New("rsakeys: public exponent too large")

	// ErrMessageTooLong is returned by schemes when a message does not
	// fit the key's modulus size.
	ErrMessageTooLong = errors.New("rsakeys: message too long for key size")

	ErrDecryption   = errors.New("rsakeys: decryption error")
	ErrVerification = errors.New("rsakeys: verification error")
)

// Package numeric adapts arbitrary-size integers to the fixed
// announced-precision representation used internally for modular
// arithmetic on key material.
//
// Every value carries an explicit bit precision, quantized to a small
// ladder of sizes. Quantizing serves two purposes: reduction contexts
// can be shared between values of the same declared size, and the
// announced length of a secret-adjacent value leaks no more about its
// magnitude than the ladder step it landed on.
package numeric

import (
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
)

// The precision ladder. Values are widened to the smallest step that
// holds them; anything beyond the last step is capped there.
var ladder = [...]int{64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384}

// Precision returns the ladder step for a value of the given bit length.
func Precision(bits int) int {
	for _, p := range ladder {
		if bits <= p {
			return p
		}
	}
	return ladder[len(ladder)-1]
}

// NewNat converts x to a fixed-precision natural at the ladder step for
// its bit length. x must not be negative.
func NewNat(x *big.Int) *saferith.Nat {
	return NatExact(x, Precision(x.BitLen()))
}

// NatExact converts x to a natural with exactly bits announced
// precision. Narrowing below the true length of x would silently
// truncate key material, which is a precision-contract violation by the
// caller, so it panics rather than returning an error.
func NatExact(x *big.Int, bits int) *saferith.Nat {
	if x.Sign() < 0 {
		panic("numeric: negative value")
	}
	if x.BitLen() > bits {
		panic(fmt.Sprintf("numeric: cannot narrow %d-bit value to %d bits", x.BitLen(), bits))
	}
	return new(saferith.Nat).SetBig(x, bits)
}

// Widen returns a copy of x zero-extended to bits announced precision.
func Widen(x *saferith.Nat, bits int) *saferith.Nat {
	if bits < x.AnnouncedLen() {
		panic(fmt.Sprintf("numeric: widen to %d bits below announced %d", bits, x.AnnouncedLen()))
	}
	return x.Clone().Resize(bits)
}

// Shorten returns a copy of x at bits announced precision. Panics if
// the value does not fit, for the same reason NatExact does.
func Shorten(x *saferith.Nat, bits int) *saferith.Nat {
	if x.TrueLen() > bits {
		panic(fmt.Sprintf("numeric: cannot shorten %d-bit value to %d bits", x.TrueLen(), bits))
	}
	return x.Clone().Resize(bits)
}

// MulWide multiplies x and y at doubled announced precision, so the
// product cannot overflow its declared size.
func MulWide(x, y *big.Int) *big.Int {
	prec := Precision(x.BitLen())
	if q := Precision(y.BitLen()); q > prec {
		prec = q
	}
	xw := Widen(NatExact(x, prec), 2*prec)
	yw := Widen(NatExact(y, prec), 2*prec)
	return new(saferith.Nat).Mul(xw, yw, 2*prec).Big()
}

// A Modulus is a reduction context bound to one fixed modulus. Building
// one precomputes the constants for repeated fast reduction, so a
// context should be created once per modulus and reused.
type Modulus struct {
	m    *saferith.Modulus
	prec int
}

// NewModulus builds a reduction context for n. A zero or nil modulus is
// a programmer error and panics.
func NewModulus(n *big.Int) *Modulus {
	if n == nil || n.Sign() == 0 {
		panic("numeric: modulus must be nonzero")
	}
	prec := Precision(n.BitLen())
	return &Modulus{
		m:    saferith.ModulusFromNat(NatExact(n, prec)),
		prec: prec,
	}
}

// Big returns the modulus value.
func (m *Modulus) Big() *big.Int {
	return m.m.Big()
}

// BitLen returns the true bit length of the modulus.
func (m *Modulus) BitLen() int {
	return m.m.BitLen()
}

// Precision returns the declared (ladder) precision of the context.
func (m *Modulus) Precision() int {
	return m.prec
}

// Reduce returns x mod m.
func (m *Modulus) Reduce(x *big.Int) *big.Int {
	return new(saferith.Nat).Mod(NewNat(x), m.m).Big()
}

// Exp returns x^e mod m.
func (m *Modulus) Exp(x, e *big.Int) *big.Int {
	xr := new(saferith.Nat).Mod(NewNat(x), m.m)
	return new(saferith.Nat).Exp(xr, NewNat(e), m.m).Big()
}

// ModMul returns x*y mod m.
func (m *Modulus) ModMul(x, y *big.Int) *big.Int {
	xr := new(saferith.Nat).Mod(NewNat(x), m.m)
	yr := new(saferith.Nat).Mod(NewNat(y), m.m)
	return new(saferith.Nat).ModMul(xr, yr, m.m).Big()
}

// Package wipe overwrites secret material with zeros before it is
// released to the garbage collector. Best-effort: Go gives no hard
// guarantee against copies made by the runtime, but zeroing the
// backing storage removes the long-lived copy.
package wipe

import (
	"math/big"
	"runtime"
)

// Bytes overwrites b with zeros.
//
//go:noinline
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// Keep b live until after the loop so the writes are not elided.
	runtime.KeepAlive(&b)
}

// BigInt zeroes the backing words of x and resets it to zero.
// A nil x is a no-op.
func BigInt(x *big.Int) {
	if x == nil {
		return
	}
	w := x.Bits()
	for i := range w {
		w[i] = 0
	}
	x.SetInt64(0)
	runtime.KeepAlive(&w)
}

// BigInts zeroes every element of xs.
func BigInts(xs []*big.Int) {
	for _, x := range xs {
		BigInt(x)
	}
}

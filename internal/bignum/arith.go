package bignum

import (
	"fmt"
	"math"
)

// Add returns x+y. When the operands are 16 or more decades apart the smaller
// one is absorbed and the larger is returned unchanged.
func (x Number) Add(y Number) Number {
	if x.sign == 0 {
		return y
	}
	if y.sign == 0 {
		return x
	}
	c := cmpAbs(x, y)
	big, small := x, y
	if c < 0 {
		big, small = y, x
	}
	if big.layer > 0 {
		// A layered magnitude exceeds 10^9e15; nothing smaller than it can
		// move its inner value by a representable amount.
		if c == 0 && x.sign != y.sign {
			return Zero
		}
		return big
	}
	diff := big.exp - small.exp
	if diff >= precisionDigits {
		return big
	}
	m := float64(big.sign)*big.mant + float64(small.sign)*small.mant/math.Pow10(int(diff))
	return fromParts(m, big.exp)
}

func (x Number) Sub(y Number) Number {
	return x.Add(y.Neg())
}

func (x Number) Mul(y Number) Number {
	if x.sign == 0 || y.sign == 0 {
		return Zero
	}
	sign := x.sign * y.sign
	if x.layer == 0 && y.layer == 0 {
		return fromParts(float64(sign)*x.mant*y.mant, x.exp+y.exp)
	}
	return exp10(x.log10Abs().Add(y.log10Abs())).withSign(sign)
}

// Div returns x/y. Division by zero yields zero.
func (x Number) Div(y Number) Number {
	if x.sign == 0 || y.sign == 0 {
		return Zero
	}
	sign := x.sign * y.sign
	if x.layer == 0 && y.layer == 0 {
		return fromParts(float64(sign)*x.mant/y.mant, x.exp-y.exp)
	}
	return exp10(x.log10Abs().Sub(y.log10Abs())).withSign(sign)
}

// Pow returns x^p. Results with no real value (a negative base under a
// non-integer exponent, or zero under a negative one) are zero.
func (x Number) Pow(p Number) Number {
	if p.sign == 0 {
		return One
	}
	if x.sign == 0 {
		return Zero
	}
	if x.sign < 0 {
		integral, odd := p.parity()
		if !integral {
			return Zero
		}
		r := x.Abs().Pow(p)
		if odd {
			r = r.Neg()
		}
		return r
	}
	if x.layer == 0 && p.layer == 0 {
		if r, ok := powFloat(x, p); ok {
			return r
		}
	}
	return exp10(x.log10Abs().Mul(p))
}

func (x Number) Sqrt() Number {
	return x.Pow(Half)
}

// powFloat handles the common case where plain float arithmetic is exact
// enough, which keeps small integer powers free of logarithm round-off.
func powFloat(x, p Number) (Number, bool) {
	f := p.Float64()
	if math.IsInf(f, 0) {
		return Zero, false
	}
	if f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		lm := f * math.Log10(x.mant)
		le := float64(x.exp) * f
		if math.Abs(lm) < 300 && math.Abs(le) < maxExpF {
			return fromParts(math.Pow(x.mant, f), x.exp*int64(f)), true
		}
		return Zero, false
	}
	if x.exp > -300 && x.exp < 300 {
		r := math.Pow(x.Float64(), f)
		if r != 0 && !math.IsInf(r, 0) && !math.IsNaN(r) {
			return fromParts(r, 0), true
		}
	}
	return Zero, false
}

func (x Number) parity() (integral, odd bool) {
	if x.layer > 0 || x.exp >= precisionDigits {
		return true, false
	}
	f := x.Float64()
	if f != math.Trunc(f) {
		return false, false
	}
	return true, math.Mod(f, 2) != 0
}

// Log10 returns the base 10 logarithm. x must be positive.
func (x Number) Log10() (Number, error) {
	if x.sign <= 0 {
		return Zero, fmt.Errorf("%w: log10 of %s", ErrDomain, x)
	}
	return x.log10Abs(), nil
}

// Ln returns the natural logarithm. x must be positive.
func (x Number) Ln() (Number, error) {
	if x.sign <= 0 {
		return Zero, fmt.Errorf("%w: ln of %s", ErrDomain, x)
	}
	return x.log10Abs().Mul(ln10), nil
}

// Log returns the logarithm of x in the given base. x and base must be
// positive and base must not be one.
func (x Number) Log(base Number) (Number, error) {
	if x.sign <= 0 {
		return Zero, fmt.Errorf("%w: log of %s", ErrDomain, x)
	}
	if base.sign <= 0 || base.Equals(One) {
		return Zero, fmt.Errorf("%w: log base %s", ErrDomain, base)
	}
	return x.log10Abs().Div(base.log10Abs()), nil
}

func (x Number) log10Abs() Number {
	if x.layer == 0 {
		return fromParts(float64(x.exp)+math.Log10(x.mant), 0)
	}
	inner := x
	inner.layer = 0
	return lift(1, int(x.layer)-1, inner)
}

// exp10 returns 10^x.
func exp10(x Number) Number {
	switch {
	case x.sign == 0:
		return One
	case x.sign < 0:
		if x.layer > 0 {
			return Zero
		}
		return pow10Float(x.Float64())
	}
	return lift(1, 1, x)
}

// Exp10 returns 10^x.
func Exp10(x Number) Number {
	return exp10(x)
}

package bignum

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MaxExponent is the largest base-10 exponent a layer 0 number carries.
	// Anything bigger is stored one layer up.
	MaxExponent = int64(9e15)
	// MaxLayer is the tower height at which numbers saturate.
	MaxLayer = 255

	// Operands further apart than this many decades are absorbed by addition.
	precisionDigits = 16
	maxExpF         = float64(MaxExponent)
)

var (
	ErrInvalidNumber = errors.New("invalid number")
	ErrDomain        = errors.New("argument outside domain")
)

// Number is an immutable real with extended range.
//
// At layer 0 the magnitude is mant*10^exp with mant in [1, 10). At layer L > 0
// the magnitude is 10^10^...^(mant*10^exp) with L tens in the tower and the
// inner value above 9e15, so an exponent that itself needs extended range is
// represented by the same mantissa/exponent pair one level down. The zero
// value is the number 0.
type Number struct {
	sign  int8
	layer uint8
	mant  float64
	exp   int64
}

var (
	Zero = Number{}
	One  = Number{sign: 1, mant: 1}
	Two  = Number{sign: 1, mant: 2}
	Ten  = Number{sign: 1, mant: 1, exp: 1}
	Half = Number{sign: 1, mant: 5, exp: -1}

	ln10 = Number{sign: 1, mant: math.Ln10}
)

func FromFloat(f float64) (Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidNumber, f)
	}
	return fromParts(f, 0), nil
}

func MustFromFloat(f float64) Number {
	n, err := FromFloat(f)
	if err != nil {
		panic(err)
	}
	return n
}

func FromInt(v int64) Number {
	return fromParts(float64(v), 0)
}

// FromSci builds mantissa*10^exponent. The mantissa does not need to be
// normalized.
func FromSci(mantissa float64, exponent int64) (Number, error) {
	if math.IsNaN(mantissa) || math.IsInf(mantissa, 0) {
		return Zero, fmt.Errorf("%w: mantissa %v", ErrInvalidNumber, mantissa)
	}
	if mantissa == 0 {
		return Zero, nil
	}
	if exponent > MaxExponent || exponent < -MaxExponent {
		lg := float64(exponent) + math.Log10(math.Abs(mantissa))
		if lg < -maxExpF {
			return Zero, nil
		}
		n := exp10(fromParts(lg, 0))
		if mantissa < 0 {
			n = n.Neg()
		}
		return n, nil
	}
	return fromParts(mantissa, exponent), nil
}

func MustFromSci(mantissa float64, exponent int64) Number {
	n, err := FromSci(mantissa, exponent)
	if err != nil {
		panic(err)
	}
	return n
}

// NewLayered returns the positive number 10^10^...^(mantissa*10^exponent)
// with layer tens in the tower.
func NewLayered(layer uint8, mantissa float64, exponent int64) (Number, error) {
	inner, err := FromSci(mantissa, exponent)
	if err != nil {
		return Zero, err
	}
	n := inner
	for range layer {
		n = exp10(n)
	}
	return n, nil
}

func (x Number) Sign() int         { return int(x.sign) }
func (x Number) Layer() int        { return int(x.layer) }
func (x Number) Mantissa() float64 { return x.mant }
func (x Number) Exponent() int64   { return x.exp }
func (x Number) IsZero() bool      { return x.sign == 0 }

func (x Number) Neg() Number {
	x.sign = -x.sign
	return x
}

func (x Number) Abs() Number {
	if x.sign < 0 {
		x.sign = 1
	}
	return x
}

// Float64 converts to float64, returning ±Inf when out of range.
func (x Number) Float64() float64 {
	switch {
	case x.sign == 0:
		return 0
	case x.layer > 0 || x.exp > 308:
		return math.Inf(int(x.sign))
	case x.exp < -340:
		return 0
	case x.exp < -300:
		return float64(x.sign) * x.mant * 1e-300 * math.Pow10(int(x.exp+300))
	}
	return float64(x.sign) * x.mant * math.Pow10(int(x.exp))
}

// Int64 truncates towards zero. ok is false when the value does not fit.
func (x Number) Int64() (v int64, ok bool) {
	f := x.Float64()
	if math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func Max(a, b Number) Number {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func Min(a, b Number) Number {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func (x Number) withSign(sign int8) Number {
	if x.sign != 0 {
		x.sign = sign
	}
	return x
}

// fromParts normalizes m*10^e. m may be any finite value.
func fromParts(m float64, e int64) Number {
	if m == 0 || math.IsNaN(m) {
		return Zero
	}
	sign := int8(1)
	if m < 0 {
		sign, m = -1, -m
	}
	if math.IsInf(m, 1) {
		return saturated(sign)
	}
	if m < 1 || m >= 10 {
		if m < 1e-300 {
			m *= 1e300
			e -= 300
		}
		k := int64(math.Floor(math.Log10(m)))
		if k > 0 {
			m /= math.Pow10(int(k))
		} else if k < 0 {
			m *= math.Pow10(int(-k))
		}
		e += k
		for m >= 10 {
			m /= 10
			e++
		}
		for m < 1 {
			m *= 10
			e--
		}
	}
	switch {
	case e > MaxExponent:
		return lift(sign, 1, fromParts(float64(e)+math.Log10(m), 0))
	case e < -MaxExponent:
		return Zero
	}
	return Number{sign: sign, mant: m, exp: e}
}

// lift returns sign * 10^10^...^inner with layer tens, demoting while the
// inner value is small enough to fit one layer down. inner must be positive.
func lift(sign int8, layer int, inner Number) Number {
	layer += int(inner.layer)
	inner.layer = 0
	inner.sign = 1
	for layer > 0 && !aboveLimit(inner) {
		inner = pow10Float(inner.Float64())
		layer--
	}
	if layer > MaxLayer {
		return saturated(sign)
	}
	inner.sign = sign
	inner.layer = uint8(layer)
	return inner
}

// aboveLimit reports whether a positive layer 0 number exceeds MaxExponent.
func aboveLimit(x Number) bool {
	return x.exp > 15 || (x.exp == 15 && x.mant > 9)
}

func pow10Float(f float64) Number {
	switch {
	case f > maxExpF:
		return lift(1, 1, fromParts(f, 0))
	case f < -maxExpF:
		return Zero
	}
	e := math.Floor(f)
	return fromParts(math.Pow(10, f-e), int64(e))
}

func saturated(sign int8) Number {
	return Number{sign: sign, layer: MaxLayer, mant: math.Nextafter(10, 0), exp: MaxExponent}
}

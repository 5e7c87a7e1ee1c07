package softcap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"refinery/internal/bignum"
)

var (
	ErrUnknownPolicy = errors.New("unknown softcap policy")
	ErrInvalidPolicy = errors.New("invalid softcap policy")
)

// Policy is the diminishing function F applied to the amount x by which a
// balance exceeds threshold t. Every policy has F(0) = 0, is non-decreasing,
// and grows strictly slower than x once x > 0.
type Policy interface {
	Diminish(x, t bignum.Number) bignum.Number
	Name() string
	Validate() error
}

// Logarithmic is F(x) = t * ln(1 + x/t).
type Logarithmic struct{}

func (Logarithmic) Name() string    { return "log" }
func (Logarithmic) Validate() error { return nil }

func (Logarithmic) Diminish(x, t bignum.Number) bignum.Number {
	if x.Sign() <= 0 || t.Sign() <= 0 {
		return bignum.Zero
	}
	l, err := x.Div(t).Add(bignum.One).Ln()
	if err != nil {
		return bignum.Zero
	}
	return t.Mul(l)
}

// Root is F(x) = t * ((1 + x/t)^p - 1) / p with 0 < p < 1.
type Root struct {
	Exponent float64
}

func (Root) Name() string { return "root" }

func (r Root) Validate() error {
	if !(r.Exponent > 0 && r.Exponent < 1) {
		return fmt.Errorf("%w: root exponent %v must be in (0, 1)", ErrInvalidPolicy, r.Exponent)
	}
	return nil
}

func (r Root) Diminish(x, t bignum.Number) bignum.Number {
	if x.Sign() <= 0 || t.Sign() <= 0 {
		return bignum.Zero
	}
	p, err := bignum.FromFloat(r.Exponent)
	if err != nil {
		return bignum.Zero
	}
	v := x.Div(t).Add(bignum.One).Pow(p).Sub(bignum.One)
	return bignum.Max(t.Mul(v).Div(p), bignum.Zero)
}

// Linear is F(x) = x / d with d > 1.
type Linear struct {
	Divisor float64
}

func (Linear) Name() string { return "linear" }

func (l Linear) Validate() error {
	if !(l.Divisor > 1) || math.IsInf(l.Divisor, 0) {
		return fmt.Errorf("%w: linear divisor %v must be greater than 1", ErrInvalidPolicy, l.Divisor)
	}
	return nil
}

func (l Linear) Diminish(x, _ bignum.Number) bignum.Number {
	if x.Sign() <= 0 {
		return bignum.Zero
	}
	d, err := bignum.FromFloat(l.Divisor)
	if err != nil {
		return bignum.Zero
	}
	return x.Div(d)
}

// ParsePolicy builds a policy from its catalog name. param is the root
// exponent or the linear divisor and is ignored for log.
func ParsePolicy(name string, param float64) (Policy, error) {
	var p Policy
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "log", "logarithmic":
		p = Logarithmic{}
	case "root":
		p = Root{Exponent: param}
	case "linear":
		p = Linear{Divisor: param}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

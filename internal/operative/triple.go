package operative

import (
	"errors"
	"fmt"
	"strings"

	"refinery/internal/bignum"
	"refinery/internal/currency"
)

var ErrUnknownKind = errors.New("unknown boost kind")

// Kind says which bundle of a Triple a contribution folds into.
type Kind uint8

const (
	Additive Kind = iota
	Multiplicative
	Exponential
)

func (k Kind) String() string {
	switch k {
	case Additive:
		return "add"
	case Multiplicative:
		return "mul"
	case Exponential:
		return "pow"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "add", "additive":
		return Additive, nil
	case "mul", "multiplicative":
		return Multiplicative, nil
	case "pow", "exponential":
		return Exponential, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Triple accumulates boosts. Add entries are summed; Mul and Pow entries are
// multiplied, and a currency missing from Mul or Pow counts as one.
type Triple struct {
	Add currency.Bundle `json:"add"`
	Mul currency.Bundle `json:"mul"`
	Pow currency.Bundle `json:"pow"`
}

// Template returns the neutral triple: zero additive, unit mul and pow.
func Template() Triple {
	return Triple{Mul: currency.Ones(), Pow: currency.Ones()}
}

// IsIdentity reports whether coalescing with t leaves every base unchanged.
func (t Triple) IsIdentity() bool {
	for _, c := range currency.All() {
		if !t.Add.Get(c).IsZero() {
			return false
		}
		if !factor(t.Mul, c).Equals(bignum.One) || !factor(t.Pow, c).Equals(bignum.One) {
			return false
		}
	}
	return true
}

// Fold merges the contribution bundle b into t according to kind.
func (t Triple) Fold(kind Kind, b currency.Bundle) Triple {
	switch kind {
	case Additive:
		t.Add = t.Add.Add(b)
	case Multiplicative:
		t.Mul = multiplyInto(t.Mul, b)
	case Exponential:
		// Exponents from independent sources multiply. Summing them would
		// let a neutral 1 shift every other contribution.
		t.Pow = multiplyInto(t.Pow, b)
	}
	return t
}

// Merge folds every bundle of o into t.
func (t Triple) Merge(o Triple) Triple {
	t.Add = t.Add.Add(o.Add)
	t.Mul = multiplyInto(t.Mul, o.Mul)
	t.Pow = multiplyInto(t.Pow, o.Pow)
	return t
}

// Coalesce resolves base against t. See the package function.
func (t Triple) Coalesce(base currency.Bundle) currency.Bundle {
	return Coalesce(base, t.Add, t.Mul, t.Pow)
}

// Coalesce computes ((base + add) * mul) ^ pow for every currency present in
// base or add. Changing this order changes balances.
func Coalesce(base, add, mul, pow currency.Bundle) currency.Bundle {
	var out currency.Bundle
	for _, c := range currency.All() {
		if !base.Has(c) && !add.Has(c) {
			continue
		}
		v := base.Get(c).Add(add.Get(c))
		v = v.Mul(factor(mul, c))
		v = v.Pow(factor(pow, c))
		out.Set(c, v)
	}
	return out
}

func factor(b currency.Bundle, c currency.Currency) bignum.Number {
	if !b.Has(c) {
		return bignum.One
	}
	return b.Get(c)
}

func multiplyInto(dst, src currency.Bundle) currency.Bundle {
	for c, v := range src.All() {
		dst.Set(c, factor(dst, c).Mul(v))
	}
	return dst
}

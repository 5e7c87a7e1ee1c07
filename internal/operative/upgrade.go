package operative

import (
	"refinery/internal/bignum"
	"refinery/internal/currency"
)

// Curve maps an upgrade amount (usually its level) to the boost it grants.
// *formula.Formula satisfies it.
type Curve interface {
	Apply(amount bignum.Number) bignum.Number
}

// CurveFunc adapts a plain function to Curve.
type CurveFunc func(bignum.Number) bignum.Number

func (f CurveFunc) Apply(amount bignum.Number) bignum.Number { return f(amount) }

// PerLevel grants Step for every unit of amount.
type PerLevel struct {
	Step bignum.Number
}

func (p PerLevel) Apply(amount bignum.Number) bignum.Number {
	return p.Step.Mul(amount)
}

// Upgrade describes a purchasable boost and how its level turns into a
// contribution on each target currency.
type Upgrade struct {
	Name    string
	Kind    Kind
	Targets []currency.Currency
	Curve   Curve
}

// Contribution returns the bundle the upgrade grants at amount. An amount
// at or below zero grants nothing.
func (u Upgrade) Contribution(amount bignum.Number) (currency.Bundle, bool) {
	var b currency.Bundle
	if amount.Sign() <= 0 || u.Curve == nil || len(u.Targets) == 0 {
		return b, false
	}
	v := u.Curve.Apply(amount)
	for _, c := range u.Targets {
		b.Set(c, v)
	}
	return b, true
}

// ApplyUpgrade folds the contribution of upgrade at amount into t.
func ApplyUpgrade(t Triple, upgrade Upgrade, amount bignum.Number) Triple {
	b, ok := upgrade.Contribution(amount)
	if !ok {
		return t
	}
	return t.Fold(upgrade.Kind, b)
}

// GlobalModifier is an engine-wide boost such as an event multiplier.
type GlobalModifier struct {
	Name  string
	Kind  Kind
	Value currency.Bundle
}

// ApplyGlobal folds each modifier into t with the same rules as upgrades.
func ApplyGlobal(t Triple, modifiers ...GlobalModifier) Triple {
	for _, m := range modifiers {
		t = t.Fold(m.Kind, m.Value)
	}
	return t
}

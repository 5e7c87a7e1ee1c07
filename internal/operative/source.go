package operative

import (
	"refinery/internal/bignum"
	"refinery/internal/currency"
)

// Scope selects the resolution stage a source belongs to.
type Scope uint8

const (
	// ScopeGlobal sources apply to every production event that opts into
	// global boosts.
	ScopeGlobal Scope = iota
	// ScopeUpgrade sources apply to events that opt into upgrades.
	ScopeUpgrade
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "upgrade"
}

// Source is a registered contributor to a boost triple. The set of
// implementations is closed: NamedUpgrade, GlobalModifier and ItemLocalBoost.
type Source interface {
	Contribute(t Triple) Triple
	Scope() Scope
	Label() string

	source()
}

// NamedUpgrade is an upgrade at a given level.
type NamedUpgrade struct {
	Upgrade Upgrade
	Level   bignum.Number
}

func (u NamedUpgrade) Contribute(t Triple) Triple { return ApplyUpgrade(t, u.Upgrade, u.Level) }
func (u NamedUpgrade) Scope() Scope               { return ScopeUpgrade }
func (u NamedUpgrade) Label() string              { return u.Upgrade.Name }
func (NamedUpgrade) source()                      {}

func (m GlobalModifier) Contribute(t Triple) Triple { return ApplyGlobal(t, m) }
func (m GlobalModifier) Scope() Scope               { return ScopeGlobal }
func (m GlobalModifier) Label() string              { return m.Name }
func (GlobalModifier) source()                      {}

// ItemLocalBoost only applies to production on the item it is attached to.
type ItemLocalBoost struct {
	ItemID string
	Name   string
	Kind   Kind
	Value  currency.Bundle
}

func (b ItemLocalBoost) Contribute(t Triple) Triple { return t.Fold(b.Kind, b.Value) }
func (b ItemLocalBoost) Scope() Scope               { return ScopeUpgrade }
func (b ItemLocalBoost) Label() string              { return b.ItemID + "/" + b.Name }
func (ItemLocalBoost) source()                      {}

// Fold applies every source whose scope is accepted by include, starting
// from t. A nil include accepts all scopes. The result does not depend on
// the order of sources.
func Fold(t Triple, sources []Source, include func(Scope) bool) Triple {
	for _, s := range sources {
		if include != nil && !include(s.Scope()) {
			continue
		}
		t = s.Contribute(t)
	}
	return t
}

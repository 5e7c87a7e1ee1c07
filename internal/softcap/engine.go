package softcap

import (
	"errors"
	"fmt"

	"refinery/internal/bignum"
	"refinery/internal/currency"
)

var ErrInvalidRule = errors.New("invalid softcap rule")

// Rule caps one currency. Balances up to Threshold are untouched; growth
// beyond it is passed through Policy.
type Rule struct {
	Threshold bignum.Number
	Policy    Policy
}

func (r Rule) Validate() error {
	if r.Threshold.Sign() <= 0 {
		return fmt.Errorf("%w: threshold %s must be positive", ErrInvalidRule, r.Threshold)
	}
	if r.Policy == nil {
		return fmt.Errorf("%w: missing policy", ErrInvalidRule)
	}
	return r.Policy.Validate()
}

// Engine applies per-currency softcaps. It is immutable once built and safe
// for concurrent use.
type Engine struct {
	rules map[currency.Currency]Rule
}

func NewEngine(rules map[currency.Currency]Rule) (*Engine, error) {
	e := &Engine{rules: make(map[currency.Currency]Rule, len(rules))}
	for c, r := range rules {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %d", currency.ErrUnknownCurrency, uint8(c))
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		e.rules[c] = r
	}
	return e, nil
}

// Rule returns the rule for c, if any.
func (e *Engine) Rule(c currency.Currency) (Rule, bool) {
	if e == nil {
		return Rule{}, false
	}
	r, ok := e.rules[c]
	return r, ok
}

// Rules returns a copy of the configured rules.
func (e *Engine) Rules() map[currency.Currency]Rule {
	out := make(map[currency.Currency]Rule, len(e.rules))
	for c, r := range e.rules {
		out[c] = r
	}
	return out
}

// Report is the outcome of one Apply with the currencies whose delta was
// reduced.
type Report struct {
	Delta   currency.Bundle
	Engaged []currency.Currency
}

// Apply returns delta with softcaps applied against balance. Neither input
// is modified, so the same inputs always yield the same output.
func (e *Engine) Apply(delta, balance currency.Bundle) currency.Bundle {
	return e.ApplyReport(delta, balance).Delta
}

// ApplyReport is Apply plus the list of currencies that were capped.
//
// For a positive delta d on balance b with threshold T, the part of d that
// keeps b+d at or under T is kept as is. The part above T is replaced by
// F(b+d-T) - F(max(b,T)-T). Non-positive deltas and currencies without a
// rule pass through.
func (e *Engine) ApplyReport(delta, balance currency.Bundle) Report {
	rep := Report{Delta: delta}
	if e == nil || len(e.rules) == 0 {
		return rep
	}
	for c, d := range delta.All() {
		rule, ok := e.rules[c]
		if !ok || d.Sign() <= 0 {
			continue
		}
		capped, engaged := rule.apply(d, balance.Get(c))
		if engaged {
			rep.Delta.Set(c, capped)
			rep.Engaged = append(rep.Engaged, c)
		}
	}
	return rep
}

func (r Rule) apply(d, bal bignum.Number) (bignum.Number, bool) {
	t := r.Threshold
	total := bal.Add(d)
	if total.Lte(t) {
		return d, false
	}
	start := bignum.Max(bal, t)
	below := bignum.Max(t.Sub(bal), bignum.Zero)
	above := r.Policy.Diminish(total.Sub(t), t).Sub(r.Policy.Diminish(start.Sub(t), t))
	out := below.Add(bignum.Max(above, bignum.Zero))
	return bignum.Min(out, d), true
}

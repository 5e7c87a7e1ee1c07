package operative

import (
	"errors"
	"sync"
	"testing"

	"refinery/internal/bignum"
	"refinery/internal/currency"
	"refinery/internal/formula"
)

func num(v int64) bignum.Number { return bignum.FromInt(v) }

func TestCoalesceOrder(t *testing.T) {
	c := currency.Funds
	base := currency.Single(c, num(2))
	add := currency.Single(c, num(3))
	mul := currency.Single(c, num(4))
	pow := currency.Single(c, num(2))

	got := Coalesce(base, add, mul, pow)
	if !got.Get(c).Equals(num(400)) {
		t.Fatalf("((2+3)*4)^2 = %s, want 400", got.Get(c))
	}
	// Multiplying before adding gives a different answer; the order matters.
	reordered := base.Mul(mul).Add(add).Pow(pow)
	if reordered.Get(c).Equals(got.Get(c)) {
		t.Fatalf("reordered coalesce should differ, both %s", got.Get(c))
	}
}

func TestCoalesceKeys(t *testing.T) {
	tr := Template()
	tr = tr.Fold(Additive, currency.Single(currency.Power, num(5)))
	tr = tr.Fold(Multiplicative, currency.Single(currency.Gems, num(10)))

	got := tr.Coalesce(currency.Single(currency.Funds, num(7)))
	if got.Len() != 2 {
		t.Fatalf("coalesce should cover base and add keys only, got %s", got)
	}
	if !got.Get(currency.Funds).Equals(num(7)) || !got.Get(currency.Power).Equals(num(5)) {
		t.Fatalf("coalesce = %s", got)
	}
	// A bare triple with missing mul/pow entries treats them as one.
	bare := Triple{Add: currency.Single(currency.Ore, num(2))}
	if got := bare.Coalesce(currency.Single(currency.Ore, num(1))); !got.Get(currency.Ore).Equals(num(3)) {
		t.Fatalf("bare coalesce = %s", got)
	}
}

func TestTemplateIsIdentity(t *testing.T) {
	tr := Template()
	if !tr.IsIdentity() {
		t.Fatalf("template should be the identity")
	}
	if !tr.Mul.HasAll() || !tr.Pow.HasAll() || tr.Add.Len() != 0 {
		t.Fatalf("template shape: %+v", tr)
	}
	if tr.Fold(Multiplicative, currency.Single(currency.Time, num(2))).IsIdentity() {
		t.Fatalf("boosted triple reported as identity")
	}
	if !tr.Fold(Multiplicative, currency.Single(currency.Time, bignum.One)).IsIdentity() {
		t.Fatalf("unit multiplier should stay identity")
	}
}

func TestApplyUpgradeKinds(t *testing.T) {
	targets := []currency.Currency{currency.Funds}
	add := Upgrade{Name: "drills", Kind: Additive, Targets: targets, Curve: PerLevel{Step: num(2)}}
	mul := Upgrade{Name: "belts", Kind: Multiplicative, Targets: targets, Curve: formula.New().Add(num(1))}
	pow := Upgrade{Name: "core", Kind: Exponential, Targets: targets, Curve: CurveFunc(func(bignum.Number) bignum.Number { return num(2) })}

	tr := Template()
	tr = ApplyUpgrade(tr, add, num(3))
	tr = ApplyUpgrade(tr, add, num(1))
	if !tr.Add.Get(currency.Funds).Equals(num(8)) {
		t.Fatalf("add should sum: %s", tr.Add.Get(currency.Funds))
	}
	tr = ApplyUpgrade(tr, mul, num(2))
	tr = ApplyUpgrade(tr, mul, num(4))
	if !tr.Mul.Get(currency.Funds).Equals(num(15)) {
		t.Fatalf("mul should multiply: %s", tr.Mul.Get(currency.Funds))
	}
	tr = ApplyUpgrade(tr, pow, num(1))
	tr = ApplyUpgrade(tr, pow, num(1))
	tr = ApplyUpgrade(tr, pow, num(1))
	if !tr.Pow.Get(currency.Funds).Equals(num(8)) {
		t.Fatalf("pow should multiply, not sum: %s", tr.Pow.Get(currency.Funds))
	}
	if !tr.Mul.Get(currency.Power).Equals(bignum.One) {
		t.Fatalf("untargeted currency changed: %s", tr.Mul.Get(currency.Power))
	}
}

func TestApplyUpgradeNonPositiveAmount(t *testing.T) {
	u := Upgrade{Name: "belts", Kind: Multiplicative, Targets: []currency.Currency{currency.Funds}, Curve: PerLevel{Step: num(3)}}
	for _, amount := range []bignum.Number{bignum.Zero, num(-2)} {
		if got := ApplyUpgrade(Template(), u, amount); !got.IsIdentity() {
			t.Fatalf("amount %s should contribute nothing", amount)
		}
	}
	if got := ApplyUpgrade(Template(), Upgrade{Name: "none", Kind: Additive}, num(5)); !got.IsIdentity() {
		t.Fatalf("upgrade without curve or targets should contribute nothing")
	}
}

func TestApplyGlobal(t *testing.T) {
	event := GlobalModifier{Name: "double-weekend", Kind: Multiplicative, Value: currency.Single(currency.Funds, num(2))}
	bomb := GlobalModifier{Name: "fund-bomb", Kind: Multiplicative, Value: currency.Single(currency.Funds, num(3))}
	tr := ApplyGlobal(Template(), event, bomb)
	if !tr.Mul.Get(currency.Funds).Equals(num(6)) {
		t.Fatalf("global mul = %s", tr.Mul.Get(currency.Funds))
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := make([]int, 0, n)
			q = append(q, p[:i]...)
			q = append(q, n-1)
			q = append(q, p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestFoldCommutative(t *testing.T) {
	both := []currency.Currency{currency.Funds, currency.Power}
	sources := []Source{
		NamedUpgrade{Upgrade: Upgrade{Name: "a", Kind: Additive, Targets: both, Curve: PerLevel{Step: bignum.MustFromFloat(1.5)}}, Level: num(3)},
		NamedUpgrade{Upgrade: Upgrade{Name: "m", Kind: Multiplicative, Targets: both, Curve: formula.New().Mul(bignum.MustFromFloat(1.1)).Add(num(1))}, Level: num(7)},
		NamedUpgrade{Upgrade: Upgrade{Name: "p", Kind: Exponential, Targets: both, Curve: formula.New().Div(num(100)).Add(num(1))}, Level: num(4)},
		GlobalModifier{Name: "event", Kind: Multiplicative, Value: currency.Single(currency.Funds, bignum.MustFromSci(2.5, 30))},
		ItemLocalBoost{ItemID: "furnace-1", Name: "slag", Kind: Additive, Value: currency.Single(currency.Power, bignum.MustFromFloat(0.75))},
	}
	base := currency.FromMap(map[currency.Currency]bignum.Number{currency.Funds: num(5), currency.Power: num(2)})

	var want currency.Bundle
	for i, perm := range permutations(len(sources)) {
		ordered := make([]Source, len(perm))
		for j, k := range perm {
			ordered[j] = sources[k]
		}
		got := Fold(Template(), ordered, nil).Coalesce(base)
		if i == 0 {
			want = got
			continue
		}
		for c, v := range want.All() {
			if !got.Get(c).ApproxEquals(v, 1e-12) {
				t.Fatalf("permutation %v: %s = %s, want %s", perm, c, got.Get(c), v)
			}
		}
	}
}

func TestFoldScopeFilter(t *testing.T) {
	sources := []Source{
		GlobalModifier{Name: "event", Kind: Multiplicative, Value: currency.Single(currency.Funds, num(2))},
		NamedUpgrade{Upgrade: Upgrade{Name: "belts", Kind: Multiplicative, Targets: []currency.Currency{currency.Funds}, Curve: PerLevel{Step: num(3)}}, Level: num(1)},
	}
	onlyGlobal := Fold(Template(), sources, func(s Scope) bool { return s == ScopeGlobal })
	if !onlyGlobal.Mul.Get(currency.Funds).Equals(num(2)) {
		t.Fatalf("global only = %s", onlyGlobal.Mul.Get(currency.Funds))
	}
	all := Fold(Template(), sources, nil)
	if !all.Mul.Get(currency.Funds).Equals(num(6)) {
		t.Fatalf("all = %s", all.Mul.Get(currency.Funds))
	}
}

func TestParseKind(t *testing.T) {
	for name, want := range map[string]Kind{"add": Additive, "MUL": Multiplicative, "exponential": Exponential} {
		got, err := ParseKind(name)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseKind("tetrate"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestRegistrySnapshotLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	if r.Snapshot() == nil || r.Snapshot().Len() != 0 {
		t.Fatalf("fresh registry should expose an empty snapshot")
	}

	event := r.Register(GlobalModifier{Name: "event", Kind: Multiplicative, Value: currency.Single(currency.Funds, num(2))})
	r.Register(ItemLocalBoost{ItemID: "f1", Name: "slag", Kind: Additive, Value: currency.Single(currency.Funds, num(1))})
	r.Register(ItemLocalBoost{ItemID: "f2", Name: "ash", Kind: Additive, Value: currency.Single(currency.Funds, num(9))})

	if r.Snapshot().Len() != 0 {
		t.Fatalf("staged sources must not be visible before Refresh")
	}
	first := r.Refresh()
	if first.Len() != 3 || r.Snapshot() != first {
		t.Fatalf("refresh should publish all sources, got %d", first.Len())
	}
	if got := len(first.Sources("f1")); got != 2 {
		t.Fatalf("f1 should see the event and its own boost, got %d", got)
	}
	if got := len(first.Sources("unknown")); got != 1 {
		t.Fatalf("an item without local boosts sees only globals, got %d", got)
	}
	if !first.Globals().Mul.Get(currency.Funds).Equals(num(2)) {
		t.Fatalf("globals = %s", first.Globals().Mul)
	}

	if !r.Deregister(event) || r.Deregister(event) {
		t.Fatalf("deregister should succeed exactly once")
	}
	second := r.Refresh()
	if second.Version <= first.Version || second.Len() != 2 {
		t.Fatalf("second snapshot: version %d len %d", second.Version, second.Len())
	}
	if first.Len() != 3 {
		t.Fatalf("published snapshot changed after refresh")
	}
	if !second.Globals().IsIdentity() {
		t.Fatalf("globals after removal should be identity")
	}
}

func TestRegistryConcurrentReaders(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(GlobalModifier{Name: "event", Kind: Multiplicative, Value: currency.Single(currency.Funds, num(2))})
	r.Refresh()

	base := currency.Single(currency.Funds, num(5))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				snap := r.Snapshot()
				got := Fold(Template(), snap.Sources("f1"), nil).Coalesce(base)
				if got.Get(currency.Funds).Lt(num(10)) {
					t.Errorf("reader saw %s", got)
					return
				}
			}
		}()
	}
	for i := range 50 {
		h := r.Register(GlobalModifier{Name: "tmp", Kind: Multiplicative, Value: currency.Single(currency.Funds, num(int64(i%3 + 1)))})
		r.Refresh()
		r.Deregister(h)
		r.Refresh()
	}
	wg.Wait()
}

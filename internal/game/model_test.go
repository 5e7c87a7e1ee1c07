package game

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"refinery/internal/bignum"
	"refinery/internal/catalog"
	"refinery/internal/currency"
	"refinery/internal/operative"
	"refinery/internal/revenue"
)

func TestValidatePlayerID(t *testing.T) {
	valid := []string{"abc", "player_1", "Ore-Miner-42"}
	for _, id := range valid {
		if err := ValidatePlayerID(id); err != nil {
			t.Fatalf("expected player id %q to be valid: %v", id, err)
		}
	}

	invalid := []string{"", "ab", "has space", "semi;colon", string(make([]byte, 65))}
	for _, id := range invalid {
		if err := ValidatePlayerID(id); !errors.Is(err, ErrInvalidPlayer) {
			t.Fatalf("expected player id %q to fail, got %v", id, err)
		}
	}
}

func TestValidateDroplets(t *testing.T) {
	ok := DropletInput{PlayerID: "miner", FurnaceID: "basic-furnace", Count: 10}
	if err := validateDroplets(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []DropletInput{
		{PlayerID: "miner", FurnaceID: "basic-furnace", Count: 0},
		{PlayerID: "miner", FurnaceID: "basic-furnace", Count: MaxDropletsPerBatch + 1},
		{PlayerID: "miner", FurnaceID: " ", Count: 1},
	}
	for _, in := range bad {
		if err := validateDroplets(in); !errors.Is(err, ErrInvalidDroplets) {
			t.Fatalf("input %+v: err=%v, want ErrInvalidDroplets", in, err)
		}
	}
}

func TestUpgradeSourcesSkipsUnowned(t *testing.T) {
	cat := defaultCatalog(t)
	levels := map[string]int64{"conveyor-speed": 2, "ore-purity": 0, "retired": 9}
	got := upgradeSources(cat.Upgrades(), levels)
	if len(got) != 1 {
		t.Fatalf("got %d sources, want 1", len(got))
	}
	if got[0].Label() != "conveyor-speed" {
		t.Fatalf("label = %q", got[0].Label())
	}
}

func TestResolveBasicFurnace(t *testing.T) {
	cat := defaultCatalog(t)
	snap := furnaceSnapshot(cat)
	f, err := cat.Furnace("basic-furnace")
	if err != nil {
		t.Fatalf("Furnace: %v", err)
	}
	r := revenue.NewResolver(cat.Softcaps, nil)

	tests := []struct {
		name   string
		levels map[string]int64
		want   float64
	}{
		{name: "heat only", levels: nil, want: 60},
		{name: "conveyor level 2", levels: map[string]int64{"conveyor-speed": 2}, want: 90},
	}
	for _, tc := range tests {
		req := buildRequest(f, 10, snap, cat.Upgrades(), tc.levels, StarterBalance())
		res := r.Resolve(req)
		got := res.Delta.Get(currency.Funds)
		if !got.ApproxEquals(bignum.MustFromFloat(tc.want), 1e-9) {
			t.Fatalf("%s: Funds delta = %s, want %v", tc.name, got, tc.want)
		}
		if res.PassThrough {
			t.Fatalf("%s: unexpected pass-through", tc.name)
		}
	}
}

func TestResolveCondenserPassesThrough(t *testing.T) {
	cat := defaultCatalog(t)
	f, err := cat.Furnace("condenser")
	if err != nil {
		t.Fatalf("Furnace: %v", err)
	}
	req := buildRequest(f, 50, furnaceSnapshot(cat), cat.Upgrades(), map[string]int64{"ore-purity": 3}, StarterBalance())
	res := revenue.NewResolver(cat.Softcaps, nil).Resolve(req)
	if !res.PassThrough {
		t.Fatalf("expected pass-through, trace=%v", res.Trace)
	}
	if !res.Delta.IsZero() {
		t.Fatalf("pass-through delta = %s, want zero", res.Delta)
	}
}

func TestSyncEvents(t *testing.T) {
	r := operative.NewRegistry(nil)
	handles := map[uuid.UUID]uuid.UUID{}
	double := ActiveEvent{ID: uuid.New(), Name: "double-weekend", Kind: operative.Multiplicative, Value: currency.Single(currency.Funds, bignum.Two)}
	surge := ActiveEvent{ID: uuid.New(), Name: "power-surge", Kind: operative.Additive, Value: currency.Single(currency.Power, bignum.FromInt(100))}

	added, removed := syncEvents(r, handles, []ActiveEvent{double, surge})
	if added != 2 || removed != 0 {
		t.Fatalf("first sync added=%d removed=%d", added, removed)
	}
	added, removed = syncEvents(r, handles, []ActiveEvent{double, surge})
	if added != 0 || removed != 0 {
		t.Fatalf("repeat sync added=%d removed=%d", added, removed)
	}
	added, removed = syncEvents(r, handles, []ActiveEvent{double})
	if added != 0 || removed != 1 {
		t.Fatalf("shrink sync added=%d removed=%d", added, removed)
	}
	if _, ok := handles[surge.ID]; ok {
		t.Fatalf("expired event still tracked")
	}

	snap := r.Refresh()
	if snap.Len() != 1 {
		t.Fatalf("snapshot has %d sources, want 1", snap.Len())
	}
	g := snap.Globals()
	if !g.Mul.Get(currency.Funds).Equals(bignum.Two) {
		t.Fatalf("global Funds multiplier = %s", g.Mul.Get(currency.Funds))
	}
}

func TestBundleStorageRoundTrip(t *testing.T) {
	var b currency.Bundle
	b.Set(currency.Funds, bignum.MustParse("1.5e300"))
	b.Set(currency.DarkMatter, bignum.MustParse("e2e20"))
	raw, err := encodeBundle(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeBundle(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equals(b) {
		t.Fatalf("round trip: got %s want %s", got, b)
	}
	if _, err := decodeBundle([]byte{0xff}); err == nil {
		t.Fatalf("expected error for corrupt bundle")
	}
}

func TestFormulaView(t *testing.T) {
	cat := defaultCatalog(t)
	u, err := cat.Upgrade("conveyor-speed")
	if err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	v := formulaView(u)
	if v.Curve != "level * 0.25 + 1" {
		t.Fatalf("curve = %q", v.Curve)
	}
	if v.Cost != "(level + 1)^2 * 50" {
		t.Fatalf("cost = %q", v.Cost)
	}
	if v.Kind != "mul" || v.Currency != "Funds" || v.MaxLevel != 200 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	return cat
}

func furnaceSnapshot(cat *catalog.Catalog) *operative.Snapshot {
	r := operative.NewRegistry(nil)
	registerFurnaceBoosts(r, cat)
	return r.Refresh()
}

func TestSimulate(t *testing.T) {
	cat := defaultCatalog(t)

	res, err := Simulate(cat, SimulateInput{FurnaceID: "basic-furnace", Count: 10, Events: []string{"double-weekend"}})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// 10 droplets * 5 Funds * 1.2 heat * 2 event
	if got := res.Delta.Get(currency.Funds); !got.ApproxEquals(bignum.FromInt(120), 1e-9) {
		t.Fatalf("Funds delta = %s, want 120", got)
	}

	if _, err := Simulate(cat, SimulateInput{FurnaceID: "basic-furnace", Count: 1, Events: []string{"eclipse"}}); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("err=%v, want ErrUnknownEvent", err)
	}
	if _, err := Simulate(cat, SimulateInput{FurnaceID: "nope", Count: 1}); !errors.Is(err, catalog.ErrUnknownFurnace) {
		t.Fatalf("err=%v, want ErrUnknownFurnace", err)
	}
	if _, err := Simulate(cat, SimulateInput{FurnaceID: "basic-furnace"}); !errors.Is(err, ErrInvalidDroplets) {
		t.Fatalf("err=%v, want ErrInvalidDroplets", err)
	}
}

func TestSimulateSoftcapsAboveThreshold(t *testing.T) {
	cat := defaultCatalog(t)
	var balance currency.Bundle
	balance.Set(currency.Funds, bignum.MustParse("2e15"))

	res, err := Simulate(cat, SimulateInput{FurnaceID: "basic-furnace", Count: 1000, Balance: balance})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(res.Capped) != 1 || res.Capped[0] != currency.Funds {
		t.Fatalf("capped = %v", res.Capped)
	}
	got := res.Delta.Get(currency.Funds)
	// above the threshold at twice T the log curve has slope 1/2
	if !got.Gt(bignum.FromInt(2000)) || !got.Lt(bignum.FromInt(4000)) {
		t.Fatalf("capped delta = %s, want about 3000", got)
	}
}

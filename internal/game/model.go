package game

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"refinery/internal/bignum"
	"refinery/internal/catalog"
	"refinery/internal/currency"
	"refinery/internal/operative"
	"refinery/internal/revenue"
)

const (
	// MaxDropletsPerBatch bounds one ProcessDroplets call.
	MaxDropletsPerBatch = int64(100_000)
)

var (
	ErrInvalidPlayer        = errors.New("player id must be 3-64 characters of letters, digits, '-' or '_'")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrInvalidDroplets      = errors.New("invalid droplet batch")
	ErrDuplicateIdempotency = errors.New("duplicate idempotency key")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUpgradeMaxed         = errors.New("upgrade already at max level")
	ErrUnknownEvent         = errors.New("unknown event")
	ErrTxConflict           = errors.New("transaction conflict, retry later")
	ErrUnauthorized         = errors.New("unauthorized")
)

var playerIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

// StarterBalance is what a new player's wallet holds.
func StarterBalance() currency.Bundle {
	return currency.Single(currency.Funds, bignum.FromInt(25))
}

func ValidatePlayerID(id string) error {
	if !playerIDRE.MatchString(strings.TrimSpace(id)) {
		return ErrInvalidPlayer
	}
	return nil
}

func validateDroplets(in DropletInput) error {
	if err := ValidatePlayerID(in.PlayerID); err != nil {
		return err
	}
	if in.Count <= 0 || in.Count > MaxDropletsPerBatch {
		return fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidDroplets, MaxDropletsPerBatch)
	}
	if strings.TrimSpace(in.FurnaceID) == "" {
		return fmt.Errorf("%w: furnace is required", ErrInvalidDroplets)
	}
	return nil
}

// upgradeSources turns the player's purchased levels into boost sources.
// Upgrades at level zero and names missing from the catalog are skipped.
func upgradeSources(upgrades []catalog.Upgrade, levels map[string]int64) []operative.Source {
	var out []operative.Source
	for _, u := range upgrades {
		lvl := levels[u.Name]
		if lvl <= 0 {
			continue
		}
		out = append(out, operative.NamedUpgrade{Upgrade: u.Upgrade, Level: bignum.FromInt(lvl)})
	}
	return out
}

// buildRequest assembles the resolver input for count droplets entering f.
func buildRequest(f catalog.Furnace, count int64, snap *operative.Snapshot, upgrades []catalog.Upgrade, levels map[string]int64, balance currency.Bundle) revenue.Request {
	sources := snap.Sources(f.ID)
	sources = append(sources, upgradeSources(upgrades, levels)...)
	return revenue.Request{
		Base:                 f.DropletValue.MulConstant(bignum.FromInt(count)),
		Sources:              sources,
		Nerf:                 f.Nerf,
		Balance:              balance,
		IncludesGlobalBoosts: f.IncludeGlobal,
		IncludesUpgrades:     f.IncludeUpgrades,
	}
}

func encodeBundle(b currency.Bundle) ([]byte, error) {
	return b.MarshalBinary()
}

func decodeBundle(data []byte) (currency.Bundle, error) {
	var b currency.Bundle
	if err := b.UnmarshalBinary(data); err != nil {
		return b, fmt.Errorf("decode stored bundle: %w", err)
	}
	return b, nil
}

// SimulateInput describes an offline resolution against a catalog.
type SimulateInput struct {
	FurnaceID string
	Count     int64
	Levels    map[string]int64
	Balance   currency.Bundle
	// Events names catalog events to treat as active.
	Events []string
}

// Simulate resolves a droplet batch without storage, using only the catalog.
func Simulate(cat *catalog.Catalog, in SimulateInput) (revenue.Result, error) {
	if in.Count <= 0 || in.Count > MaxDropletsPerBatch {
		return revenue.Result{}, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidDroplets, MaxDropletsPerBatch)
	}
	f, err := cat.Furnace(in.FurnaceID)
	if err != nil {
		return revenue.Result{}, err
	}
	r := operative.NewRegistry(nil)
	registerFurnaceBoosts(r, cat)
	for _, name := range in.Events {
		ev, ok := findEvent(cat, name)
		if !ok {
			return revenue.Result{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
		}
		r.Register(ev.Modifier)
	}
	req := buildRequest(f, in.Count, r.Refresh(), cat.Upgrades(), in.Levels, in.Balance)
	return revenue.NewResolver(cat.Softcaps, nil).Resolve(req), nil
}

func findEvent(cat *catalog.Catalog, name string) (catalog.Event, bool) {
	for _, ev := range cat.Events() {
		if ev.Name == name {
			return ev, true
		}
	}
	return catalog.Event{}, false
}

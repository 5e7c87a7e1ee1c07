package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"refinery/internal/bignum"
	"refinery/internal/currency"
	"refinery/internal/formula"
	"refinery/internal/operative"
	"refinery/internal/softcap"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrUnknownUpgrade = errors.New("unknown upgrade")
	ErrUnknownFurnace = errors.New("unknown furnace")
)

// CronParser accepts six-field specs with seconds, plus descriptors such as
// @daily.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Catalog is the game-balance data the service resolves production against.
// It is read only after Parse.
type Catalog struct {
	Doc      Document
	Softcaps *softcap.Engine

	upgrades []Upgrade
	furnaces map[string]Furnace
	events   []Event
}

type Upgrade struct {
	operative.Upgrade
	Description  string
	Cost         *formula.Formula
	CostCurrency currency.Currency
	MaxLevel     int64
}

// CostAt is the price of buying the level after level.
func (u Upgrade) CostAt(level int64) currency.Bundle {
	return currency.Single(u.CostCurrency, u.Cost.Apply(bignum.FromInt(level)))
}

// Maxed reports whether level is at the cap. A zero MaxLevel means no cap.
func (u Upgrade) Maxed(level int64) bool {
	return u.MaxLevel > 0 && level >= u.MaxLevel
}

type Furnace struct {
	ID              string
	DropletValue    currency.Bundle
	Nerf            bignum.Number
	IncludeGlobal   bool
	IncludeUpgrades bool
	Boosts          []operative.ItemLocalBoost
}

type Event struct {
	Name     string
	Schedule cron.Schedule
	Spec     string
	Duration time.Duration
	Modifier operative.GlobalModifier
}

func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrInvalidCatalog, err)
	}
	return Build(doc)
}

// Build validates doc and converts it into domain types.
func Build(doc Document) (*Catalog, error) {
	c := &Catalog{Doc: doc, furnaces: map[string]Furnace{}}

	rules := map[currency.Currency]softcap.Rule{}
	for i, sc := range doc.Softcaps {
		cur, err := currency.ParseCurrency(sc.Currency)
		if err != nil {
			return nil, invalid("softcaps[%d]: %v", i, err)
		}
		if _, dup := rules[cur]; dup {
			return nil, invalid("softcaps[%d]: duplicate rule for %s", i, cur)
		}
		threshold, err := bignum.Parse(sc.Threshold)
		if err != nil {
			return nil, invalid("softcaps[%d]: threshold: %v", i, err)
		}
		policy, err := softcap.ParsePolicy(sc.Policy, sc.Param)
		if err != nil {
			return nil, invalid("softcaps[%d]: %v", i, err)
		}
		rules[cur] = softcap.Rule{Threshold: threshold, Policy: policy}
	}
	engine, err := softcap.NewEngine(rules)
	if err != nil {
		return nil, invalid("softcaps: %v", err)
	}
	c.Softcaps = engine

	seen := map[string]bool{}
	for i, ud := range doc.Upgrades {
		u, err := buildUpgrade(ud)
		if err != nil {
			return nil, invalid("upgrades[%d] %q: %v", i, ud.Name, err)
		}
		if seen[u.Name] {
			return nil, invalid("upgrades[%d]: duplicate name %q", i, u.Name)
		}
		seen[u.Name] = true
		c.upgrades = append(c.upgrades, u)
	}

	for i, fd := range doc.Furnaces {
		f, err := buildFurnace(fd)
		if err != nil {
			return nil, invalid("furnaces[%d] %q: %v", i, fd.ID, err)
		}
		if _, dup := c.furnaces[f.ID]; dup {
			return nil, invalid("furnaces[%d]: duplicate id %q", i, f.ID)
		}
		c.furnaces[f.ID] = f
	}

	names := map[string]bool{}
	for i, ed := range doc.Events {
		e, err := buildEvent(ed)
		if err != nil {
			return nil, invalid("events[%d] %q: %v", i, ed.Name, err)
		}
		if names[e.Name] {
			return nil, invalid("events[%d]: duplicate name %q", i, e.Name)
		}
		names[e.Name] = true
		c.events = append(c.events, e)
	}
	return c, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

func (c *Catalog) Upgrades() []Upgrade {
	return slices.Clone(c.upgrades)
}

func (c *Catalog) Upgrade(name string) (Upgrade, error) {
	for _, u := range c.upgrades {
		if u.Name == name {
			return u, nil
		}
	}
	return Upgrade{}, fmt.Errorf("%w: %q", ErrUnknownUpgrade, name)
}

func (c *Catalog) Furnace(id string) (Furnace, error) {
	f, ok := c.furnaces[id]
	if !ok {
		return Furnace{}, fmt.Errorf("%w: %q", ErrUnknownFurnace, id)
	}
	return f, nil
}

// FurnaceIDs returns the furnace ids in sorted order.
func (c *Catalog) FurnaceIDs() []string {
	ids := make([]string, 0, len(c.furnaces))
	for id := range c.furnaces {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Catalog) Events() []Event {
	return slices.Clone(c.events)
}

func buildUpgrade(ud UpgradeDoc) (Upgrade, error) {
	if ud.Name == "" {
		return Upgrade{}, errors.New("name is required")
	}
	kind, err := operative.ParseKind(ud.Kind)
	if err != nil {
		return Upgrade{}, err
	}
	if len(ud.Targets) == 0 {
		return Upgrade{}, errors.New("at least one target is required")
	}
	targets := make([]currency.Currency, 0, len(ud.Targets))
	for _, name := range ud.Targets {
		cur, err := currency.ParseCurrency(name)
		if err != nil {
			return Upgrade{}, err
		}
		targets = append(targets, cur)
	}
	curve, err := buildFormula(ud.Curve)
	if err != nil {
		return Upgrade{}, fmt.Errorf("curve: %w", err)
	}
	cost, err := buildFormula(ud.Cost.Steps)
	if err != nil {
		return Upgrade{}, fmt.Errorf("cost: %w", err)
	}
	costCur, err := currency.ParseCurrency(ud.Cost.Currency)
	if err != nil {
		return Upgrade{}, fmt.Errorf("cost: %w", err)
	}
	if ud.MaxLevel < 0 {
		return Upgrade{}, errors.New("max_level must not be negative")
	}
	return Upgrade{
		Upgrade: operative.Upgrade{
			Name:    ud.Name,
			Kind:    kind,
			Targets: targets,
			Curve:   curve,
		},
		Description:  ud.Description,
		Cost:         cost,
		CostCurrency: costCur,
		MaxLevel:     ud.MaxLevel,
	}, nil
}

func buildFormula(steps []StepDoc) (*formula.Formula, error) {
	f := formula.New()
	for i, s := range steps {
		kind, err := formula.ParseKind(s.Op)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		op := formula.Operation{Kind: kind}
		if kind.HasOperand() {
			if op.Operand, err = bignum.Parse(s.Value); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		}
		f.Append(op)
	}
	return f, nil
}

func buildBundle(m map[string]string) (currency.Bundle, error) {
	var b currency.Bundle
	for name, v := range m {
		cur, err := currency.ParseCurrency(name)
		if err != nil {
			return b, err
		}
		n, err := bignum.Parse(v)
		if err != nil {
			return b, fmt.Errorf("%s: %w", cur, err)
		}
		b.Set(cur, n)
	}
	return b, nil
}

func buildFurnace(fd FurnaceDoc) (Furnace, error) {
	if fd.ID == "" {
		return Furnace{}, errors.New("id is required")
	}
	value, err := buildBundle(fd.DropletValue)
	if err != nil {
		return Furnace{}, fmt.Errorf("droplet_value: %w", err)
	}
	nerf := bignum.One
	if fd.Nerf != "" {
		if nerf, err = bignum.Parse(fd.Nerf); err != nil {
			return Furnace{}, fmt.Errorf("nerf: %w", err)
		}
		if nerf.Sign() < 0 {
			return Furnace{}, errors.New("nerf must not be negative")
		}
	}
	f := Furnace{
		ID:              fd.ID,
		DropletValue:    value,
		Nerf:            nerf,
		IncludeGlobal:   fd.IncludeGlobal,
		IncludeUpgrades: fd.IncludeUpgrades,
	}
	for i, bd := range fd.Boosts {
		kind, err := operative.ParseKind(bd.Kind)
		if err != nil {
			return Furnace{}, fmt.Errorf("boosts[%d]: %w", i, err)
		}
		v, err := buildBundle(bd.Value)
		if err != nil {
			return Furnace{}, fmt.Errorf("boosts[%d]: %w", i, err)
		}
		f.Boosts = append(f.Boosts, operative.ItemLocalBoost{ItemID: fd.ID, Name: bd.Name, Kind: kind, Value: v})
	}
	return f, nil
}

func buildEvent(ed EventDoc) (Event, error) {
	if ed.Name == "" {
		return Event{}, errors.New("name is required")
	}
	sched, err := CronParser.Parse(ed.Schedule)
	if err != nil {
		return Event{}, fmt.Errorf("schedule: %w", err)
	}
	if ed.Duration <= 0 {
		return Event{}, errors.New("duration must be positive")
	}
	kind, err := operative.ParseKind(ed.Kind)
	if err != nil {
		return Event{}, err
	}
	v, err := buildBundle(ed.Value)
	if err != nil {
		return Event{}, fmt.Errorf("value: %w", err)
	}
	return Event{
		Name:     ed.Name,
		Schedule: sched,
		Spec:     ed.Schedule,
		Duration: ed.Duration,
		Modifier: operative.GlobalModifier{Name: ed.Name, Kind: kind, Value: v},
	}, nil
}

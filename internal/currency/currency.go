package currency

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCurrency = errors.New("unknown currency")

// Currency identifies one of the fixed set of in-game currencies.
type Currency uint8

const (
	Funds Currency = iota
	Power
	Crystals
	DarkMatter
	Time
	ObbyPoints
	Bitcoin
	Souls
	Research
	Prestige
	Clovers
	Shards
	Ore
	Essence
	Stardust
	Void
	Relics
	Tokens
	Gems
	Quanta

	numCurrencies
)

// Count is the number of known currencies.
const Count = int(numCurrencies)

var names = [numCurrencies]string{
	Funds:      "Funds",
	Power:      "Power",
	Crystals:   "Crystals",
	DarkMatter: "DarkMatter",
	Time:       "Time",
	ObbyPoints: "ObbyPoints",
	Bitcoin:    "Bitcoin",
	Souls:      "Souls",
	Research:   "Research",
	Prestige:   "Prestige",
	Clovers:    "Clovers",
	Shards:     "Shards",
	Ore:        "Ore",
	Essence:    "Essence",
	Stardust:   "Stardust",
	Void:       "Void",
	Relics:     "Relics",
	Tokens:     "Tokens",
	Gems:       "Gems",
	Quanta:     "Quanta",
}

func (c Currency) String() string {
	if c.Valid() {
		return names[c]
	}
	return fmt.Sprintf("Currency(%d)", uint8(c))
}

func (c Currency) Valid() bool {
	return c < numCurrencies
}

// ParseCurrency resolves a currency by name, ignoring case.
func ParseCurrency(name string) (Currency, error) {
	name = strings.TrimSpace(name)
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return Currency(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, name)
}

// All returns every known currency in declaration order.
func All() []Currency {
	out := make([]Currency, 0, numCurrencies)
	for c := range numCurrencies {
		out = append(out, c)
	}
	return out
}

func (c Currency) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCurrency, uint8(c))
	}
	return []byte(names[c]), nil
}

func (c *Currency) UnmarshalText(text []byte) error {
	v, err := ParseCurrency(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

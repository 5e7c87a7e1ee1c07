package catalog

import "time"

// Document is the on-disk form of a catalog. Amounts are written in the
// bignum text form ("400", "1.5e300", "e1.2e16"); bundles are maps keyed by
// currency name.
type Document struct {
	Softcaps []SoftcapDoc `yaml:"softcaps" json:"softcaps"`
	Upgrades []UpgradeDoc `yaml:"upgrades" json:"upgrades"`
	Furnaces []FurnaceDoc `yaml:"furnaces" json:"furnaces"`
	Events   []EventDoc   `yaml:"events" json:"events"`
}

type SoftcapDoc struct {
	Currency  string  `yaml:"currency" json:"currency"`
	Threshold string  `yaml:"threshold" json:"threshold"`
	Policy    string  `yaml:"policy" json:"policy"`
	Param     float64 `yaml:"param,omitempty" json:"param,omitempty"`
}

type StepDoc struct {
	Op    string `yaml:"op" json:"op"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

type CostDoc struct {
	Currency string    `yaml:"currency" json:"currency"`
	Steps    []StepDoc `yaml:"steps" json:"steps"`
}

type UpgradeDoc struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        string    `yaml:"kind" json:"kind"`
	Targets     []string  `yaml:"targets" json:"targets"`
	Curve       []StepDoc `yaml:"curve" json:"curve"`
	Cost        CostDoc   `yaml:"cost" json:"cost"`
	MaxLevel    int64     `yaml:"max_level,omitempty" json:"max_level,omitempty"`
}

type BoostDoc struct {
	Name  string            `yaml:"name" json:"name"`
	Kind  string            `yaml:"kind" json:"kind"`
	Value map[string]string `yaml:"value" json:"value"`
}

type FurnaceDoc struct {
	ID              string            `yaml:"id" json:"id"`
	DropletValue    map[string]string `yaml:"droplet_value" json:"droplet_value"`
	Nerf            string            `yaml:"nerf,omitempty" json:"nerf,omitempty"`
	IncludeGlobal   bool              `yaml:"include_global" json:"include_global"`
	IncludeUpgrades bool              `yaml:"include_upgrades" json:"include_upgrades"`
	Boosts          []BoostDoc        `yaml:"boosts,omitempty" json:"boosts,omitempty"`
}

type EventDoc struct {
	Name     string            `yaml:"name" json:"name"`
	Schedule string            `yaml:"schedule" json:"schedule"`
	Duration time.Duration     `yaml:"duration" json:"duration"`
	Kind     string            `yaml:"kind" json:"kind"`
	Value    map[string]string `yaml:"value" json:"value"`
}

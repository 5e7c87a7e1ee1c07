package game

import (
	"time"

	"github.com/google/uuid"

	"refinery/internal/currency"
	"refinery/internal/operative"
	"refinery/internal/revenue"
)

type WalletView struct {
	PlayerID  string           `json:"player_id"`
	Balance   currency.Bundle  `json:"balance"`
	Peak      currency.Bundle  `json:"peak"`
	Upgrades  map[string]int64 `json:"upgrades"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type DropletInput struct {
	PlayerID       string `json:"-"`
	FurnaceID      string `json:"furnace"`
	Count          int64  `json:"count"`
	IdempotencyKey string `json:"idempotency_key"`
}

type DropletResult struct {
	FurnaceID string          `json:"furnace"`
	Count     int64           `json:"count"`
	Result    revenue.Result  `json:"result"`
	Balance   currency.Bundle `json:"balance"`
	Peak      currency.Bundle `json:"peak"`
	Preview   bool            `json:"preview"`
}

type BuyUpgradeInput struct {
	PlayerID       string `json:"-"`
	Upgrade        string `json:"-"`
	IdempotencyKey string `json:"idempotency_key"`
}

type BuyUpgradeResult struct {
	Upgrade string          `json:"upgrade"`
	Level   int64           `json:"level"`
	Cost    currency.Bundle `json:"cost"`
	Balance currency.Bundle `json:"balance"`
}

type ActiveEvent struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Kind     operative.Kind  `json:"kind"`
	Value    currency.Bundle `json:"value"`
	StartsAt time.Time       `json:"starts_at"`
	EndsAt   time.Time       `json:"ends_at"`
}

type FormulaView struct {
	Upgrade     string   `json:"upgrade"`
	Description string   `json:"description,omitempty"`
	Kind        string   `json:"kind"`
	Targets     []string `json:"targets"`
	Curve       string   `json:"curve"`
	Cost        string   `json:"cost"`
	Currency    string   `json:"cost_currency"`
	MaxLevel    int64    `json:"max_level,omitempty"`
}

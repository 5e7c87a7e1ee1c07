package revenue

import (
	"fmt"
	"log/slog"

	"refinery/internal/bignum"
	"refinery/internal/currency"
	"refinery/internal/operative"
	"refinery/internal/softcap"
)

// Stage is a step of resolving one production event.
type Stage uint8

const (
	StageRaw Stage = iota
	StageGlobalBoosted
	StageSourceBoosted
	StageVarianceAdjusted
	StageSoftcapped
	StageFinal
)

var stageNames = [...]string{
	StageRaw:              "RAW",
	StageGlobalBoosted:    "GLOBAL_BOOSTED",
	StageSourceBoosted:    "SOURCE_BOOSTED",
	StageVarianceAdjusted: "VARIANCE_ADJUSTED",
	StageSoftcapped:       "SOFTCAPPED",
	StageFinal:            "FINAL",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for i, name := range stageNames {
		if name == string(text) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", text)
}

// Request describes one production event.
type Request struct {
	// Base is the raw value of the droplet batch.
	Base currency.Bundle
	// Sources are the boost sources applicable to the producing item.
	Sources []operative.Source
	// Nerf scales the boosted value. Zero means one; negative values
	// resolve to nothing.
	Nerf bignum.Number
	// Balance is the recipient's current balance, read only.
	Balance currency.Bundle

	IncludesGlobalBoosts bool
	IncludesUpgrades     bool
}

type Result struct {
	Delta       currency.Bundle     `json:"delta"`
	Nerf        bignum.Number       `json:"nerf"`
	Boosts      operative.Triple    `json:"boosts"`
	Trace       []Stage             `json:"trace"`
	Capped      []currency.Currency `json:"capped,omitempty"`
	PassThrough bool                `json:"pass_through"`
}

// Resolver turns production events into balance deltas. It holds no
// per-call state and may be shared between goroutines.
type Resolver struct {
	softcaps *softcap.Engine
	log      *slog.Logger
}

// NewResolver builds a resolver. A nil engine disables softcaps.
func NewResolver(softcaps *softcap.Engine, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{softcaps: softcaps, log: log}
}

func (r *Resolver) Softcaps() *softcap.Engine {
	return r.softcaps
}

// Resolve runs the request through each enabled stage. When the folded
// boosts are the identity the item contributes nothing of its own, and the
// result is an all-zero delta marked PassThrough.
func (r *Resolver) Resolve(req Request) Result {
	res := Result{Trace: make([]Stage, 0, 6)}
	res.Trace = append(res.Trace, StageRaw)

	res.Nerf = req.Nerf
	if res.Nerf.IsZero() {
		res.Nerf = bignum.One
	}

	triple := operative.Template()
	if req.IncludesGlobalBoosts {
		triple = operative.Fold(triple, req.Sources, func(s operative.Scope) bool { return s == operative.ScopeGlobal })
		res.Trace = append(res.Trace, StageGlobalBoosted)
	}
	if req.IncludesUpgrades {
		triple = operative.Fold(triple, req.Sources, func(s operative.Scope) bool { return s == operative.ScopeUpgrade })
		res.Trace = append(res.Trace, StageSourceBoosted)
	}
	res.Boosts = triple

	if triple.IsIdentity() {
		res.PassThrough = true
		res.Trace = append(res.Trace, StageFinal)
		return res
	}

	delta := triple.Coalesce(req.Base)
	if !res.Nerf.Equals(bignum.One) {
		if res.Nerf.Sign() < 0 {
			delta = delta.MulConstant(bignum.Zero)
		} else {
			delta = delta.MulConstant(res.Nerf)
		}
		res.Trace = append(res.Trace, StageVarianceAdjusted)
	}

	rep := r.softcaps.ApplyReport(delta, req.Balance)
	res.Trace = append(res.Trace, StageSoftcapped)
	if len(rep.Engaged) > 0 {
		res.Capped = rep.Engaged
		r.log.Debug("softcap engaged", "currencies", rep.Engaged, "raw", delta.String(), "capped", rep.Delta.String())
	}

	res.Delta = rep.Delta
	res.Trace = append(res.Trace, StageFinal)
	return res
}

// Package risk owns position sizing and the admission gate that every ORDER
// command must clear before execution.
package risk

import (
	"context"
	"math"

	"github.com/rustyeddy/pilot/venue"
)

// ProfitSimulator is the slice of the venue the sizer needs.
type ProfitSimulator interface {
	ProfitForTrade(ctx context.Context, symbol string, side venue.Side, volume, openPrice, closePrice float64) (float64, error)
}

// SizeInputs parameterizes one sizing decision.
type SizeInputs struct {
	Equity         float64
	RiskPercent    float64 // % of equity risked if the stop is hit
	Side           venue.Side
	EntryPrice     float64
	StopPrice      float64
	FallbackVolume float64 // used when the simulation is unusable; 0 blocks downstream
}

// SizeResult reports the raw volume before multiplier/step/cap handling.
type SizeResult struct {
	Volume   float64
	UnitPL   float64 // simulated P&L of 1.0 lot moving entry -> stop
	Fallback bool    // FallbackVolume was used
	Err      error   // simulation error, if any (non-fatal)
}

// Size converts a risk budget and a stop distance into a volume by asking
// the venue what one lot would lose between entry and stop. A failed or
// zero-magnitude simulation degrades to the fallback volume.
func Size(ctx context.Context, sim ProfitSimulator, symbol string, in SizeInputs) SizeResult {
	budget := in.Equity * in.RiskPercent / 100

	unit, err := sim.ProfitForTrade(ctx, symbol, in.Side, 1.0, in.EntryPrice, in.StopPrice)
	if err != nil {
		return SizeResult{Volume: in.FallbackVolume, Fallback: true, Err: err}
	}
	if unit == 0 {
		return SizeResult{Volume: in.FallbackVolume, Fallback: true}
	}

	return SizeResult{Volume: budget / math.Abs(unit), UnitPL: unit}
}

// FinalizeVolume applies the effective multiplier, rounds down to the venue
// volume step, floors at the venue minimum, and caps at maxLot. A
// non-positive intermediate volume stays non-positive so the gate can block
// the order.
func FinalizeVolume(volume, multiplier, step, minVolume, maxLot float64) float64 {
	v := volume * multiplier
	if v <= 0 {
		return 0
	}
	if step > 0 {
		v = math.Floor(v/step+1e-9) * step
	}
	if v < minVolume {
		v = minVolume
	}
	if maxLot > 0 && v > maxLot {
		v = maxLot
	}
	return v
}

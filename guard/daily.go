// Package guard holds the account-level interlocks: the daily-loss guard
// with its panic-market detector, and the once-per-day emergency breaker.
package guard

import (
	"log"
	"time"
)

// DailyPolicy is the static configuration of the daily guard.
type DailyPolicy struct {
	LossPct          float64 // halt when equity drops this percent below day start
	CloseOnDailyLoss bool    // whether the halt may liquidate positions at all

	PanicEnabled     bool
	PanicSpreadPts   float64
	PanicRangeATRMul float64
	CooldownMin      int
}

// PanicInputs is the market snapshot the detector evaluates at halt time.
type PanicInputs struct {
	SpreadPoints float64
	PrevBarRange float64 // high-low of the last completed short-period bar
	ATR          float64
}

// DailyVerdict reports what a guard evaluation decided this tick.
type DailyVerdict struct {
	Halted         bool // transitioned to HaltedToday just now
	ClosePositions bool
	PanicDetected  bool
}

// Daily tracks the trading-day baseline and the halt-new-entries flag.
// The zero dayStart means the baseline has not been established yet, so
// the loss check stays inert until the first roll.
type Daily struct {
	policy DailyPolicy

	dayStart       time.Time
	dayStartEquity float64
	halted         bool
	cooldownUntil  time.Time
}

func NewDaily(p DailyPolicy) *Daily {
	return &Daily{policy: p}
}

func (d *Daily) Halted() bool             { return d.halted }
func (d *Daily) CooldownUntil() time.Time { return d.cooldownUntil }
func (d *Daily) DayStartEquity() float64  { return d.dayStartEquity }
func (d *Daily) DayStart() time.Time      { return d.dayStart }

// Roll advances the guard to the trading day containing now. It returns
// true exactly once per day boundary; the caller resets its own per-day
// state (trailing modes, emergency latch) on that signal.
func (d *Daily) Roll(now time.Time, equity float64) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	if !d.dayStart.IsZero() && day.Equal(d.dayStart) {
		return false
	}

	d.dayStart = day
	d.dayStartEquity = equity
	d.halted = false
	d.cooldownUntil = time.Time{}

	log.Printf("[GUARD] day %s baseline equity %.2f", day.Format("2006-01-02"), equity)
	return true
}

// ForceHalt latches the halt flag outside the loss check, used by the
// emergency breaker. It also extends the panic cooldown.
func (d *Daily) ForceHalt(now time.Time) {
	d.halted = true
	if d.policy.CooldownMin > 0 {
		d.cooldownUntil = now.Add(time.Duration(d.policy.CooldownMin) * time.Minute)
	}
}

// Check runs the daily-loss transition. It fires at most once per day:
// once halted, subsequent calls return an empty verdict until Roll resets.
// With no established baseline the check is skipped entirely.
func (d *Daily) Check(now time.Time, equity float64, mkt PanicInputs) DailyVerdict {
	if d.halted || d.dayStartEquity <= 0 {
		return DailyVerdict{}
	}

	limit := d.dayStartEquity * (1 - d.policy.LossPct/100)
	if equity >= limit {
		return DailyVerdict{}
	}

	d.halted = true
	v := DailyVerdict{Halted: true}

	if !d.policy.PanicEnabled {
		v.ClosePositions = d.policy.CloseOnDailyLoss
		log.Printf("[GUARD] daily loss halt: equity %.2f < %.2f (close=%t)", equity, limit, v.ClosePositions)
		return v
	}

	v.PanicDetected = d.detectPanic(mkt)
	if v.PanicDetected {
		v.ClosePositions = d.policy.CloseOnDailyLoss
		if d.policy.CooldownMin > 0 {
			d.cooldownUntil = now.Add(time.Duration(d.policy.CooldownMin) * time.Minute)
		}
		log.Printf("[GUARD] daily loss halt in panic market: equity %.2f < %.2f, cooldown until %s",
			equity, limit, d.cooldownUntil.Format(time.RFC3339))
		return v
	}

	// Orderly market: keep the positions, just stop opening new ones.
	log.Printf("[GUARD] daily loss halt: equity %.2f < %.2f, holding positions", equity, limit)
	return v
}

// detectPanic flags a hostile liquidity picture: a blown-out spread or an
// outsized last bar relative to ATR.
func (d *Daily) detectPanic(mkt PanicInputs) bool {
	if d.policy.PanicSpreadPts > 0 && mkt.SpreadPoints >= d.policy.PanicSpreadPts {
		return true
	}
	if d.policy.PanicRangeATRMul > 0 && mkt.ATR > 0 &&
		mkt.PrevBarRange >= d.policy.PanicRangeATRMul*mkt.ATR {
		return true
	}
	return false
}

package guard

import (
	"fmt"
	"log"
	"time"

	"github.com/rustyeddy/pilot/store"
)

// Breaker fire reasons.
const (
	FireEquityDD    = "EQUITY_DD"
	FireMarginLevel = "MARGIN_LEVEL"
)

// BreakerPolicy is the static configuration of the emergency breaker.
type BreakerPolicy struct {
	Enabled        bool
	LossPct        float64 // equity drawdown from day start, percent
	MarginLevelMin float64 // fire at or below this margin level, percent
	LogOnly        bool    // evaluate and latch but never liquidate
	Persist        bool
	KeyPrefix      string
}

// BreakerInputs is the account snapshot the breaker evaluates.
type BreakerInputs struct {
	DayStartEquity float64
	Equity         float64
	MarginLevel    float64
	OpenPositions  int
}

// Fire describes a breaker trip.
type Fire struct {
	Reason         string
	At             time.Time
	ClosePositions bool
}

// Breaker is the independent once-per-day circuit breaker. The latch is
// monotonic within a trading day and, when persistence is on, survives a
// restart on the same day.
type Breaker struct {
	policy BreakerPolicy
	store  store.FiredStore
	key    string

	firedDay string // YYYY-MM-DD, empty when armed
	firedAt  time.Time
}

// NewBreaker builds the breaker for one strategy identity. The persisted
// latch, if any, is loaded immediately so a same-day restart stays halted.
func NewBreaker(p BreakerPolicy, st store.FiredStore, login int64, symbol string, magic int) *Breaker {
	b := &Breaker{
		policy: p,
		store:  st,
		key:    fmt.Sprintf("%s:%d:%s:%d", p.KeyPrefix, login, symbol, magic),
	}

	if p.Persist && st != nil {
		day, err := st.LoadDay(b.key)
		if err != nil {
			log.Printf("[EMG] load latch: %v", err)
		} else if day != "" {
			b.firedDay = day
		}
	}
	return b
}

// FiredToday reports whether the latch is set for the day containing now.
func (b *Breaker) FiredToday(now time.Time) bool {
	return b.firedDay == dayKey(now)
}

// Rearm clears the latch when the day has rolled past the fired day.
// A latch for the current day is left alone.
func (b *Breaker) Rearm(now time.Time) {
	if b.firedDay != "" && b.firedDay != dayKey(now) {
		b.firedDay = ""
		b.firedAt = time.Time{}
		log.Printf("[EMG] re-armed for %s", dayKey(now))
	}
}

// Check evaluates the breaker and latches on the first trip of the day.
// It returns nil when nothing fired. A zero day-start equity keeps the
// drawdown arm inert; the margin arm needs at least one open position.
func (b *Breaker) Check(now time.Time, in BreakerInputs) *Fire {
	if !b.policy.Enabled || b.FiredToday(now) {
		return nil
	}

	reason := ""
	switch {
	case in.DayStartEquity > 0 && in.Equity <= in.DayStartEquity*(1-b.policy.LossPct/100):
		reason = FireEquityDD
	case in.OpenPositions > 0 && in.MarginLevel > 0 && in.MarginLevel <= b.policy.MarginLevelMin:
		reason = FireMarginLevel
	default:
		return nil
	}

	b.firedDay = dayKey(now)
	b.firedAt = now

	if b.policy.Persist && b.store != nil {
		if err := b.store.SaveDay(b.key, b.firedDay); err != nil {
			log.Printf("[EMG] persist latch: %v", err)
		}
	}

	log.Printf("[EMG] FIRED %s: equity %.2f / day start %.2f, margin %.1f%% (log_only=%t)",
		reason, in.Equity, in.DayStartEquity, in.MarginLevel, b.policy.LogOnly)

	return &Fire{
		Reason:         reason,
		At:             now,
		ClosePositions: !b.policy.LogOnly,
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/pilot/venue"
)

// Block codes, stable for logs, metrics, and the journal.
const (
	BlockEmergencyHalt   = "EMERGENCY_HALT"
	BlockPanicCooldown   = "PANIC_COOLDOWN"
	BlockHardCloseWindow = "HARD_CLOSE_WINDOW"
	BlockBeforeStart     = "BEFORE_START_HOUR"
	BlockDailyHalt       = "DAILY_HALT"
	BlockOutOfHours      = "OUT_OF_HOURS"
	BlockMaxPositions    = "MAX_POSITIONS"
	BlockAbnormalMult    = "ABNORMAL_MULTIPLIER"
	BlockBadAction       = "BAD_ACTION"
	BlockNoATR           = "NO_ATR"
)

// GatePolicy is the static part of the admission chain.
type GatePolicy struct {
	TradingStartHour int
	HardCloseStart   int // hour; [start,end), start==end disables
	HardCloseEnd     int

	HoursEnabled bool
	HoursStart   int // [start,end), may wrap midnight
	HoursEnd     int

	MaxPositions int

	MultMin        float64
	MultMax        float64
	RejectAbnormal bool

	AllowDuringHalt bool // validation bypass for the daily halt only
}

// GateState is the per-evaluation snapshot of controller state.
type GateState struct {
	Now             time.Time // venue server time
	EmergencyHalted bool
	CooldownUntil   time.Time
	DailyHalted     bool
	OpenPositions   int
	CachedATR       float64 // indicator fallback when the command carries none
}

// OrderIntent is the ORDER payload the gate evaluates.
type OrderIntent struct {
	Action     string
	Multiplier float64
	ATR        float64
}

// Decision is the gate outcome. On success it carries the normalized side,
// the effective multiplier, and the resolved ATR.
type Decision struct {
	Allowed bool
	Code    string
	Detail  string

	Side         venue.Side
	Multiplier   float64
	ATR          float64
	HaltBypassed bool // order passed only because AllowDuringHalt is set
}

func blocked(code, detail string) Decision {
	return Decision{Code: code, Detail: detail}
}

// Admit runs the fixed-order admission chain. The first failing check wins;
// later checks are not evaluated.
func Admit(p GatePolicy, st GateState, in OrderIntent) Decision {
	// 1. Emergency halt is absolute; no bypass applies.
	if st.EmergencyHalted {
		return blocked(BlockEmergencyHalt, "emergency breaker fired today")
	}

	// 2. Panic cooldown is absolute as well.
	if !st.CooldownUntil.IsZero() && st.Now.Before(st.CooldownUntil) {
		return blocked(BlockPanicCooldown, fmt.Sprintf("cooldown until %s", st.CooldownUntil.Format(time.RFC3339)))
	}

	// 3. Venue hard-close window.
	if p.HardCloseStart != p.HardCloseEnd && hourIn(st.Now.Hour(), p.HardCloseStart, p.HardCloseEnd) {
		return blocked(BlockHardCloseWindow, fmt.Sprintf("hour %d in [%d,%d)", st.Now.Hour(), p.HardCloseStart, p.HardCloseEnd))
	}

	// 4. Session open.
	if st.Now.Hour() < p.TradingStartHour {
		return blocked(BlockBeforeStart, fmt.Sprintf("hour %d before start %d", st.Now.Hour(), p.TradingStartHour))
	}

	// 5. Daily-loss halt, bypassable for validation runs.
	haltBypassed := false
	if st.DailyHalted {
		if !p.AllowDuringHalt {
			return blocked(BlockDailyHalt, "daily loss halt active")
		}
		haltBypassed = true
	}

	// 6. Trading-hours filter.
	if p.HoursEnabled && !hourIn(st.Now.Hour(), p.HoursStart, p.HoursEnd) {
		return blocked(BlockOutOfHours, fmt.Sprintf("hour %d outside [%d,%d)", st.Now.Hour(), p.HoursStart, p.HoursEnd))
	}

	// 7. Exposure cap.
	if st.OpenPositions >= p.MaxPositions {
		return blocked(BlockMaxPositions, fmt.Sprintf("open %d >= max %d", st.OpenPositions, p.MaxPositions))
	}

	// 8. Multiplier: non-positive defaults to 1.0, then reject or clamp.
	mult := in.Multiplier
	if mult <= 0 {
		mult = 1.0
	}
	if p.RejectAbnormal && (mult < p.MultMin || mult > p.MultMax) {
		return blocked(BlockAbnormalMult, fmt.Sprintf("multiplier %.3f outside [%.2f,%.2f]", mult, p.MultMin, p.MultMax))
	}
	if mult < p.MultMin {
		mult = p.MultMin
	}
	if mult > p.MultMax {
		mult = p.MultMax
	}

	// 9. Action.
	var side venue.Side
	switch strings.ToUpper(strings.TrimSpace(in.Action)) {
	case "BUY":
		side = venue.Buy
	case "SELL":
		side = venue.Sell
	default:
		return blocked(BlockBadAction, fmt.Sprintf("action %q", in.Action))
	}

	// 10. Volatility reference: orders never execute with an unknown ATR.
	atr := in.ATR
	if atr <= 0 {
		atr = st.CachedATR
	}
	if atr <= 0 {
		return blocked(BlockNoATR, "no usable ATR from command or indicator")
	}

	return Decision{
		Allowed:      true,
		Side:         side,
		Multiplier:   mult,
		ATR:          atr,
		HaltBypassed: haltBypassed,
	}
}

// hourIn reports whether h falls in [start,end), wrapping midnight when
// start > end. end may be 24.
func hourIn(h, start, end int) bool {
	if start <= end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

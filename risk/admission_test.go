package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pilot/venue"
)

func openPolicy() GatePolicy {
	return GatePolicy{
		TradingStartHour: 1,
		HardCloseStart:   23,
		HardCloseEnd:     24,
		MaxPositions:     3,
		MultMin:          0.5,
		MultMax:          2.0,
	}
}

func midday() GateState {
	return GateState{
		Now:       time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
		CachedATR: 2.5,
	}
}

func buy(mult float64) OrderIntent {
	return OrderIntent{Action: "BUY", Multiplier: mult, ATR: 2.5}
}

func TestAdmit_Allows(t *testing.T) {
	t.Parallel()

	d := Admit(openPolicy(), midday(), buy(1.0))
	require.True(t, d.Allowed)
	assert.Equal(t, venue.Buy, d.Side)
	assert.Equal(t, 1.0, d.Multiplier)
	assert.Equal(t, 2.5, d.ATR)
	assert.False(t, d.HaltBypassed)
}

func TestAdmit_Blocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy func(p *GatePolicy)
		state  func(st *GateState)
		intent func(in *OrderIntent)
		code   string
	}{
		{
			name:  "emergency halt",
			state: func(st *GateState) { st.EmergencyHalted = true },
			code:  BlockEmergencyHalt,
		},
		{
			name:  "panic cooldown",
			state: func(st *GateState) { st.CooldownUntil = st.Now.Add(10 * time.Minute) },
			code:  BlockPanicCooldown,
		},
		{
			name:  "hard close window",
			state: func(st *GateState) { st.Now = time.Date(2026, 1, 5, 23, 30, 0, 0, time.UTC) },
			code:  BlockHardCloseWindow,
		},
		{
			name:  "before start hour",
			state: func(st *GateState) { st.Now = time.Date(2026, 1, 5, 0, 30, 0, 0, time.UTC) },
			code:  BlockBeforeStart,
		},
		{
			name:  "daily halt",
			state: func(st *GateState) { st.DailyHalted = true },
			code:  BlockDailyHalt,
		},
		{
			name: "out of hours",
			policy: func(p *GatePolicy) {
				p.HoursEnabled = true
				p.HoursStart = 14
				p.HoursEnd = 18
			},
			code: BlockOutOfHours,
		},
		{
			name:  "max positions",
			state: func(st *GateState) { st.OpenPositions = 3 },
			code:  BlockMaxPositions,
		},
		{
			name:   "abnormal multiplier rejected",
			policy: func(p *GatePolicy) { p.RejectAbnormal = true },
			intent: func(in *OrderIntent) { in.Multiplier = 5.0 },
			code:   BlockAbnormalMult,
		},
		{
			name:   "bad action",
			intent: func(in *OrderIntent) { in.Action = "HEDGE" },
			code:   BlockBadAction,
		},
		{
			name:  "no atr anywhere",
			state: func(st *GateState) { st.CachedATR = 0 },
			intent: func(in *OrderIntent) {
				in.ATR = 0
			},
			code: BlockNoATR,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, st, in := openPolicy(), midday(), buy(1.0)
			if tt.policy != nil {
				tt.policy(&p)
			}
			if tt.state != nil {
				tt.state(&st)
			}
			if tt.intent != nil {
				tt.intent(&in)
			}

			d := Admit(p, st, in)
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.code, d.Code)
		})
	}
}

func TestAdmit_FirstFailureWins(t *testing.T) {
	t.Parallel()

	// Emergency halt masks the cooldown, the halt, and the bad action.
	st := midday()
	st.EmergencyHalted = true
	st.CooldownUntil = st.Now.Add(time.Hour)
	st.DailyHalted = true

	d := Admit(openPolicy(), st, OrderIntent{Action: "HEDGE"})
	assert.Equal(t, BlockEmergencyHalt, d.Code)
}

func TestAdmit_Multiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mult   float64
		reject bool
		want   float64
		code   string
	}{
		{name: "zero defaults to one", mult: 0, want: 1.0},
		{name: "negative defaults to one", mult: -3, want: 1.0},
		{name: "clamped high", mult: 5.0, want: 2.0},
		{name: "clamped low", mult: 0.1, want: 0.5},
		{name: "in range untouched", mult: 1.4, want: 1.4},
		{name: "reject mode never clamps", mult: 5.0, reject: true, code: BlockAbnormalMult},
		{name: "reject mode passes in-range", mult: 1.4, reject: true, want: 1.4},
		{name: "reject mode still defaults non-positive", mult: 0, reject: true, want: 1.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := openPolicy()
			p.RejectAbnormal = tt.reject

			d := Admit(p, midday(), buy(tt.mult))
			if tt.code != "" {
				assert.False(t, d.Allowed)
				assert.Equal(t, tt.code, d.Code)
				return
			}
			require.True(t, d.Allowed)
			assert.InDelta(t, tt.want, d.Multiplier, 1e-9)
		})
	}
}

func TestAdmit_HaltBypass(t *testing.T) {
	t.Parallel()

	p := openPolicy()
	p.AllowDuringHalt = true
	st := midday()
	st.DailyHalted = true

	d := Admit(p, st, buy(1.0))
	require.True(t, d.Allowed)
	assert.True(t, d.HaltBypassed)
}

func TestAdmit_ATRFallback(t *testing.T) {
	t.Parallel()

	in := buy(1.0)
	in.ATR = 0

	d := Admit(openPolicy(), midday(), in)
	require.True(t, d.Allowed)
	assert.Equal(t, 2.5, d.ATR)
}

func TestHourIn(t *testing.T) {
	t.Parallel()

	assert.True(t, hourIn(12, 1, 24))
	assert.False(t, hourIn(0, 1, 24))
	assert.True(t, hourIn(23, 23, 24))
	// Midnight wrap.
	assert.True(t, hourIn(23, 22, 2))
	assert.True(t, hourIn(1, 22, 2))
	assert.False(t, hourIn(12, 22, 2))
}

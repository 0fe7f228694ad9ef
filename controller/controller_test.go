package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pilot/bridge"
	"github.com/rustyeddy/pilot/command"
	"github.com/rustyeddy/pilot/config"
	"github.com/rustyeddy/pilot/journal"
	"github.com/rustyeddy/pilot/store"
	"github.com/rustyeddy/pilot/venue"
	"github.com/rustyeddy/pilot/venue/sim"
)

func goldSpec() sim.SymbolSpec {
	return sim.SymbolSpec{Point: 0.01, Digits: 2, VolumeStep: 0.01, VolumeMin: 0.01, PointValuePerLot: 1.0}
}

type harness struct {
	c     *Controller
	venue *sim.Venue
	queue *bridge.Queue
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Journal.DBPath = ""
	if mutate != nil {
		mutate(cfg)
	}

	v := sim.New(cfg.Symbol, goldSpec(), 10000)
	v.SetTick(2015.00, 2015.40)
	v.SetATR(venue.M5, 2.0)

	q := bridge.NewQueue(64)
	c := New(*cfg, v, q, q, journal.Nop{}, store.NewMemory(), 10001)

	// The first event rolls the trading day, which resets modes and the
	// equity baseline. Run it here so state set by a test survives.
	c.OnTick(context.Background())

	return &harness{c: c, venue: v, queue: q}
}

func (h *harness) push(t *testing.T, msg any) {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	h.queue.Push(raw)
}

func orderMsg(action string, mult float64) map[string]any {
	return map[string]any{
		"type": "ORDER", "action": action, "multiplier": mult,
		"atr": 2.0, "reason": "breakout",
	}
}

func (h *harness) positions(t *testing.T) []venue.Position {
	t.Helper()
	ps, err := h.venue.Positions(context.Background(),
		venue.StrategyIdentity{Symbol: h.c.cfg.Symbol, Magic: h.c.cfg.Magic})
	require.NoError(t, err)
	return ps
}

func TestOrderFlowEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.push(t, orderMsg("BUY", 1.0))

	h.c.OnTimer(context.Background())

	ps := h.positions(t)
	require.Len(t, ps, 1)
	assert.Equal(t, venue.Buy, ps[0].Side)
	// 1% of 10000 over a 300-point stop at 1.0/point/lot sizes 0.33 lots.
	assert.InDelta(t, 0.33, ps[0].Volume, 1e-9)
	assert.InDelta(t, 2012.40, ps[0].StopLoss, 1e-9)
	assert.InDelta(t, 2021.40, ps[0].TakeProfit, 1e-9)
}

func TestExecutorParamsMirrorConfig(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *config.Config) {
		cfg.Orders.Slippage.BasePoints = 25
		cfg.Orders.Slippage.MinPoints = 5
		cfg.Orders.Slippage.MaxPoints = 80
	})

	p := h.c.executorParams()
	assert.InDelta(t, 25.0, p.SlipBasePoints, 1e-9)
	assert.InDelta(t, 5.0, p.SlipMinPoints, 1e-9)
	assert.InDelta(t, 80.0, p.SlipMaxPoints, 1e-9)
	assert.Equal(t, h.c.cfg.Magic, p.Magic)
}

func TestDecodeFailureDoesNotBlockBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.queue.Push([]byte("{not json"))
	h.queue.Push([]byte(`{"type":"WAT"}`))
	h.push(t, orderMsg("BUY", 1.0))

	h.c.OnTimer(context.Background())

	assert.Len(t, h.positions(t), 1)
	assert.Equal(t, 2, h.c.State().DecodeFails)
}

// Not parallel: it captures the process-wide logger.
func TestDecodeFailureLogSampling(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Log.DecodeSampleRate = 1 })

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h.queue.Push([]byte("{not json"))
	h.c.OnTimer(context.Background())
	h.queue.Push([]byte("{still not json"))
	h.c.OnTimer(context.Background())

	out := buf.String()
	assert.Contains(t, out, "decode failure #1")
	assert.Contains(t, out, "decode failure #2")
}

func TestBatchIsBounded(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *config.Config) { cfg.Timer.CommandBatch = 2 })
	for i := 0; i < 5; i++ {
		h.push(t, map[string]any{"type": "HOLD"})
	}

	h.c.OnTimer(context.Background())
	assert.Equal(t, 3, h.queue.Len())
}

func TestSymbolRoutingFilter(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	msg := orderMsg("BUY", 1.0)
	msg["symbol"] = "SILVER"
	h.push(t, msg)

	h.c.OnTimer(context.Background())
	assert.Empty(t, h.positions(t))
}

func TestModeFlagsRideAnyMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.push(t, map[string]any{"type": "HOLD", "trail_mode": "TIGHT", "tp_mode": "WIDE"})

	h.c.OnTimer(context.Background())

	st := h.c.State()
	assert.Equal(t, command.ModeTight, st.TrailMode)
	assert.Equal(t, command.ModeWide, st.TPMode)
	assert.False(t, st.LastHold.IsZero())
}

func TestCloseCommandFlattens(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.push(t, orderMsg("BUY", 1.0))
	h.c.OnTimer(context.Background())
	require.Len(t, h.positions(t), 1)

	h.push(t, map[string]any{"type": "CLOSE"})
	h.c.OnTimer(context.Background())
	assert.Empty(t, h.positions(t))
}

func TestCloseSignalIsHoldAlias(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.push(t, orderMsg("BUY", 1.0))
	h.c.OnTimer(context.Background())
	require.Len(t, h.positions(t), 1)

	h.push(t, map[string]any{"type": "CLOSE_SIGNAL"})
	h.c.OnTimer(context.Background())

	assert.Len(t, h.positions(t), 1)
	assert.False(t, h.c.State().LastHold.IsZero())
}

func TestMaxPositionsBlocks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *config.Config) { cfg.Risk.MaxPositions = 1 })
	h.push(t, orderMsg("BUY", 1.0))
	h.c.OnTimer(context.Background())
	require.Len(t, h.positions(t), 1)

	h.push(t, orderMsg("SELL", 1.0))
	h.c.OnTimer(context.Background())
	assert.Len(t, h.positions(t), 1)
}

func TestMultiplierClampScalesVolume(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	// 5.0 clamps to 2.0, so the fill is double the base 0.33 lots.
	h.push(t, orderMsg("BUY", 5.0))
	h.c.OnTimer(context.Background())

	ps := h.positions(t)
	require.Len(t, ps, 1)
	assert.InDelta(t, 0.66, ps[0].Volume, 1e-9)
}

func TestEmergencyHaltClosesAndBlocks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.push(t, orderMsg("BUY", 1.0))
	h.c.OnTimer(context.Background())
	require.Len(t, h.positions(t), 1)

	// Establish the day baseline, then crash equity past the 15% line.
	h.venue.SetBalance(8000)
	h.venue.Advance(time.Second)
	h.c.OnTick(context.Background())

	assert.Empty(t, h.positions(t))
	assert.True(t, h.c.Daily().Halted())

	// New entries stay blocked for the rest of the day.
	h.push(t, orderMsg("BUY", 1.0))
	h.c.OnTimer(context.Background())
	assert.Empty(t, h.positions(t))
}

func TestDailyHaltBlocksNewEntries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *config.Config) {
		cfg.Guards.Emergency.Enabled = false
		cfg.Guards.Panic.Enabled = false
		cfg.Guards.CloseOnDailyLoss = false
	})

	// Baseline 10000, then drop 11% to trip the 10% daily guard.
	h.c.OnTimer(context.Background())
	h.venue.SetBalance(8900)
	h.c.OnTick(context.Background())

	require.True(t, h.c.Daily().Halted())

	h.push(t, orderMsg("BUY", 1.0))
	h.c.OnTimer(context.Background())
	assert.Empty(t, h.positions(t))
}

func TestDayRolloverResetsModes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.push(t, map[string]any{"type": "HOLD", "trail_mode": "TIGHT"})
	h.c.OnTimer(context.Background())
	require.Equal(t, command.ModeTight, h.c.State().TrailMode)

	h.venue.Advance(24 * time.Hour)
	h.c.OnTimer(context.Background())

	st := h.c.State()
	assert.Equal(t, command.ModeNormal, st.TrailMode)
	assert.True(t, st.LastHold.IsZero())
}

func TestHeartbeatSchemaAndCoalescing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.c.OnTimer(context.Background())
	require.Len(t, h.queue.Sent(), 1)

	var hb map[string]any
	require.NoError(t, json.Unmarshal(h.queue.Sent()[0], &hb))
	assert.Equal(t, "HEARTBEAT", hb["type"])
	assert.Equal(t, "GOLD", hb["symbol"])
	assert.EqualValues(t, 260001, hb["magic"])
	assert.EqualValues(t, 10001, hb["login"])
	assert.Equal(t, true, hb["ok"])
	assert.Contains(t, hb, "trade_server_ts")
	assert.Contains(t, hb, "server_gmt_offset_sec")
	assert.Contains(t, hb, "zmq_deser_fail")
	assert.Contains(t, hb, "hb_send_fail")

	// Within the interval: no second heartbeat.
	h.venue.Advance(5 * time.Second)
	h.c.OnTimer(context.Background())
	assert.Len(t, h.queue.Sent(), 1)

	h.venue.Advance(30 * time.Second)
	h.c.OnTimer(context.Background())
	assert.Len(t, h.queue.Sent(), 2)
}

func TestRestartSameDayStaysHalted(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	cfg := config.Default()

	v := sim.New(cfg.Symbol, goldSpec(), 10000)
	v.SetTick(2015.00, 2015.40)
	v.SetATR(venue.M5, 2.0)

	q := bridge.NewQueue(64)
	c := New(*cfg, v, q, q, journal.Nop{}, st, 10001)

	c.OnTimer(context.Background())
	v.SetBalance(8000)
	c.OnTick(context.Background())
	require.True(t, c.Daily().Halted())

	// Same store, same day, fresh process: still halted.
	c2 := New(*cfg, v, q, q, journal.Nop{}, st, 10001)
	c2.OnTimer(context.Background())

	raw, _ := json.Marshal(orderMsg("BUY", 1.0))
	q.Push(raw)
	c2.OnTimer(context.Background())

	ps, err := v.Positions(context.Background(), venue.StrategyIdentity{Symbol: cfg.Symbol, Magic: cfg.Magic})
	require.NoError(t, err)
	assert.Empty(t, ps)
}

// Package controller runs the strategy execution loop: it drains decision
// commands through the admission gate into sized orders, manages open
// positions tick by tick, and enforces the daily and emergency interlocks.
package controller

import (
	"context"
	"log"
	"time"

	"github.com/rustyeddy/pilot/bridge"
	"github.com/rustyeddy/pilot/command"
	"github.com/rustyeddy/pilot/config"
	"github.com/rustyeddy/pilot/exec"
	"github.com/rustyeddy/pilot/guard"
	"github.com/rustyeddy/pilot/journal"
	"github.com/rustyeddy/pilot/metrics"
	"github.com/rustyeddy/pilot/risk"
	"github.com/rustyeddy/pilot/store"
	"github.com/rustyeddy/pilot/venue"
)

// Notifier pushes operator alerts for the events that matter at 3am.
type Notifier interface {
	Notify(text string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

// Controller owns all mutable trading state. Every method runs on the
// single loop goroutine; nothing here is safe for concurrent use.
type Controller struct {
	cfg      config.Config
	venue    venue.Venue
	source   bridge.Source
	sink     bridge.Sink
	journal  journal.Journal
	executor *exec.Executor
	daily    *guard.Daily
	breaker  *guard.Breaker
	notifier Notifier

	identity  venue.StrategyIdentity
	tf        venue.Timeframe
	state     State
	cachedATR float64
	lastBid   float64
}

// Option tweaks optional collaborators.
type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// New wires a controller. The store may be nil when breaker persistence
// is disabled; login is the venue account id used for the latch key.
func New(cfg config.Config, v venue.Venue, src bridge.Source, sink bridge.Sink,
	jrnl journal.Journal, st store.FiredStore, login int64, opts ...Option) *Controller {

	c := &Controller{
		cfg:      cfg,
		venue:    v,
		source:   src,
		sink:     sink,
		journal:  jrnl,
		notifier: nopNotifier{},
		identity: venue.StrategyIdentity{Symbol: cfg.Symbol, Magic: cfg.Magic},
		daily: guard.NewDaily(guard.DailyPolicy{
			LossPct:          cfg.Guards.DailyLossPct,
			CloseOnDailyLoss: cfg.Guards.CloseOnDailyLoss,
			PanicEnabled:     cfg.Guards.Panic.Enabled,
			PanicSpreadPts:   cfg.Guards.Panic.SpreadPoints,
			PanicRangeATRMul: cfg.Guards.Panic.RangeATRMult,
			CooldownMin:      cfg.Guards.Panic.CooldownMin,
		}),
		breaker: guard.NewBreaker(guard.BreakerPolicy{
			Enabled:        cfg.Guards.Emergency.Enabled,
			LossPct:        cfg.Guards.Emergency.LossPct,
			MarginLevelMin: cfg.Guards.Emergency.MarginLevelMin,
			LogOnly:        cfg.Guards.Emergency.LogOnly,
			Persist:        cfg.Guards.Emergency.Persist,
			KeyPrefix:      cfg.Guards.Emergency.KeyPrefix,
		}, st, login, cfg.Symbol, cfg.Magic),
	}
	c.state.ResetDaily()
	c.tf, _ = venue.ParseTimeframe(cfg.Indicator.Timeframe)

	c.executor = exec.New(v, jrnl, exec.Params{
		SLATRMult:       cfg.Orders.SLATRMult,
		TPBaseDist:      cfg.Orders.TPBaseDist,
		SlippageDynamic: cfg.Orders.Slippage.Dynamic,
		SlipBasePoints:  float64(cfg.Orders.Slippage.BasePoints),
		SlipMinPoints:   float64(cfg.Orders.Slippage.MinPoints),
		SlipMaxPoints:   float64(cfg.Orders.Slippage.MaxPoints),
		SlipATRFactor:   cfg.Orders.Slippage.ATRFactor,
		Magic:           cfg.Magic,
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Daily exposes the guard for status reporting.
func (c *Controller) Daily() *guard.Daily { return c.daily }

// State returns a copy of the loop state for status reporting.
func (c *Controller) State() State { return c.state }

// Run drives the loop until ctx is cancelled: a fixed-period timer drains
// commands, and a faster poll synthesizes price-tick events from bid
// changes. Both run on this one goroutine.
func (c *Controller) Run(ctx context.Context) error {
	timer := time.NewTicker(time.Duration(c.cfg.Timer.IntervalSec) * time.Second)
	defer timer.Stop()
	poll := time.NewTicker(time.Duration(c.cfg.Timer.TickPollMs) * time.Millisecond)
	defer poll.Stop()

	log.Printf("[CTRL] running: %s magic=%d", c.cfg.Symbol, c.cfg.Magic)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[CTRL] stopping: %v", ctx.Err())
			return ctx.Err()
		case <-timer.C:
			c.OnTimer(ctx)
		case <-poll.C:
			tick, err := c.venue.Tick(ctx, c.cfg.Symbol)
			if err != nil {
				continue
			}
			if tick.Bid != c.lastBid {
				c.lastBid = tick.Bid
				c.OnTick(ctx)
			}
		}
	}
}

// OnTimer handles one timer event: interlocks first, then a bounded batch
// of commands, then the heartbeat.
func (c *Controller) OnTimer(ctx context.Context) {
	now := c.venue.ServerTime()

	acct, err := c.venue.Account(ctx)
	if err != nil {
		log.Printf("[CTRL] account: %v", err)
		return
	}
	positions, err := c.venue.Positions(ctx, c.identity)
	if err != nil {
		log.Printf("[CTRL] positions: %v", err)
		return
	}

	c.refreshATR(ctx)
	c.rollDay(now, acct.Equity)
	c.checkEmergency(ctx, now, acct, len(positions))

	c.drainCommands(ctx, now, acct)

	c.publishGauges(acct, len(positions))
	c.maybeHeartbeat(now, acct, len(positions))
}

// OnTick handles one price event: interlocks, then the position scan.
func (c *Controller) OnTick(ctx context.Context) {
	now := c.venue.ServerTime()

	acct, err := c.venue.Account(ctx)
	if err != nil {
		return
	}
	positions, err := c.venue.Positions(ctx, c.identity)
	if err != nil {
		return
	}

	c.refreshATR(ctx)
	c.rollDay(now, acct.Equity)
	c.checkEmergency(ctx, now, acct, len(positions))
	c.checkDaily(ctx, now, acct)

	c.managePositions(ctx, now)
	c.publishGauges(acct, len(positions))
}

func (c *Controller) refreshATR(ctx context.Context) {
	atr, err := c.venue.ATR(ctx, c.cfg.Symbol, c.tf, c.cfg.Indicator.Period)
	if err == nil && atr > 0 {
		c.cachedATR = atr
	}
}

// rollDay advances the trading-day identity. The breaker re-arms and the
// per-day mode state resets on the same boundary, exactly once.
func (c *Controller) rollDay(now time.Time, equity float64) {
	if !c.daily.Roll(now, equity) {
		return
	}
	c.breaker.Rearm(now)
	c.state.ResetDaily()
	if c.breaker.FiredToday(now) {
		// Persisted latch from a restart on the fired day.
		c.daily.ForceHalt(now)
	}
}

func (c *Controller) checkEmergency(ctx context.Context, now time.Time, acct venue.Account, open int) {
	fire := c.breaker.Check(now, guard.BreakerInputs{
		DayStartEquity: c.daily.DayStartEquity(),
		Equity:         acct.Equity,
		MarginLevel:    acct.MarginLevel,
		OpenPositions:  open,
	})
	if fire == nil {
		return
	}

	metrics.EmergencyFired.WithLabelValues(fire.Reason).Inc()
	c.daily.ForceHalt(now)
	c.notifier.Notify("EMERGENCY " + fire.Reason + ": trading halted for today")

	if fire.ClosePositions {
		c.closeAll(ctx, "emergency "+fire.Reason)
	}
}

func (c *Controller) checkDaily(ctx context.Context, now time.Time, acct venue.Account) {
	v := c.daily.Check(now, acct.Equity, c.panicInputs(ctx))
	if !v.Halted {
		return
	}

	metrics.DailyHalt.Set(1)
	c.notifier.Notify("daily loss halt: new entries blocked")

	if v.ClosePositions {
		c.closeAll(ctx, "daily loss")
	}
}

func (c *Controller) panicInputs(ctx context.Context) guard.PanicInputs {
	in := guard.PanicInputs{ATR: c.cachedATR}
	if tick, err := c.venue.Tick(ctx, c.cfg.Symbol); err == nil {
		in.SpreadPoints = tick.SpreadPoints
	}
	if rng, err := c.venue.BarRange(ctx, c.cfg.Symbol, venue.M1, 1); err == nil {
		in.PrevBarRange = rng
	}
	return in
}

// drainCommands pulls at most the configured batch from the source. A
// message that fails to decode is dropped and never blocks the rest of
// the batch.
func (c *Controller) drainCommands(ctx context.Context, now time.Time, acct venue.Account) {
	for i := 0; i < c.cfg.Timer.CommandBatch; i++ {
		raw, ok := c.source.TryRecv()
		if !ok {
			return
		}

		cmd, err := command.Decode(raw)
		if err != nil {
			c.state.DecodeFails++
			metrics.DecodeFailures.Inc()
			if rate := c.cfg.Log.DecodeSampleRate; rate > 0 && (c.state.DecodeFails-1)%rate == 0 {
				log.Printf("[CTRL] decode failure #%d: %v", c.state.DecodeFails, err)
			}
			continue
		}
		c.dispatch(ctx, now, acct, cmd)
	}
}

func (c *Controller) dispatch(ctx context.Context, now time.Time, acct venue.Account, cmd command.Command) {
	metrics.Commands.WithLabelValues(cmd.Kind.String()).Inc()

	// Routing filter: a command addressed to another symbol is ignored.
	if cmd.Symbol != "" && cmd.Symbol != c.cfg.Symbol {
		return
	}

	// Mode flags ride on every message, independent of its kind.
	if cmd.TrailMode != nil && *cmd.TrailMode != c.state.TrailMode {
		log.Printf("[CTRL] trail mode %s -> %s", c.state.TrailMode, *cmd.TrailMode)
		c.state.TrailMode = *cmd.TrailMode
	}
	if cmd.TPMode != nil && *cmd.TPMode != c.state.TPMode {
		log.Printf("[CTRL] tp mode %s -> %s", c.state.TPMode, *cmd.TPMode)
		c.state.TPMode = *cmd.TPMode
	}

	switch cmd.Kind {
	case command.KindHold:
		c.state.LastHold = now
	case command.KindClose:
		c.closeAll(ctx, "close command")
	case command.KindOrder:
		c.handleOrder(ctx, now, acct, cmd.Order)
	}
}

func (c *Controller) handleOrder(ctx context.Context, now time.Time, acct venue.Account, ord *command.Order) {
	if ord == nil {
		return
	}

	positions, err := c.venue.Positions(ctx, c.identity)
	if err != nil {
		log.Printf("[CTRL] positions: %v", err)
		return
	}

	decision := risk.Admit(c.gatePolicy(), risk.GateState{
		Now:             now,
		EmergencyHalted: c.breaker.FiredToday(now),
		CooldownUntil:   c.daily.CooldownUntil(),
		DailyHalted:     c.daily.Halted(),
		OpenPositions:   len(positions),
		CachedATR:       c.cachedATR,
	}, risk.OrderIntent{
		Action:     ord.Action,
		Multiplier: ord.Multiplier,
		ATR:        ord.ATR,
	})

	if !decision.Allowed {
		c.recordBlock(now, ord.Action, decision.Code, decision.Detail)
		return
	}
	if decision.HaltBypassed {
		log.Printf("[CTRL] daily halt bypassed for validation order")
	}

	tick, err := c.venue.Tick(ctx, c.cfg.Symbol)
	if err != nil {
		log.Printf("[CTRL] tick: %v", err)
		return
	}
	info, err := c.venue.SymbolInfo(ctx, c.cfg.Symbol)
	if err != nil {
		log.Printf("[CTRL] symbol info: %v", err)
		return
	}

	lv := exec.ComputeLevels(c.executorParams(), decision.Side, tick, info, decision.ATR, c.state.TPMode)

	sized := risk.Size(ctx, c.venue, c.cfg.Symbol, risk.SizeInputs{
		Equity:         acct.Equity,
		RiskPercent:    c.cfg.Risk.Percent,
		Side:           decision.Side,
		EntryPrice:     lv.Entry,
		StopPrice:      lv.StopLoss,
		FallbackVolume: c.cfg.Risk.FallbackVolume,
	})
	if sized.Err != nil {
		log.Printf("[CTRL] sizing fell back to %.2f: %v", sized.Volume, sized.Err)
	}

	volume := risk.FinalizeVolume(sized.Volume, decision.Multiplier,
		info.VolumeStep, info.VolumeMin, c.cfg.Risk.MaxLot)
	if volume <= 0 {
		c.recordBlock(now, ord.Action, "ZERO_VOLUME", "sized volume not positive")
		return
	}

	_, err = c.executor.Execute(ctx, exec.Request{
		Symbol:     c.cfg.Symbol,
		Side:       decision.Side,
		Volume:     volume,
		ATR:        decision.ATR,
		TPMode:     c.state.TPMode,
		Multiplier: decision.Multiplier,
		Reason:     ord.Reason,
	})
	if err != nil {
		return
	}
	metrics.Orders.WithLabelValues(decision.Side.String()).Inc()
}

func (c *Controller) recordBlock(now time.Time, action, code, detail string) {
	metrics.Blocks.WithLabelValues(code).Inc()
	log.Printf("[CTRL] blocked %s: %s (%s)", action, code, detail)
	if err := c.journal.RecordBlock(journal.BlockRecord{
		Symbol: c.cfg.Symbol,
		Action: action,
		Code:   code,
		Detail: detail,
		Time:   now,
	}); err != nil {
		log.Printf("[CTRL] journal block: %v", err)
	}
}

// closeAll force-closes every position owned by this strategy. Failures
// are logged and left for the next tick.
func (c *Controller) closeAll(ctx context.Context, reason string) {
	positions, err := c.venue.Positions(ctx, c.identity)
	if err != nil {
		log.Printf("[CTRL] positions: %v", err)
		return
	}

	for _, p := range positions {
		if err := c.venue.ClosePosition(ctx, p.Ticket, p.Volume); err != nil {
			log.Printf("[CTRL] close #%d failed: code=%d err=%v", p.Ticket, venue.Code(err), err)
			continue
		}
		metrics.Closes.WithLabelValues(reasonLabel(reason)).Inc()
		c.journalClose(ctx, p, reason, false)
	}
}

func (c *Controller) journalClose(ctx context.Context, p venue.Position, reason string, partial bool) {
	tick, _ := c.venue.Tick(ctx, c.cfg.Symbol)
	price := tick.Bid
	if p.Side == venue.Sell {
		price = tick.Ask
	}
	if err := c.journal.RecordClose(journal.CloseRecord{
		Ticket:  p.Ticket,
		Symbol:  c.cfg.Symbol,
		Volume:  p.Volume,
		Price:   price,
		Profit:  p.Profit,
		Partial: partial,
		Reason:  reason,
		Time:    c.venue.ServerTime(),
	}); err != nil {
		log.Printf("[CTRL] journal close: %v", err)
	}
}

func (c *Controller) publishGauges(acct venue.Account, open int) {
	metrics.Equity.Set(acct.Equity)
	metrics.MarginLevel.Set(acct.MarginLevel)
	metrics.OpenPositions.Set(float64(open))
	if c.daily.Halted() {
		metrics.DailyHalt.Set(1)
	} else {
		metrics.DailyHalt.Set(0)
	}
}

func (c *Controller) gatePolicy() risk.GatePolicy {
	return risk.GatePolicy{
		TradingStartHour: c.cfg.Session.TradingStartHour,
		HardCloseStart:   c.cfg.Session.HardCloseStart,
		HardCloseEnd:     c.cfg.Session.HardCloseEnd,
		HoursEnabled:     c.cfg.Session.Hours.Enabled,
		HoursStart:       c.cfg.Session.Hours.StartHour,
		HoursEnd:         c.cfg.Session.Hours.EndHour,
		MaxPositions:     c.cfg.Risk.MaxPositions,
		MultMin:          c.cfg.Orders.Multiplier.Min,
		MultMax:          c.cfg.Orders.Multiplier.Max,
		RejectAbnormal:   c.cfg.Orders.Multiplier.RejectAbnormal,
		AllowDuringHalt:  c.cfg.Orders.AllowDuringHalt,
	}
}

func (c *Controller) executorParams() exec.Params {
	return exec.Params{
		SLATRMult:       c.cfg.Orders.SLATRMult,
		TPBaseDist:      c.cfg.Orders.TPBaseDist,
		SlippageDynamic: c.cfg.Orders.Slippage.Dynamic,
		SlipBasePoints:  float64(c.cfg.Orders.Slippage.BasePoints),
		SlipMinPoints:   float64(c.cfg.Orders.Slippage.MinPoints),
		SlipMaxPoints:   float64(c.cfg.Orders.Slippage.MaxPoints),
		SlipATRFactor:   c.cfg.Orders.Slippage.ATRFactor,
		Magic:           c.cfg.Magic,
	}
}

func reasonLabel(reason string) string {
	switch reason {
	case "close command":
		return "command"
	case "daily loss":
		return "daily_loss"
	default:
		return "emergency"
	}
}

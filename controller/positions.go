package controller

import (
	"context"
	"log"
	"time"

	"github.com/rustyeddy/pilot/command"
	"github.com/rustyeddy/pilot/metrics"
	"github.com/rustyeddy/pilot/venue"
)

// managePositions runs the per-tick scan over this strategy's positions:
// partial profit-taking, breakeven move, trailing stop ratchet, and the
// take-profit ratchet while a HOLD window is open. The scan acts on a
// snapshot and re-reads authoritative state after any mutating call.
func (c *Controller) managePositions(ctx context.Context, now time.Time) {
	if c.cachedATR <= 0 {
		return
	}

	positions, err := c.venue.Positions(ctx, c.identity)
	if err != nil {
		log.Printf("[POS] positions: %v", err)
		return
	}
	if len(positions) == 0 {
		return
	}

	tick, err := c.venue.Tick(ctx, c.cfg.Symbol)
	if err != nil {
		return
	}
	info, err := c.venue.SymbolInfo(ctx, c.cfg.Symbol)
	if err != nil {
		return
	}

	for _, p := range positions {
		if c.tryPartialClose(ctx, p, tick, info) {
			// Risk is off the table; let the rest of the book breathe.
			continue
		}
		c.tryTrail(ctx, p, tick)
		if c.state.HoldActive(now, c.cfg.Manage.HoldWindowSec) {
			c.tryTPRatchet(ctx, p, tick)
		}
	}
}

// priceProfit is the position's unrealized move in price units.
func priceProfit(p venue.Position, tick venue.Tick) float64 {
	if p.Side == venue.Buy {
		return tick.Bid - p.OpenPrice
	}
	return p.OpenPrice - tick.Ask
}

// atBreakeven reports whether the stop already sits at or through the
// open price, i.e. the partial-close stage has run for this position.
func atBreakeven(p venue.Position) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == venue.Buy {
		return p.StopLoss >= p.OpenPrice
	}
	return p.StopLoss <= p.OpenPrice
}

// tryPartialClose takes the configured fraction off once profit clears
// the ATR threshold, then moves the stop beyond entry and forces the
// global trailing mode to WIDE. Returns true when it acted (successfully
// or not); the caller skips further management of this ticket this tick.
func (c *Controller) tryPartialClose(ctx context.Context, p venue.Position, tick venue.Tick, info venue.SymbolInfo) bool {
	cfg := c.cfg.Manage.Partial
	if !cfg.Enabled || atBreakeven(p) {
		return false
	}
	if priceProfit(p, tick) <= cfg.ATRMult*c.cachedATR {
		return false
	}

	closeVol := roundToStep(p.Volume*cfg.Percent/100, info.VolumeStep)
	if closeVol < info.VolumeMin || p.Volume-closeVol < info.VolumeMin {
		return false
	}

	if err := c.venue.ClosePosition(ctx, p.Ticket, closeVol); err != nil {
		log.Printf("[POS] partial close #%d failed: code=%d err=%v", p.Ticket, venue.Code(err), err)
		return true
	}
	metrics.Closes.WithLabelValues("partial").Inc()
	log.Printf("[POS] partial close #%d %.2f of %.2f", p.Ticket, closeVol, p.Volume)

	c.journalClose(ctx, venue.Position{
		Ticket: p.Ticket, Side: p.Side, Volume: closeVol,
		OpenPrice: p.OpenPrice, Profit: p.Profit,
	}, "partial profit", true)

	// The partial close succeeded; widen the trail even if the breakeven
	// move below fails.
	if c.state.TrailMode != command.ModeWide {
		log.Printf("[POS] trail mode %s -> WIDE after partial close", c.state.TrailMode)
		c.state.TrailMode = command.ModeWide
	}

	// The venue owns the position; trust only a fresh read.
	fresh, ok, err := c.venue.Position(ctx, p.Ticket)
	if err != nil || !ok {
		return true
	}

	offset := c.cfg.Manage.BreakevenPoints * info.Point
	newSL := fresh.OpenPrice + offset
	if fresh.Side == venue.Sell {
		newSL = fresh.OpenPrice - offset
	}
	if err := c.venue.ModifyPosition(ctx, fresh.Ticket, newSL, fresh.TakeProfit); err != nil {
		log.Printf("[POS] breakeven #%d failed: code=%d err=%v", fresh.Ticket, venue.Code(err), err)
		return true
	}
	metrics.Modifies.WithLabelValues("breakeven").Inc()
	return true
}

// tryTrail ratchets the stop toward price once profit clears the start
// threshold. The stop only tightens, and only by at least the configured
// step, so a jittering price cannot thrash it.
func (c *Controller) tryTrail(ctx context.Context, p venue.Position, tick venue.Tick) {
	m := c.cfg.Manage
	if priceProfit(p, tick) <= m.TrailingStartATR*c.cachedATR {
		return
	}

	dist := m.TrailingDistATR * c.cachedATR * c.state.TrailMode.TrailMult()
	step := m.TrailingStepATR * c.cachedATR

	var target float64
	improves := false
	if p.Side == venue.Buy {
		target = tick.Bid - dist
		improves = p.StopLoss <= 0 || target >= p.StopLoss+step
	} else {
		target = tick.Ask + dist
		improves = p.StopLoss <= 0 || target <= p.StopLoss-step
	}
	if !improves {
		return
	}

	if err := c.venue.ModifyPosition(ctx, p.Ticket, target, p.TakeProfit); err != nil {
		log.Printf("[POS] trail #%d failed: code=%d err=%v", p.Ticket, venue.Code(err), err)
		return
	}
	metrics.Modifies.WithLabelValues("trail").Inc()
}

// tryTPRatchet pushes the take-profit away from price in the favorable
// direction, never closer, and only by at least the configured step.
func (c *Controller) tryTPRatchet(ctx context.Context, p venue.Position, tick venue.Tick) {
	dist := c.cfg.Orders.TPBaseDist * c.cachedATR * c.state.TPMode.TPMult()
	step := c.cfg.Manage.TPTrailStepATR * c.cachedATR

	var target float64
	improves := false
	if p.Side == venue.Buy {
		target = tick.Bid + dist
		improves = p.TakeProfit <= 0 || target >= p.TakeProfit+step
	} else {
		target = tick.Ask - dist
		improves = p.TakeProfit <= 0 || target <= p.TakeProfit-step
	}
	if !improves {
		return
	}

	if err := c.venue.ModifyPosition(ctx, p.Ticket, p.StopLoss, target); err != nil {
		log.Printf("[POS] tp ratchet #%d failed: code=%d err=%v", p.Ticket, venue.Code(err), err)
		return
	}
	metrics.Modifies.WithLabelValues("tp").Inc()
}

func roundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return float64(int64(v/step+1e-9)) * step
}

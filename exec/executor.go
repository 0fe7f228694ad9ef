// Package exec turns an admitted order decision into a venue market order:
// stop-loss and take-profit placement, slippage tolerance, submission, and
// journaling of the fill.
package exec

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rustyeddy/pilot/command"
	"github.com/rustyeddy/pilot/journal"
	"github.com/rustyeddy/pilot/pkg/id"
	"github.com/rustyeddy/pilot/venue"
)

// Params is the static execution policy.
type Params struct {
	SLATRMult  float64 // stop distance in ATR units
	TPBaseDist float64 // take-profit base distance in ATR units

	SlippageDynamic bool
	SlipBasePoints  float64
	SlipMinPoints   float64
	SlipMaxPoints   float64
	SlipATRFactor   float64 // dynamic points = ATR/point * factor

	Magic int
}

// Request is one admitted order ready to submit.
type Request struct {
	Symbol     string
	Side       venue.Side
	Volume     float64
	ATR        float64
	TPMode     command.Mode
	Multiplier float64
	Reason     string
}

// Levels are the computed protective prices for a fill.
type Levels struct {
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Deviation  int
}

// ComputeLevels derives stop, take-profit, and deviation from the entry
// price and ATR. TakeProfit is zero when ATR is not positive.
func ComputeLevels(p Params, side venue.Side, tick venue.Tick, info venue.SymbolInfo, atr float64, tpMode command.Mode) Levels {
	var lv Levels

	switch side {
	case venue.Buy:
		lv.Entry = tick.Ask
	default:
		lv.Entry = tick.Bid
	}

	if atr > 0 {
		slDist := p.SLATRMult * atr
		tpDist := p.TPBaseDist * atr * tpMode.TPMult()
		if side == venue.Buy {
			lv.StopLoss = lv.Entry - slDist
			lv.TakeProfit = lv.Entry + tpDist
		} else {
			lv.StopLoss = lv.Entry + slDist
			lv.TakeProfit = lv.Entry - tpDist
		}
	}

	lv.Deviation = slippagePoints(p, info.Point, atr)
	return lv
}

// slippagePoints clamps the tolerance into [min,max] after raising the base
// by the ATR-derived dynamic component.
func slippagePoints(p Params, point, atr float64) int {
	if !p.SlippageDynamic {
		return int(p.SlipBasePoints)
	}

	dyn := 0.0
	if point > 0 && atr > 0 {
		dyn = atr / point * p.SlipATRFactor
	}

	pts := p.SlipBasePoints
	if dyn > pts {
		pts = dyn
	}
	if pts > p.SlipMaxPoints {
		pts = p.SlipMaxPoints
	}
	if pts < p.SlipMinPoints {
		pts = p.SlipMinPoints
	}
	return int(pts)
}

// Executor submits admitted orders to the venue.
type Executor struct {
	venue   venue.Venue
	journal journal.Journal
	params  Params
}

func New(v venue.Venue, j journal.Journal, p Params) *Executor {
	return &Executor{venue: v, journal: j, params: p}
}

// Execute submits one market order. Failures are logged with the venue
// result code and returned; there is no retry within the cycle.
func (e *Executor) Execute(ctx context.Context, req Request) (venue.OrderResult, error) {
	tick, err := e.venue.Tick(ctx, req.Symbol)
	if err != nil {
		return venue.OrderResult{}, fmt.Errorf("tick: %w", err)
	}
	info, err := e.venue.SymbolInfo(ctx, req.Symbol)
	if err != nil {
		return venue.OrderResult{}, fmt.Errorf("symbol info: %w", err)
	}

	lv := ComputeLevels(e.params, req.Side, tick, info, req.ATR, req.TPMode)

	res, err := e.venue.SubmitMarketOrder(ctx, venue.OrderRequest{
		Symbol:          req.Symbol,
		Side:            req.Side,
		Volume:          req.Volume,
		StopLoss:        lv.StopLoss,
		TakeProfit:      lv.TakeProfit,
		DeviationPoints: lv.Deviation,
		Magic:           e.params.Magic,
		Comment:         req.Reason,
	})
	if err != nil {
		log.Printf("[EXEC] order failed: %s %.2f %s code=%d err=%v",
			req.Side, req.Volume, req.Symbol, venue.Code(err), err)
		return venue.OrderResult{}, err
	}

	rec := journal.OrderRecord{
		OrderID:    id.New(),
		Symbol:     req.Symbol,
		Side:       req.Side.String(),
		Volume:     res.Volume,
		Price:      res.Price,
		StopLoss:   lv.StopLoss,
		TakeProfit: lv.TakeProfit,
		Multiplier: req.Multiplier,
		ATR:        req.ATR,
		Ticket:     res.Ticket,
		Reason:     req.Reason,
		Time:       tick.Time,
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if err := e.journal.RecordOrder(rec); err != nil {
		log.Printf("[EXEC] journal order: %v", err)
	}

	log.Printf("[EXEC] filled %s %.2f %s @ %.5f ticket=%d sl=%.5f tp=%.5f dev=%d",
		req.Side, res.Volume, req.Symbol, res.Price, res.Ticket, lv.StopLoss, lv.TakeProfit, lv.Deviation)
	return res, nil
}

// Package sim is an in-memory venue used by tests and dry runs. It fills
// market orders at the current quote, auto-closes positions whose stop or
// take-profit is hit, and realizes P&L into the account balance.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/pilot/venue"
)

// SymbolSpec configures one simulated instrument.
type SymbolSpec struct {
	Point            float64
	Digits           int
	VolumeStep       float64
	VolumeMin        float64
	PointValuePerLot float64 // account currency per point per 1.0 lot
}

// Venue implements venue.Venue in memory.
type Venue struct {
	mu sync.Mutex

	symbol string
	spec   SymbolSpec

	login   int64
	balance float64

	tick    venue.Tick
	hasTick bool

	now       time.Time
	gmtOffset int

	atr       map[venue.Timeframe]float64
	barRange  map[barKey]float64
	positions map[int64]*venue.Position
	nextTick  int64

	marginOverride float64 // 0 = computed (always 0 here: sim carries no leverage model)

	// failNext maps an operation name to a venue result code consumed by the
	// next call of that operation. Lets tests exercise failure paths.
	failNext map[string]int

	closed []ClosedPosition
}

type barKey struct {
	tf    venue.Timeframe
	shift int
}

// ClosedPosition records a close for test inspection.
type ClosedPosition struct {
	Ticket  int64
	Volume  float64
	Price   float64
	Profit  float64
	Partial bool
}

// New creates a sim venue for one instrument.
func New(symbol string, spec SymbolSpec, balance float64) *Venue {
	return &Venue{
		symbol:    symbol,
		spec:      spec,
		login:     10001,
		balance:   balance,
		now:       time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		atr:       make(map[venue.Timeframe]float64),
		barRange:  make(map[barKey]float64),
		positions: make(map[int64]*venue.Position),
		nextTick:  1,
		failNext:  make(map[string]int),
	}
}

// SetNow moves the simulated server clock.
func (v *Venue) SetNow(t time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = t
}

// Advance moves the clock forward by d.
func (v *Venue) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = v.now.Add(d)
}

// SetTick publishes a new quote and enforces stops/take-profits against it.
func (v *Venue) SetTick(bid, ask float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	spread := 0.0
	if v.spec.Point > 0 {
		spread = (ask - bid) / v.spec.Point
	}
	v.tick = venue.Tick{Bid: bid, Ask: ask, SpreadPoints: spread, Time: v.now}
	v.hasTick = true

	for _, p := range v.snapshotLocked() {
		mark := bid
		if p.Side == venue.Sell {
			mark = ask
		}
		switch {
		case p.StopLoss > 0 && stopHit(p, mark):
			v.closeLocked(p.Ticket, p.Volume, mark, false)
		case p.TakeProfit > 0 && takeProfitHit(p, mark):
			v.closeLocked(p.Ticket, p.Volume, mark, false)
		}
	}
}

func stopHit(p venue.Position, mark float64) bool {
	if p.Side == venue.Buy {
		return mark <= p.StopLoss
	}
	return mark >= p.StopLoss
}

func takeProfitHit(p venue.Position, mark float64) bool {
	if p.Side == venue.Buy {
		return mark >= p.TakeProfit
	}
	return mark <= p.TakeProfit
}

// SetATR fixes the indicator value reported for a timeframe.
func (v *Venue) SetATR(tf venue.Timeframe, value float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.atr[tf] = value
}

// SetBarRange fixes the high-low range reported for a bar.
func (v *Venue) SetBarRange(tf venue.Timeframe, shift int, value float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.barRange[barKey{tf, shift}] = value
}

// SetBalance rebases the account balance (equity follows as balance plus
// unrealized P&L).
func (v *Venue) SetBalance(b float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance = b
}

// SetMarginLevel overrides the reported margin level (percent).
func (v *Venue) SetMarginLevel(pct float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.marginOverride = pct
}

// FailNext makes the next call of op fail with the given venue code.
// Recognized ops: "order", "modify", "close".
func (v *Venue) FailNext(op string, code int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNext[op] = code
}

// Closed returns the close log.
func (v *Venue) Closed() []ClosedPosition {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ClosedPosition, len(v.closed))
	copy(out, v.closed)
	return out
}

func (v *Venue) takeFailLocked(op string) (int, bool) {
	code, ok := v.failNext[op]
	if ok {
		delete(v.failNext, op)
	}
	return code, ok
}

func (v *Venue) Tick(ctx context.Context, symbol string) (venue.Tick, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.hasTick || symbol != v.symbol {
		return venue.Tick{}, venue.ErrNoPrice
	}
	return v.tick, nil
}

func (v *Venue) Account(ctx context.Context) (venue.Account, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	equity := v.balance
	for _, p := range v.positions {
		equity += v.unrealizedLocked(p)
	}
	return venue.Account{
		Login:       v.login,
		Balance:     v.balance,
		Equity:      equity,
		MarginLevel: v.marginOverride,
	}, nil
}

func (v *Venue) SymbolInfo(ctx context.Context, symbol string) (venue.SymbolInfo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if symbol != v.symbol {
		return venue.SymbolInfo{}, fmt.Errorf("sim: unknown symbol %q", symbol)
	}
	return venue.SymbolInfo{
		Point:      v.spec.Point,
		Digits:     v.spec.Digits,
		VolumeStep: v.spec.VolumeStep,
		VolumeMin:  v.spec.VolumeMin,
	}, nil
}

func (v *Venue) Positions(ctx context.Context, id venue.StrategyIdentity) ([]venue.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if id.Symbol != v.symbol {
		return nil, nil
	}
	return v.snapshotLocked(), nil
}

func (v *Venue) snapshotLocked() []venue.Position {
	out := make([]venue.Position, 0, len(v.positions))
	for _, p := range v.positions {
		cp := *p
		cp.Profit = v.unrealizedLocked(p)
		out = append(out, cp)
	}
	return out
}

func (v *Venue) Position(ctx context.Context, ticket int64) (venue.Position, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.positions[ticket]
	if !ok {
		return venue.Position{}, false, nil
	}
	cp := *p
	cp.Profit = v.unrealizedLocked(p)
	return cp, true, nil
}

func (v *Venue) SubmitMarketOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if code, ok := v.takeFailLocked("order"); ok {
		return venue.OrderResult{}, &venue.Error{Op: "order", Code: code, Msg: "injected failure"}
	}
	if !v.hasTick {
		return venue.OrderResult{}, venue.ErrNoPrice
	}
	if req.Volume <= 0 {
		return venue.OrderResult{}, &venue.Error{Op: "order", Code: venue.CodeNoMoney, Msg: "non-positive volume"}
	}

	fill := v.tick.Ask
	if req.Side == venue.Sell {
		fill = v.tick.Bid
	}

	ticket := v.nextTick
	v.nextTick++
	v.positions[ticket] = &venue.Position{
		Ticket:     ticket,
		Side:       req.Side,
		Volume:     req.Volume,
		OpenPrice:  fill,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenTime:   v.now,
	}

	return venue.OrderResult{Ticket: ticket, Price: fill, Volume: req.Volume}, nil
}

func (v *Venue) ModifyPosition(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if code, ok := v.takeFailLocked("modify"); ok {
		return &venue.Error{Op: "modify", Code: code, Msg: "injected failure"}
	}
	p, ok := v.positions[ticket]
	if !ok {
		return &venue.Error{Op: "modify", Code: venue.CodePositionGone, Msg: "position not found"}
	}
	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	return nil
}

func (v *Venue) ClosePosition(ctx context.Context, ticket int64, volume float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if code, ok := v.takeFailLocked("close"); ok {
		return &venue.Error{Op: "close", Code: code, Msg: "injected failure"}
	}
	p, ok := v.positions[ticket]
	if !ok {
		return &venue.Error{Op: "close", Code: venue.CodePositionGone, Msg: "position not found"}
	}
	if volume <= 0 || volume > p.Volume {
		return &venue.Error{Op: "close", Code: venue.CodeInvalidStops, Msg: "bad close volume"}
	}

	mark := v.tick.Bid
	if p.Side == venue.Sell {
		mark = v.tick.Ask
	}
	v.closeLocked(ticket, volume, mark, volume < p.Volume)
	return nil
}

func (v *Venue) closeLocked(ticket int64, volume, price float64, partial bool) {
	p, ok := v.positions[ticket]
	if !ok {
		return
	}
	pl := v.profitLocked(p.Side, volume, p.OpenPrice, price)
	v.balance += pl
	v.closed = append(v.closed, ClosedPosition{
		Ticket: ticket, Volume: volume, Price: price, Profit: pl, Partial: partial,
	})
	if partial {
		p.Volume -= volume
		return
	}
	delete(v.positions, ticket)
}

func (v *Venue) ProfitForTrade(ctx context.Context, symbol string, side venue.Side, volume, openPrice, closePrice float64) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if symbol != v.symbol {
		return 0, fmt.Errorf("sim: unknown symbol %q", symbol)
	}
	return v.profitLocked(side, volume, openPrice, closePrice), nil
}

func (v *Venue) profitLocked(side venue.Side, volume, openPrice, closePrice float64) float64 {
	if v.spec.Point <= 0 {
		return 0
	}
	points := (closePrice - openPrice) / v.spec.Point
	if side == venue.Sell {
		points = -points
	}
	return points * v.spec.PointValuePerLot * volume
}

func (v *Venue) unrealizedLocked(p *venue.Position) float64 {
	if !v.hasTick {
		return 0
	}
	mark := v.tick.Bid
	if p.Side == venue.Sell {
		mark = v.tick.Ask
	}
	return v.profitLocked(p.Side, p.Volume, p.OpenPrice, mark)
}

func (v *Venue) ATR(ctx context.Context, symbol string, tf venue.Timeframe, period int) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.atr[tf], nil
}

func (v *Venue) BarRange(ctx context.Context, symbol string, tf venue.Timeframe, shift int) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.barRange[barKey{tf, shift}], nil
}

func (v *Venue) ServerTime() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Venue) GMTOffsetSec() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gmtOffset
}

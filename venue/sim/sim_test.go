package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/pilot/venue"
)

func goldSpec() SymbolSpec {
	return SymbolSpec{
		Point:            0.01,
		Digits:           2,
		VolumeStep:       0.01,
		VolumeMin:        0.01,
		PointValuePerLot: 1.0,
	}
}

func TestOrderFillAndProfit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := New("GOLD", goldSpec(), 10000)
	v.SetTick(2000.00, 2000.40)

	res, err := v.SubmitMarketOrder(ctx, venue.OrderRequest{
		Symbol: "GOLD", Side: venue.Buy, Volume: 1.0,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2000.40, res.Price, 1e-9)

	// 100 points in favor: bid moves to 2001.40.
	v.SetTick(2001.40, 2001.80)
	p, ok, err := v.Position(ctx, res.Ticket)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100.0, p.Profit, 1e-9)

	acct, err := v.Account(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10100.0, acct.Equity, 1e-9)
	assert.InDelta(t, 10000.0, acct.Balance, 1e-9)
}

func TestPartialCloseRealizesPL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := New("GOLD", goldSpec(), 10000)
	v.SetTick(2000.00, 2000.10)

	res, err := v.SubmitMarketOrder(ctx, venue.OrderRequest{
		Symbol: "GOLD", Side: venue.Buy, Volume: 1.0,
	})
	require.NoError(t, err)

	v.SetTick(2002.10, 2002.20)
	require.NoError(t, v.ClosePosition(ctx, res.Ticket, 0.5))

	p, ok, err := v.Position(ctx, res.Ticket)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.5, p.Volume, 1e-9)

	acct, err := v.Account(ctx)
	require.NoError(t, err)
	// 200 points on 0.5 lots realized.
	assert.InDelta(t, 10100.0, acct.Balance, 1e-9)

	closed := v.Closed()
	require.Len(t, closed, 1)
	assert.True(t, closed[0].Partial)
}

func TestStopLossAutoClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := New("GOLD", goldSpec(), 10000)
	v.SetTick(2000.00, 2000.10)

	res, err := v.SubmitMarketOrder(ctx, venue.OrderRequest{
		Symbol: "GOLD", Side: venue.Buy, Volume: 1.0, StopLoss: 1995.00,
	})
	require.NoError(t, err)

	v.SetTick(1994.90, 1995.00)

	_, ok, err := v.Position(ctx, res.Ticket)
	require.NoError(t, err)
	assert.False(t, ok, "position should be stopped out")

	closed := v.Closed()
	require.Len(t, closed, 1)
	assert.InDelta(t, 1994.90, closed[0].Price, 1e-9)
}

func TestInjectedFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := New("GOLD", goldSpec(), 10000)
	v.SetTick(2000.00, 2000.10)

	v.FailNext("order", venue.CodeMarketClosed)
	_, err := v.SubmitMarketOrder(ctx, venue.OrderRequest{Symbol: "GOLD", Side: venue.Buy, Volume: 1})
	require.Error(t, err)
	assert.Equal(t, venue.CodeMarketClosed, venue.Code(err))

	// Failure is consumed; the next order succeeds.
	_, err = v.SubmitMarketOrder(ctx, venue.OrderRequest{Symbol: "GOLD", Side: venue.Buy, Volume: 1})
	require.NoError(t, err)
}

func TestProfitForTradeSides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	v := New("GOLD", goldSpec(), 10000)

	buy, err := v.ProfitForTrade(ctx, "GOLD", venue.Buy, 2.0, 2000.00, 1999.00)
	require.NoError(t, err)
	assert.InDelta(t, -200.0, buy, 1e-9)

	sell, err := v.ProfitForTrade(ctx, "GOLD", venue.Sell, 2.0, 2000.00, 1999.00)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, sell, 1e-9)
}

package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/rustyeddy/pilot/journal"
	"github.com/rustyeddy/pilot/metrics"
	"github.com/rustyeddy/pilot/venue"
)

// heartbeat is the fixed wire schema the decision engine expects.
type heartbeat struct {
	Type              string  `json:"type"`
	TS                string  `json:"ts"`
	TradeServerTS     string  `json:"trade_server_ts"`
	GMTTS             string  `json:"gmt_ts"`
	ServerGMTOffset   int     `json:"server_gmt_offset_sec"`
	Symbol            string  `json:"symbol"`
	Login             int64   `json:"login"`
	OK                bool    `json:"ok"`
	Equity            float64 `json:"equity"`
	Balance           float64 `json:"balance"`
	Positions         int     `json:"positions"`
	Halt              bool    `json:"halt"`
	Magic             int     `json:"magic"`
	DeserializeFailed int     `json:"zmq_deser_fail"`
	HBSendFailed      int     `json:"hb_send_fail"`
}

// maybeHeartbeat emits a liveness report, coalesced to the configured
// minimum interval. Send failures are counted and warned about at most
// once per cooldown; they never affect the loop.
func (c *Controller) maybeHeartbeat(now time.Time, acct venue.Account, positions int) {
	interval := time.Duration(c.cfg.Heartbeat.IntervalSec) * time.Second
	if !c.state.lastHeartbeat.IsZero() && now.Sub(c.state.lastHeartbeat) < interval {
		return
	}
	c.state.lastHeartbeat = now

	if err := c.journal.RecordEquity(journal.EquitySnapshot{
		Time:        now,
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		MarginLevel: acct.MarginLevel,
		Positions:   positions,
		Halted:      c.daily.Halted(),
	}); err != nil {
		log.Printf("[HB] journal equity: %v", err)
	}

	serverTime := c.venue.ServerTime()
	hb := heartbeat{
		Type:              "HEARTBEAT",
		TS:                now.Format(time.RFC3339),
		TradeServerTS:     serverTime.Format(time.RFC3339),
		GMTTS:             serverTime.UTC().Format(time.RFC3339),
		ServerGMTOffset:   c.venue.GMTOffsetSec(),
		Symbol:            c.cfg.Symbol,
		Login:             acct.Login,
		OK:                true,
		Equity:            acct.Equity,
		Balance:           acct.Balance,
		Positions:         positions,
		Halt:              c.daily.Halted(),
		Magic:             c.cfg.Magic,
		DeserializeFailed: c.state.DecodeFails,
		HBSendFailed:      c.state.HBSendFails,
	}

	payload, err := json.Marshal(hb)
	if err != nil {
		log.Printf("[HB] marshal: %v", err)
		return
	}

	if err := c.sink.Send(payload); err != nil {
		c.state.HBSendFails++
		metrics.Heartbeats.WithLabelValues("fail").Inc()
		if c.state.lastHBFailLog.IsZero() || now.Sub(c.state.lastHBFailLog) > time.Minute {
			c.state.lastHBFailLog = now
			log.Printf("[HB] send failed (%d total): %v", c.state.HBSendFails, err)
		}
		return
	}
	metrics.Heartbeats.WithLabelValues("ok").Inc()
}

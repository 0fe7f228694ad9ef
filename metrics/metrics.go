// Package metrics exposes the controller's Prometheus series.
//
// Primary series:
//   - pilot_commands_total{kind}        – commands decoded, by kind
//   - pilot_decode_failures_total       – dropped undecodable messages
//   - pilot_orders_total{side}          – market orders filled
//   - pilot_blocks_total{code}          – orders blocked by the admission gate
//   - pilot_closes_total{reason}        – position closes by reason
//   - pilot_modifies_total{kind}        – stop/take-profit ratchets applied
//   - pilot_equity                      – equity snapshot (gauge)
//   - pilot_margin_level                – margin level percent (gauge)
//   - pilot_open_positions              – positions owned by this strategy
//   - pilot_daily_halt                  – 1 while new entries are halted
//   - pilot_emergency_fired_total{reason} – breaker trips
//   - pilot_heartbeats_total{status}    – heartbeat sends (ok|fail)
//
// All series are registered in init() and served at /metrics by the ops
// HTTP server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_commands_total",
			Help: "Commands decoded, by kind",
		},
		[]string{"kind"},
	)

	DecodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pilot_decode_failures_total",
			Help: "Inbound messages dropped because they did not decode",
		},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_orders_total",
			Help: "Market orders filled",
		},
		[]string{"side"},
	)

	Blocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_blocks_total",
			Help: "Orders blocked by the admission gate, by block code",
		},
		[]string{"code"},
	)

	Closes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_closes_total",
			Help: "Position closes, by reason",
		},
		[]string{"reason"},
	)

	Modifies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_modifies_total",
			Help: "Protective level ratchets applied (trail|tp|breakeven)",
		},
		[]string{"kind"},
	)

	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pilot_equity",
			Help: "Account equity snapshot",
		},
	)

	MarginLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pilot_margin_level",
			Help: "Account margin level percent",
		},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pilot_open_positions",
			Help: "Open positions owned by this strategy",
		},
	)

	DailyHalt = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pilot_daily_halt",
			Help: "1 while the daily guard blocks new entries",
		},
	)

	EmergencyFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_emergency_fired_total",
			Help: "Emergency breaker trips, by reason",
		},
		[]string{"reason"},
	)

	Heartbeats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pilot_heartbeats_total",
			Help: "Heartbeat sends (ok|fail)",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		Commands,
		DecodeFailures,
		Orders,
		Blocks,
		Closes,
		Modifies,
		Equity,
		MarginLevel,
		OpenPositions,
		DailyHalt,
		EmergencyFired,
		Heartbeats,
	)
}

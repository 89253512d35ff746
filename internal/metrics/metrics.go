// Package metrics exposes the engine's operation counters through the
// process-global prometheus registry, served by the command glue when a
// metrics address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexkv_ops_total",
			Help: "Engine operations processed, by operation name.",
		},
		[]string{"op"},
	)

	TxnTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexkv_txn_total",
			Help: "Transactions finished, by outcome (commit or abort).",
		},
		[]string{"outcome"},
	)

	WALAppendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkv_wal_append_errors_total",
			Help: "Log appends that failed after the in-memory apply.",
		},
	)

	ReplayedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkv_replayed_records_total",
			Help: "Log records applied during startup replay.",
		},
	)

	SkippedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexkv_replay_skipped_records_total",
			Help: "Torn or corrupt trailing log records skipped during replay.",
		},
	)

	IndexSlots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexkv_index_slots",
			Help: "Index slots held in memory, tombstones included.",
		},
	)
)

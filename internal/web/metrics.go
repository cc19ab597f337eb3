package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cellar-network/cellar/internal/types"
	"github.com/cellar-network/cellar/internal/utils"
)

var (
	depositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cellar_share_events_total",
		Help: "Share-ledger events processed, by type.",
	}, []string{"vault", "type"})

	rebalancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cellar_rebalances_total",
		Help: "CallOnAdaptor invocations, by outcome.",
	}, []string{"vault", "result"})

	totalAssetsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cellar_total_assets",
		Help: "Vault total assets in base units, as of the last rebalance.",
	}, []string{"vault"})
)

// MetricsRecorder feeds vault receipts into the Prometheus registry served
// on /metrics.
type MetricsRecorder struct {
	vault     string
	precision int
}

// NewMetricsRecorder labels all series with the vault name; precision is
// the base asset's decimal count, used to scale the total-assets gauge.
func NewMetricsRecorder(vault string, precision int) *MetricsRecorder {
	return &MetricsRecorder{vault: vault, precision: precision}
}

func (m *MetricsRecorder) RecordEvent(event types.VaultEvent) {
	depositsTotal.WithLabelValues(m.vault, string(event.Type)).Inc()
}

func (m *MetricsRecorder) RecordRebalance(snapshot types.RebalanceSnapshot) {
	result := "committed"
	if !snapshot.Success {
		result = "reverted"
	}
	rebalancesTotal.WithLabelValues(m.vault, result).Inc()

	if total, err := utils.IntToFloat64(snapshot.PostTotalAssets, m.precision); err == nil {
		totalAssetsGauge.WithLabelValues(m.vault).Set(total)
	}
}

package sheetsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artis_sync_batches_total",
		Help: "Sync batches finished, by category and final status.",
	}, []string{"sync_type", "status"})

	rowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artis_sync_rows_ingested_total",
		Help: "Ledger transactions created by sync batches, by category.",
	}, []string{"sync_type"})
)

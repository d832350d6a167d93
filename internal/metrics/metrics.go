package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfc_reconciliation_cycles_total",
		Help: "Total reconciliation cycles started.",
	})
	UpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfc_rule_updates_total",
		Help: "Total firewall rule set replacements issued.",
	})
	InSyncTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hfc_in_sync_total",
		Help: "Total account reconciliations that required no update.",
	})
	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfc_reconciliation_failures_total",
		Help: "Total per-account reconciliation failures by stage.",
	}, []string{"stage"})
	DiscoveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hfc_discovery_failures_total",
		Help: "Total public address discovery failures by family.",
	}, []string{"family"})
	DesiredRules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hfc_desired_rules",
		Help: "Number of rules in the most recently computed desired state.",
	})
	DesiredSources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hfc_desired_sources",
		Help: "Number of source networks in the most recently resolved address set.",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics listener failed", "error", err)
	}
}

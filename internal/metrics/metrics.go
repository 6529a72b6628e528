// Package metrics exposes Prometheus instrumentation for sync runs.
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
	// Acquisitions counts finished acquisitions by result ("success", "no_format", "fetch", "transcode", "store").
	Acquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortsync_acquisitions_total",
		Help: "Finished acquisitions by result",
	}, []string{"result"})

	// AcquisitionDuration tracks wall time of successful acquisitions.
	AcquisitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shortsync_acquisition_duration_seconds",
		Help:    "Duration of successful download and transcode of one video",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
	})

	// ListingFailures counts listing views that failed and were treated as empty.
	ListingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortsync_listing_failures_total",
		Help: "Listing views that failed",
	}, []string{"view"})

	// ChannelRuns counts channel runs by result ("ok", "error").
	ChannelRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortsync_channel_runs_total",
		Help: "Channel runs by result",
	}, []string{"result"})

	LastBatchTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shortsync_last_batch_timestamp_seconds",
		Help: "Unix time the last batch finished",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

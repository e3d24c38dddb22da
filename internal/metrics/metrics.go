// Package metrics provides Prometheus metrics for wikifs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wikifs/internal/logging"
)

var metricsLogger = logging.GetLogger().WithPrefix("metrics")

var (
	// Filesystem operation metrics
	fsOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifs_fs_operations_total",
			Help: "Total filesystem operations by operation and result",
		},
		[]string{"op", "result"},
	)

	fsOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikifs_fs_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	droppedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifs_dropped_writes_total",
			Help: "Writes accepted from the kernel but not stored remotely",
		},
		[]string{"source"},
	)

	// Remote store metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifs_remote_requests_total",
			Help: "Total REST requests by method and status",
		},
		[]string{"method", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wikifs_remote_request_duration_seconds",
			Help:    "REST request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Sync metrics
	syncFilesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wikifs_sync_files_written_total",
			Help: "Files written to the mirrored directory by full syncs",
		},
	)

	syncPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wikifs_sync_pushes_total",
			Help: "Local edits pushed to the store by kind and result",
		},
		[]string{"kind", "result"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wikifs_sync_duration_seconds",
			Help:    "Full sync duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	managedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wikifs_managed_files",
			Help: "Number of files the sync engine pushes on change",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	metricsLogger.Info("Serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordFSOp records a filesystem operation.
func RecordFSOp(op string, duration time.Duration, err error) {
	fsOpsTotal.WithLabelValues(op, result(err)).Inc()
	fsOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordDroppedWrite records a write that was acknowledged but lost.
func RecordDroppedWrite(source string) {
	droppedWrites.WithLabelValues(source).Inc()
}

// RecordRemoteRequest records a REST request. Status 0 means the request
// never got an answer.
func RecordRemoteRequest(method string, status int, duration time.Duration) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
	}
	remoteRequestsTotal.WithLabelValues(method, label).Inc()
	remoteRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSyncFileWritten records one file written by a full sync.
func RecordSyncFileWritten() {
	syncFilesWritten.Inc()
}

// RecordSyncPush records one pushed local edit.
func RecordSyncPush(kind string, err error) {
	syncPushesTotal.WithLabelValues(kind, result(err)).Inc()
}

// RecordSync records a full sync duration.
func RecordSync(duration time.Duration) {
	syncDuration.Observe(duration.Seconds())
}

// SetManagedFiles sets the managed file gauge.
func SetManagedFiles(count int) {
	managedFiles.Set(float64(count))
}

// DroppedWrites returns the dropped write counter for a source.
func DroppedWrites(source string) prometheus.Counter {
	return droppedWrites.WithLabelValues(source)
}

// SyncPushes returns the push counter for a kind and result label.
func SyncPushes(kind, result string) prometheus.Counter {
	return syncPushesTotal.WithLabelValues(kind, result)
}

// FSOps returns the operation counter for an op and result label.
func FSOps(op, result string) prometheus.Counter {
	return fsOpsTotal.WithLabelValues(op, result)
}

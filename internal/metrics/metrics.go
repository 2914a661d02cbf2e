package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_librarian_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_librarian_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Index metrics
var (
	IndexQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_index_queries_total",
			Help: "Total number of index queries",
		},
		[]string{"operation", "status"},
	)

	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_librarian_index_query_duration_seconds",
			Help:    "Index query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	IndexConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_librarian_index_connections_open",
			Help: "Number of open index database connections",
		},
	)

	HashCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_hash_cache_lookups_total",
			Help: "Hash cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
)

// Ingestion metrics
var (
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_ingest_files_total",
			Help: "Files processed by ingestion, by outcome (imported, duplicate, rejected)",
		},
		[]string{"outcome"},
	)

	IngestRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_ingest_rejections_total",
			Help: "Rejected files by taxonomy reason",
		},
		[]string{"reason"},
	)

	IngestTransactionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_librarian_ingest_transaction_duration_seconds",
			Help:    "Duration of a single file ingestion transaction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	IngestRollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_librarian_ingest_rollbacks_total",
			Help: "Ingestion transactions that rolled back staged artifacts",
		},
	)

	IngestBytesCopied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_librarian_ingest_bytes_copied_total",
			Help: "Bytes copied into staging by ingestion",
		},
	)

	NormalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_normalizations_total",
			Help: "Orientation normalization results (baked, stripped, skipped, noop)",
		},
		[]string{"result"},
	)
)

// Reconciliation metrics
var (
	ReconBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_librarian_recon_batches_total",
			Help: "Total number of reconciliation batches started",
		},
	)

	ReconIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_librarian_recon_running",
			Help: "Whether a batch is currently running (1 = running, 0 = idle)",
		},
	)

	ReconLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_librarian_recon_last_run_duration_seconds",
			Help: "Duration of the last completed batch in seconds",
		},
	)

	ReconSubtreesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_librarian_recon_subtrees_removed_total",
			Help: "Foreign source subtrees removed after full consumption",
		},
	)
)

// External tool metrics
var (
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_tool_invocations_total",
			Help: "External tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	ToolInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_librarian_tool_invocation_duration_seconds",
			Help:    "External tool invocation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)
)

// Backup metrics
var (
	BackupSnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_backup_snapshots_total",
			Help: "Index snapshots by status (created, failed, pruned)",
		},
		[]string{"status"},
	)
)

// Filesystem retry metrics (NFS resilience)
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_filesystem_stale_errors_total",
			Help: "Stale NFS file handle errors by operation",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_librarian_filesystem_retry_failures_total",
			Help: "Filesystem operations that exhausted their retries",
		},
		[]string{"operation"},
	)
)

// Memory pressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_librarian_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_librarian_memory_paused",
			Help: "Whether batch processing is paused for memory pressure (1 = paused)",
		},
	)
)

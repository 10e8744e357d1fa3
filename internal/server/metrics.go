package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archivum",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method and status.",
	}, []string{"method", "status"})

	filesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "archivum",
		Subsystem: "ingest",
		Name:      "files_total",
		Help:      "Scanned files accepted through the batch endpoint.",
	})

	scansCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archivum",
		Subsystem: "ingest",
		Name:      "scans_completed_total",
		Help:      "Scan completions, by final source status.",
	}, []string{"status"})
)

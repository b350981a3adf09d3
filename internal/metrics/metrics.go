// Package metrics publishes agent activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovsenv/ovsenv"
	isync "github.com/ovsenv/ovsenv/internal/sync"
)

var (
	scansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ovsenv_scans_total",
		Help: "Total number of completed directory scans.",
	})

	scanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ovsenv_scan_duration_seconds",
		Help:    "Duration of directory scans in seconds.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ovsenv_events_total",
		Help: "Total number of observed environment events by name.",
	}, []string{"event"})

	serviceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ovsenv_service_up",
		Help: "Whether a daemon with a pidfile has a live process.",
	}, []string{"service"})

	databaseSizeBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ovsenv_database_size_bytes",
		Help: "Size in bytes of each database file in the database directory.",
	}, []string{"database"})

	// Label values previously written to the vector metrics, swept when a
	// snapshot no longer contains them.
	serviceLabels  isync.RWMutexMap[bool]
	databaseLabels isync.RWMutexMap[bool]
)

// ObserveScan records a completed directory scan and its duration.
func ObserveScan(d time.Duration) {
	scansTotal.Inc()
	scanDuration.Observe(d.Seconds())
}

// ObserveEvents counts each observed environment event by name.
func ObserveEvents(events []ovsenv.EnvironmentEvent) {
	for _, e := range events {
		eventsTotal.WithLabelValues(string(e.Name)).Inc()
	}
}

// UpdateSnapshot refreshes the per-service and per-database gauges from snap.
// Gauges for services and databases absent from snap are deleted.
func UpdateSnapshot(snap *ovsenv.Snapshot) {
	seenServices := make(map[string]bool)
	for _, service := range snap.Services {
		var up float64
		if service.Alive {
			up = 1
		}
		serviceUp.WithLabelValues(service.Name).Set(up)
		serviceLabels.Set(service.Name, true)
		seenServices[service.Name] = true
	}
	sweep(&serviceLabels, seenServices, func(name string) {
		serviceUp.DeleteLabelValues(name)
	})

	seenDatabases := make(map[string]bool)
	for _, database := range snap.Databases {
		databaseSizeBytes.WithLabelValues(database.Path).Set(float64(database.Size))
		databaseLabels.Set(database.Path, true)
		seenDatabases[database.Path] = true
	}
	sweep(&databaseLabels, seenDatabases, func(path string) {
		databaseSizeBytes.DeleteLabelValues(path)
	})
}

// sweep deletes the label values in m that are not in seen. The stale keys
// are collected under the read lock and deleted afterwards; Visit must not
// write-lock the map it is visiting.
func sweep(m *isync.RWMutexMap[bool], seen map[string]bool, del func(string)) {
	var stale []string
	m.Visit(func(k string, v bool) {
		if !seen[k] {
			stale = append(stale, k)
		}
	})
	for _, k := range stale {
		del(k)
		m.Del(k)
	}
}

// ListenAndServe starts an HTTP server on addr serving the collected metrics
// on /metrics.
func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("serving metrics on %v", addr)
	return http.ListenAndServe(addr, mux)
}

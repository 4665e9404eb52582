package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"callIndexer/internal/model"
)

// Cycle results.
const (
	CycleOK         = "ok"
	CycleIdle       = "idle"
	CycleRPCError   = "rpc_error"
	CycleStoreError = "store_error"
	CycleCancelled  = "cancelled"
)

// Event results.
const (
	EventStored    = "stored"
	EventDuplicate = "duplicate"
	EventDropped   = "dropped"
)

var (
	initOnce sync.Once

	cyclesCounter        *prometheus.CounterVec
	eventsCounter        *prometheus.CounterVec
	notificationsCounter *prometheus.CounterVec
	ticksSkippedCounter  prometheus.Counter
	checkpointGauge      prometheus.Gauge
	cycleDurationMetric  prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		cyclesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_cycles_total",
				Help: "Total number of poll cycles by result.",
			},
			[]string{"result"},
		)

		eventsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_events_total",
				Help: "Total number of fetched events by kind and result.",
			},
			[]string{"kind", "result"},
		)

		notificationsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_notifications_total",
				Help: "Total number of outbound notifications by type and result.",
			},
			[]string{"type", "result"},
		)

		ticksSkippedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "indexer_ticks_skipped_total",
				Help: "Ticks dropped because a cycle was still running.",
			},
		)

		checkpointGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexer_checkpoint_ledger",
				Help: "Last fully processed ledger.",
			},
		)

		cycleDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "indexer_cycle_duration_seconds",
				Help:    "Duration of poll cycles in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			cyclesCounter,
			eventsCounter,
			notificationsCounter,
			ticksSkippedCounter,
			checkpointGauge,
			cycleDurationMetric,
		)

		for _, result := range []string{CycleOK, CycleIdle, CycleRPCError, CycleStoreError, CycleCancelled} {
			cyclesCounter.WithLabelValues(result)
		}
		for _, kind := range model.AllEventKinds() {
			eventsCounter.WithLabelValues(string(kind), EventStored)
		}
	})
}

func IncCycle(result string) {
	Init()
	cyclesCounter.WithLabelValues(result).Inc()
}

func IncEvent(kind, result string) {
	Init()
	if kind == "" {
		kind = "unknown"
	}
	eventsCounter.WithLabelValues(kind, result).Inc()
}

func IncNotification(kind, result string) {
	Init()
	notificationsCounter.WithLabelValues(kind, result).Inc()
}

func IncTickSkipped() {
	Init()
	ticksSkippedCounter.Inc()
}

func SetCheckpoint(ledger uint32) {
	Init()
	checkpointGauge.Set(float64(ledger))
}

func ObserveCycleDuration(d time.Duration) {
	Init()
	cycleDurationMetric.Observe(d.Seconds())
}

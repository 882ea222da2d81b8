package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "workouts_created_total",
		Help:      "Workouts created, by kind.",
	}, []string{"kind"})
	workoutsEdited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "workouts_edited_total",
		Help:      "Successful single-field edits, by field.",
	}, []string{"field"})
	workoutsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "workouts_deleted_total",
		Help:      "Workouts deleted.",
	})
	validationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "validation_failures_total",
		Help:      "Rejected create or edit requests, by operation.",
	}, []string{"operation"})
	persistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "persistence",
		Name:      "write_failures_total",
		Help:      "Failed writes of the workout blob.",
	})
	restoreFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "persistence",
		Name:      "restore_failures_total",
		Help:      "Persisted blobs that could not be decoded.",
	})
	workoutsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "workouts",
		Help:      "Workouts currently held in memory.",
	})
)

func init() {
	prometheus.MustRegister(workoutsCreated, workoutsEdited, workoutsDeleted,
		validationFailures, persistFailures, restoreFailures, workoutsStored)
}

// RecordWorkoutCreated counts a created workout of the given kind.
func RecordWorkoutCreated(kind string) {
	workoutsCreated.WithLabelValues(kind).Inc()
}

// RecordWorkoutEdited counts an applied edit.
func RecordWorkoutEdited(field string) {
	workoutsEdited.WithLabelValues(field).Inc()
}

func RecordWorkoutDeleted() {
	workoutsDeleted.Inc()
}

// RecordValidationFailure counts a rejected create or edit.
func RecordValidationFailure(operation string) {
	validationFailures.WithLabelValues(operation).Inc()
}

func RecordPersistFailure() {
	persistFailures.Inc()
}

func RecordRestoreFailure() {
	restoreFailures.Inc()
}

// SetWorkoutsStored updates the in-memory collection size gauge.
func SetWorkoutsStored(n int) {
	workoutsStored.Set(float64(n))
}

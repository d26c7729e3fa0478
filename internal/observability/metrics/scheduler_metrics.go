package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sellerflow/internal/errs"
	"github.com/smallbiznis/sellerflow/pkg/db"
	"gorm.io/gorm"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonForbidden            = "forbidden"
	SchedulerJobReasonConflict             = "conflict"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonLocked = "lock_held"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeAuthorization    = "authorization"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	LockResourceApprovalRequests = "approval_requests"
	LockResourceQuotes           = "quotes"
	LockResourceOutbox           = "outbound_events"
)

// SchedulerMetrics captures background job health for the approval sweeps
// and the outbound dispatcher.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobOutcomes    *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	runLoopLag     prometheus.Observer
	// lockWait is curried per resource up front; there are only three
	lockWait map[string]prometheus.Observer
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics with unlabeled defaults.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the process-wide scheduler metrics registered on
// the default registerer. The first call wins.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = NewSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

type schedulerCollectors struct {
	registerer prometheus.Registerer
	labels     prometheus.Labels
}

func (c schedulerCollectors) counter(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "sellerflow",
		Subsystem:   "scheduler",
		Name:        name,
		Help:        help,
		ConstLabels: c.labels,
	}, labels)
	c.registerer.MustRegister(vec)
	return vec
}

func (c schedulerCollectors) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "sellerflow",
		Subsystem:   "scheduler",
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: c.labels,
	}, labels)
	c.registerer.MustRegister(vec)
	return vec
}

// NewSchedulerMetrics registers the scheduler collectors on registerer.
func NewSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	c := schedulerCollectors{
		registerer: registerer,
		labels: prometheus.Labels{
			"service": valueOr(cfg.ServiceName, "sellerflow"),
			"env":     valueOr(cfg.Environment, "unknown"),
		},
	}

	lockWait := c.histogram("db_lock_wait_seconds", "Time spent waiting for the job's advisory lock.",
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}, "resource")
	m := &SchedulerMetrics{
		jobRuns: c.counter("job_runs_total", "Scheduler job runs by name.", "job"),
		jobDuration: c.histogram("job_duration_seconds", "Scheduler job latency.",
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}, "job"),
		jobTimeouts:    c.counter("job_timeouts_total", "Scheduler jobs cut off by their run timeout.", "job"),
		jobErrors:      c.counter("job_errors_total", "Scheduler job errors by low-cardinality reason.", "job", "reason"),
		jobOutcomes:    c.counter("job_outcomes_total", "Records a job moved, by outcome (expired, escalated, delivered, failed).", "job", "outcome"),
		batchProcessed: c.counter("batch_processed_total", "Items handled per job and resource.", "job", "resource"),
		batchDeferred:  c.counter("batch_deferred_total", "Scheduler runs skipped by reason.", "job", "reason"),
		runLoopLag: c.histogram("runloop_lag_seconds", "Scheduler run loop lag beyond the configured interval.",
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}).WithLabelValues(),
		lockWait: make(map[string]prometheus.Observer, 3),
	}
	for _, resource := range []string{LockResourceApprovalRequests, LockResourceQuotes, LockResourceOutbox} {
		m.lockWait[resource] = lockWait.WithLabelValues(resource)
	}
	return m
}

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

// IncJobError counts err under its classified reason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m != nil && err != nil {
		m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
	}
}

// AddJobOutcome counts records a job moved to outcome, for example approval
// requests escalated by the expiry sweep.
func (m *SchedulerMetrics) AddJobOutcome(job, outcome string, count int) {
	if m != nil && count > 0 {
		m.jobOutcomes.WithLabelValues(job, outcome).Add(float64(count))
	}
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

// ObserveRunLoopLag records how late a tick started; negative lag counts as zero.
func (m *SchedulerMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(lag, 0).Seconds())
	}
}

// ObserveDBLockWait records how long a job waited for its lease. Unknown
// resources are dropped to keep the label set fixed.
func (m *SchedulerMetrics) ObserveDBLockWait(resource string, wait time.Duration) {
	if m == nil {
		return
	}
	if observer, ok := m.lockWait[resource]; ok {
		observer.Observe(wait.Seconds())
	}
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case isDeadline(err):
		return SchedulerErrorTypeDeadlineExceeded
	case errors.Is(err, errs.ErrPermission):
		return SchedulerErrorTypeAuthorization
	case isDBError(err):
		return SchedulerErrorTypeDB
	default:
		return SchedulerErrorTypeBusinessRule
	}
}

// IsSchedulerErrorRetryable reports whether the next tick may succeed where this one failed.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	return isDeadline(err) || errors.Is(err, errs.ErrConflict) || isDBError(err)
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case isDeadline(err):
		return SchedulerJobReasonDeadlineExceeded
	case errors.Is(err, errs.ErrPermission):
		return SchedulerJobReasonForbidden
	case db.IsLockTimeoutErr(err):
		return SchedulerJobReasonDBLockTimeout
	case db.IsSerializationErr(err):
		return SchedulerJobReasonSerializationFailure
	case db.IsDuplicateKeyErr(err):
		return SchedulerJobReasonUniqueViolation
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrAlreadyDecided):
		return SchedulerJobReasonConflict
	default:
		return SchedulerJobReasonUnknown
	}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return db.IsRetryableErr(err) || db.IsDuplicateKeyErr(err)
}

package scheduler

import (
	"context"
	"sort"
	"time"

	obslogger "github.com/smallbiznis/sellerflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sellerflow/internal/observability/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// jobRun tracks one execution of a job and writes its summary line.
type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	log       *zap.Logger
	metrics   *obsmetrics.SchedulerMetrics

	processed int
	errors    int
	// counts holds per-job outcome tallies such as escalated or delivered
	counts map[string]int
}

func (s *Scheduler) newJobRun(ctx context.Context, job string) *jobRun {
	runID := s.genID.Generate().String()
	return &jobRun{
		job:       job,
		runID:     runID,
		startedAt: s.clock.Now(),
		metrics:   s.schedMetrics,
		log:       obslogger.WithContext(ctx, s.log).With(zap.String("job", job), zap.String("run_id", runID)),
	}
}

func (r *jobRun) AddProcessed(n int) {
	if n > 0 {
		r.processed += n
	}
}

func (r *jobRun) IncError() {
	r.errors++
}

// Count records an outcome tally for the finish line and the outcome counter.
func (r *jobRun) Count(outcome string, n int) {
	if n <= 0 {
		return
	}
	r.metrics.AddJobOutcome(r.job, outcome, n)
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[outcome] += n
}

// Fail logs err with its scheduler classification and counts it against the run.
func (r *jobRun) Fail(msg string, err error) {
	if err == nil {
		return
	}
	r.IncError()
	r.log.Error(msg,
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}

func (r *jobRun) finish(now time.Time) {
	level := zapcore.DebugLevel
	switch {
	case r.errors > 0:
		level = zapcore.WarnLevel
	case r.processed > 0:
		level = zapcore.InfoLevel
	}
	ce := r.log.Check(level, "scheduler.job.finish")
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.Int64("duration_ms", now.Sub(r.startedAt).Milliseconds()),
		zap.Int("processed_count", r.processed),
		zap.Int("error_count", r.errors),
	}
	outcomes := make([]string, 0, len(r.counts))
	for outcome := range r.counts {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fields = append(fields, zap.Int(outcome+"_count", r.counts[outcome]))
	}
	ce.Write(fields...)
}

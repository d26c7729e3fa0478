package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	approvaldomain "github.com/smallbiznis/sellerflow/internal/approval/domain"
	"github.com/smallbiznis/sellerflow/internal/clock"
	obsmetrics "github.com/smallbiznis/sellerflow/internal/observability/metrics"
	outbounddomain "github.com/smallbiznis/sellerflow/internal/outbound/domain"
	quotedomain "github.com/smallbiznis/sellerflow/internal/quote/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type approvalSweeper interface {
	ExpireDue(ctx context.Context) (approvaldomain.SweepResult, error)
	SendSLAWarnings(ctx context.Context) (int, error)
}

type quoteSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

type dispatcher interface {
	DispatchPending(ctx context.Context) (outbounddomain.DispatchResult, error)
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Approvals    approvaldomain.Service
	Quotes       quotedomain.Service
	Outbound     outbounddomain.Service
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config                       `optional:"true"`
	Metrics      *obsmetrics.Metrics          `optional:"true"`
	SchedMetrics *obsmetrics.SchedulerMetrics `optional:"true"`
}

// Scheduler runs the periodic sweeps: overdue approvals, SLA warnings,
// quotes past their validity date and the outbound notification outbox.
type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	leases       *leases
	approvals    approvalSweeper
	quotes       quoteSweeper
	outbound     dispatcher
	metrics      *obsmetrics.Metrics
	schedMetrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Approvals == nil || p.Quotes == nil || p.Outbound == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	schedMetrics := p.SchedMetrics
	if schedMetrics == nil {
		schedMetrics = obsmetrics.Scheduler()
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		leases:       newLeases(p.DB),
		approvals:    p.Approvals,
		quotes:       p.Quotes,
		outbound:     p.Outbound,
		metrics:      p.Metrics,
		schedMetrics: schedMetrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = actorcontext.WithActor(ctx, actorcontext.System)
	run := s.newJobRun(ctx, name)

	release, acquired, err := s.leases.acquire(ctx, name)
	s.schedMetrics.ObserveDBLockWait(lockResource(name), s.clock.Now().Sub(start))
	if err != nil {
		s.schedMetrics.IncJobError(name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	if !acquired {
		s.schedMetrics.IncBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLocked)
		run.log.Debug("scheduler.job.skipped", zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLocked))
		return nil
	}
	defer release()

	run.log.Debug("scheduler.job.start")
	s.schedMetrics.IncJobRun(name)

	err = fn(ctx, run)
	s.schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.errors == 0 {
		run.IncError()
	}
	run.finish(s.clock.Now())
	if err == nil {
		return nil
	}

	// deadline is a soft timeout, the next tick picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.schedMetrics.IncJobTimeout(name)
	}
	s.schedMetrics.IncJobError(name, err)
	if isTimeout {
		run.log.Warn("scheduler.job.timeout",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once. Expiry goes first so SLA warnings are
// never sent for requests that are already past their deadline.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context, *jobRun) error
	}{
		{JobApprovalExpiry, s.ApprovalExpiryJob},
		{JobSLAWarning, s.SLAWarningJob},
		{JobQuoteValidity, s.QuoteValidityJob},
		{JobOutboxDispatch, s.OutboxDispatchJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			s.schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ApprovalExpiryJob applies the expiry policy to overdue pending requests.
func (s *Scheduler) ApprovalExpiryJob(ctx context.Context, run *jobRun) error {
	result, err := s.approvals.ExpireDue(ctx)
	processed := result.Expired + result.Escalated
	run.AddProcessed(processed)
	s.schedMetrics.AddBatchProcessed(JobApprovalExpiry, obsmetrics.LockResourceApprovalRequests, processed)
	run.Count("expired", result.Expired)
	run.Count("escalated", result.Escalated)
	run.Fail("scheduler.approval.expire.failed", err)
	return err
}

func (s *Scheduler) SLAWarningJob(ctx context.Context, run *jobRun) error {
	sent, err := s.approvals.SendSLAWarnings(ctx)
	run.AddProcessed(sent)
	s.schedMetrics.AddBatchProcessed(JobSLAWarning, obsmetrics.LockResourceApprovalRequests, sent)
	run.Fail("scheduler.approval.sla_warning.failed", err)
	return err
}

// QuoteValidityJob expires quotes whose validity date has passed.
func (s *Scheduler) QuoteValidityJob(ctx context.Context, run *jobRun) error {
	expired, err := s.quotes.ExpireStale(ctx)
	run.AddProcessed(expired)
	s.schedMetrics.AddBatchProcessed(JobQuoteValidity, obsmetrics.LockResourceQuotes, expired)
	run.Fail("scheduler.quote.expire.failed", err)
	return err
}

// OutboxDispatchJob hands pending notifications to the configured sender.
func (s *Scheduler) OutboxDispatchJob(ctx context.Context, run *jobRun) error {
	result, err := s.outbound.DispatchPending(ctx)
	run.AddProcessed(result.Claimed)
	s.schedMetrics.AddBatchProcessed(JobOutboxDispatch, obsmetrics.LockResourceOutbox, result.Claimed)
	s.metrics.RecordOutboundDispatch(ctx, "", string(outbounddomain.StatusDelivered), result.Delivered)
	s.metrics.RecordOutboundDispatch(ctx, "", string(outbounddomain.StatusFailed), result.Failed)
	run.Count("delivered", result.Delivered)
	run.Count("failed", result.Failed)
	if result.Failed > 0 {
		run.IncError()
	}
	if errors.Is(err, outbounddomain.ErrSenderNotReady) {
		s.schedMetrics.IncBatchDeferred(JobOutboxDispatch, "sender_not_ready")
		return nil
	}
	run.Fail("scheduler.outbox.dispatch.failed", err)
	return err
}

func lockResource(job string) string {
	switch job {
	case JobQuoteValidity:
		return obsmetrics.LockResourceQuotes
	case JobOutboxDispatch:
		return obsmetrics.LockResourceOutbox
	default:
		return obsmetrics.LockResourceApprovalRequests
	}
}

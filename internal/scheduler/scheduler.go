package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/clock"
	obsmetrics "github.com/smallbiznis/posledger/internal/observability/metrics"
	recurringdomain "github.com/smallbiznis/posledger/internal/recurring/domain"
	"github.com/smallbiznis/posledger/internal/scheduler/guard"
	"github.com/smallbiznis/posledger/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/smallbiznis/posledger/internal/scheduler")

var ErrInvalidConfig = errors.New("invalid_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	RecurringSvc recurringdomain.Service
	Metrics      *obsmetrics.SchedulerMetrics `optional:"true"`
	Locker       guard.Locker                 `optional:"true"`
	Config       Config                       `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	recurringSvc recurringdomain.Service
	metrics      *obsmetrics.SchedulerMetrics
	guard        *guard.RunGuard
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.RecurringSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	schedMetrics := p.Metrics
	if schedMetrics == nil {
		schedMetrics = obsmetrics.Scheduler()
	}
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		log:          log,
		cfg:          cfg,
		genID:        p.GenID,
		clock:        p.Clock,
		recurringSvc: p.RecurringSvc,
		metrics:      schedMetrics,
		guard:        guard.NewRunGuard(p.Locker, cfg.LockPrefix, cfg.LockTTL, log),
	}, nil
}

// runJob runs fn under the overlap guard with a timeout. A second run of the
// same job while one is in flight is skipped, not queued.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	release, err := s.guard.Acquire(parent, name)
	if err != nil {
		reason := obsmetrics.SchedulerSkipReasonOverlap
		if errors.Is(err, guard.ErrLockHeld) {
			reason = obsmetrics.SchedulerSkipReasonLockHeld
		} else if !errors.Is(err, guard.ErrJobRunning) {
			s.metrics.IncJobError(name, err)
			return fmt.Errorf("%s: acquire lock: %w", name, err)
		}
		s.metrics.IncJobSkipped(name, reason)
		s.log.Info("scheduler.job.skipped", zap.String("job", name), zap.String("reason", reason))
		return nil
	}
	defer release()

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "scheduler."+name, trace.WithAttributes(attribute.String("scheduler.job", name)))
	defer span.End()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(run)
	}
	s.metrics.IncJobRun(name)

	err = fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.AddErrors(1)
		}
		s.logJobFinish(run)
	}
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once. Jobs of one tick share a correlation ID.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	parent, _ = correlation.EnsureCorrelationID(parent)

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobRecurringEntries, s.isJobEnabled(JobRecurringEntries), func(ctx context.Context) error {
			return s.runJob(ctx, JobRecurringEntries, s.cfg.JobTimeout, s.RecurringEntriesJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
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
	// Empty means every job runs.
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

// RecurringEntriesJob books every recurring occurrence due today.
func (s *Scheduler) RecurringEntriesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobRecurringEntries)
	if owner {
		s.logJobStart(run)
		defer s.logJobFinish(run)
	}

	result, err := s.recurringSvc.RunDue(ctx, s.clock.Now())
	run.AddProcessed(result.Created)
	run.AddSkipped(result.Skipped)
	run.AddErrors(result.Failed)
	s.metrics.AddOccurrences(JobRecurringEntries, obsmetrics.OccurrenceOutcomeCreated, result.Created)
	s.metrics.AddOccurrences(JobRecurringEntries, obsmetrics.OccurrenceOutcomeSkipped, result.Skipped)
	s.metrics.AddOccurrences(JobRecurringEntries, obsmetrics.OccurrenceOutcomeFailed, result.Failed)
	if result.Deactivated > 0 {
		s.log.Info("recurring templates ended",
			zap.String("run_id", run.runID),
			zap.Int("count", result.Deactivated),
		)
	}
	if err != nil {
		s.logSchedulerError(run, "scheduler.recurring.failed", err,
			zap.Int("templates", result.Templates),
			zap.Int("failed", result.Failed),
		)
		return err
	}
	return nil
}

// Package sweeper guarantees no transaction is silently stuck forever:
// anything left in a non-terminal status past the staleness threshold is
// forced to FAILED.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/SaiYadav1818/settlement-core/internal/alert"
	"github.com/SaiYadav1818/settlement-core/internal/audit"
	"github.com/SaiYadav1818/settlement-core/internal/domain/model"
	"github.com/SaiYadav1818/settlement-core/internal/metrics"
	"github.com/SaiYadav1818/settlement-core/internal/store"
)

// ErrSweepInProgress is returned when a sweep is requested while another
// is still running. Overlapping sweeps are skipped, not queued; sweep
// correctness requires eventual execution, not concurrent execution.
var ErrSweepInProgress = errors.New("sweep already in progress")

// FailureReason is the fixed reason stamped on swept transactions.
const FailureReason = "reconciliation: no terminal confirmation within staleness threshold"

// sweepableStatuses are the non-terminal statuses a sweep may touch.
var sweepableStatuses = []model.TxnStatus{
	model.TxnStatusInitiated,
	model.TxnStatusProcessing,
}

// RunResult aggregates a single sweep.
type RunResult struct {
	Examined     int       `json:"examined"`
	Transitioned int       `json:"transitioned"`
	Skipped      int       `json:"skipped"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Sweeper resolves stale transactions. The periodic runner and the
// manual admin trigger share the identical guarded code path.
type Sweeper struct {
	txns           store.TransactionRepository
	staleThreshold time.Duration
	interval       time.Duration
	alerter        alert.Alerter
	sink           audit.Sink
	logger         *slog.Logger
	running        atomic.Bool
	nowFn          func() time.Time
}

func New(
	txns store.TransactionRepository,
	staleThreshold, interval time.Duration,
	alerter alert.Alerter,
	sink audit.Sink,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		txns:           txns,
		staleThreshold: staleThreshold,
		interval:       interval,
		alerter:        alerter,
		sink:           sink,
		logger:         logger.With("component", "sweeper"),
		nowFn:          time.Now,
	}
}

// Sweep forces every transaction stuck in a non-terminal status past the
// staleness threshold into FAILED. The transition is conditional: the
// write only lands if, at write time, the status is still in the
// expected pre-state and updated_at still predates the cutoff, so a
// transaction that confirms or progresses while the sweep runs wins.
func (s *Sweeper) Sweep(ctx context.Context) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SweepOverlapSkipsTotal.Inc()
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	start := s.nowFn()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := start.Add(-s.staleThreshold)
	stale, err := s.txns.FindStale(ctx, sweepableStatuses, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stale transactions: %w", err)
	}

	result := &RunResult{
		Examined:  len(stale),
		StartedAt: start,
	}

	for _, t := range stale {
		rows, err := s.txns.UpdateStatusIfStaleIn(
			ctx, t.Txnid, sweepableStatuses, cutoff, model.TxnStatusFailed, FailureReason,
		)
		if err != nil {
			return result, fmt.Errorf("sweep transition %s: %w", t.Txnid, err)
		}
		if rows == 0 {
			// A confirmation landed between read and write; nothing to do.
			result.Skipped++
			continue
		}
		result.Transitioned++
		metrics.SweepTransitionsTotal.Inc()

		e := audit.NewEvent(audit.EventSweepTransition, audit.StageReconciliation)
		e.Txnid = t.Txnid
		e.Amount = t.Amount.String()
		e.Outcome = fmt.Sprintf("%s -> %s", t.Status, model.TxnStatusFailed)
		s.sink.Emit(ctx, e)
	}

	result.FinishedAt = s.nowFn()
	metrics.SweepRunsTotal.Inc()

	e := audit.NewEvent(audit.EventSweepRun, audit.StageReconciliation)
	e.Outcome = fmt.Sprintf("examined=%d transitioned=%d skipped=%d",
		result.Examined, result.Transitioned, result.Skipped)
	s.sink.Emit(ctx, e)

	s.logger.Info("sweep completed",
		"examined", result.Examined,
		"transitioned", result.Transitioned,
		"skipped", result.Skipped,
		"stale_threshold", s.staleThreshold.String(),
	)

	if result.Transitioned > 0 && s.alerter != nil {
		_ = s.alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeStaleBacklog,
			Title:   "Stale transactions reconciled to FAILED",
			Message: fmt.Sprintf("%d transaction(s) never received a terminal confirmation", result.Transitioned),
			Fields: map[string]string{
				"examined":     fmt.Sprintf("%d", result.Examined),
				"transitioned": fmt.Sprintf("%d", result.Transitioned),
			},
		})
	}

	return result, nil
}

// RunPeriodic runs sweeps at the configured interval until the context
// is cancelled.
func (s *Sweeper) RunPeriodic(ctx context.Context) error {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.logger.Info("periodic sweep started",
		"interval", interval.String(),
		"stale_threshold", s.staleThreshold.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic sweep stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				s.logger.Error("periodic sweep failed", "error", err)
				if s.alerter != nil {
					_ = s.alerter.Send(ctx, alert.Alert{
						Type:    alert.AlertTypeSweepFailure,
						Title:   "Reconciliation sweep failed",
						Message: err.Error(),
					})
				}
			}
		}
	}
}

// SweepAny wraps Sweep to return any, satisfying admin.SweepRequester.
func (s *Sweeper) SweepAny(ctx context.Context) (any, error) {
	return s.Sweep(ctx)
}

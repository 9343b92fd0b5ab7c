/*
scheduler.go - Overdue evaluation sweep

PURPOSE:
  Periodically evaluates every active enrollment's schedule position and
  logs the ones that have slipped overdue or crossed the default
  threshold. The sweep never mutates enrollments; fines and status
  changes stay deliberate operator actions through the API.

DESIGN:
  - Driven by robfig/cron with a configurable cron expression
    (typically nightly, after close of business)
  - Each sweep lists active enrollments and runs EvaluateStatus as of
    the sweep day
  - Results are logged per enrollment so the shop's morning report can
    chase late payers

USAGE:
  sweep := NewOverdueSweep(store, lifecycle, "0 2 * * *", log)
  if err := sweep.Start(); err != nil { ... }
  // ... later
  sweep.Stop()

SEE ALSO:
  - scheme/schedule.go: the schedule arithmetic behind EvaluateStatus
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aurum/savings-engine/scheme"
)

// OverdueSweep evaluates active enrollments on a cron schedule.
type OverdueSweep struct {
	store     scheme.TxStore
	lifecycle *scheme.LifecycleManager
	spec      string
	log       zerolog.Logger

	cron *cron.Cron
}

// NewOverdueSweep creates a sweep with the given cron spec (standard five
// field syntax, e.g. "0 2 * * *" for 02:00 daily).
func NewOverdueSweep(store scheme.TxStore, lifecycle *scheme.LifecycleManager, spec string, log zerolog.Logger) *OverdueSweep {
	return &OverdueSweep{
		store:     store,
		lifecycle: lifecycle,
		spec:      spec,
		log:       log.With().Str("component", "overdue-sweep").Logger(),
	}
}

// Start registers the sweep job and starts the cron runner.
func (s *OverdueSweep) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background(), time.Now().UTC()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("overdue sweep scheduled")
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *OverdueSweep) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce sweeps all active enrollments as of the given day. Exported so
// operators can trigger it manually and tests can drive it directly.
func (s *OverdueSweep) RunOnce(ctx context.Context, asOf time.Time) {
	enrs, err := s.store.ListEnrollments(ctx, "", scheme.StatusActive)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: listing active enrollments failed")
		return
	}

	var overdue, defaulted int
	for _, e := range enrs {
		report, err := s.lifecycle.EvaluateStatus(ctx, e.ID, asOf)
		if err != nil {
			s.log.Error().Err(err).Str("enrollment_id", string(e.ID)).Msg("sweep: evaluation failed")
			continue
		}
		if report.IsDefaulted {
			defaulted++
			s.log.Warn().
				Str("enrollment_id", string(e.ID)).
				Str("account_number", e.AccountNumber).
				Int("missed_payments", report.MissedPayments).
				Msg("enrollment crossed default threshold")
			continue
		}
		if report.IsOverdue {
			overdue++
			s.log.Info().
				Str("enrollment_id", string(e.ID)).
				Str("account_number", e.AccountNumber).
				Int("missed_payments", report.MissedPayments).
				Time("next_due", report.NextDueDate).
				Msg("enrollment overdue")
		}
	}

	s.log.Info().
		Int("active", len(enrs)).
		Int("overdue", overdue).
		Int("defaulted", defaulted).
		Msg("overdue sweep complete")
}

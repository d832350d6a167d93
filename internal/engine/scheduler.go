package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hcloud-firewall-controller/internal/metrics"
	"hcloud-firewall-controller/internal/model"
)

// accountPause throttles successive accounts within one cycle to keep API
// pressure bounded.
const accountPause = 500 * time.Millisecond

// Scheduler drives reconciliation of all configured accounts, either once
// or on a fixed interval until the context is cancelled.
type Scheduler struct {
	accounts   []model.Account
	book       *AddressBook
	rules      RuleConfig
	reconciler *Reconciler
	interval   time.Duration
	runOnce    bool
}

func NewScheduler(accounts []model.Account, book *AddressBook, rules RuleConfig, reconciler *Reconciler, interval time.Duration, runOnce bool) *Scheduler {
	return &Scheduler{
		accounts:   accounts,
		book:       book,
		rules:      rules,
		reconciler: reconciler,
		interval:   interval,
		runOnce:    runOnce,
	}
}

// Run executes reconciliation cycles. In run-once mode a single cycle is
// executed and an error is returned iff any account failed. Otherwise it
// loops until ctx is cancelled; per-account failures never terminate the
// loop, they are retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.runOnce {
		return cycleError(s.runCycle(ctx))
	}

	for {
		slog.Debug("reconciliation loop started")
		outcomes := s.runCycle(ctx)
		if err := cycleError(outcomes); err != nil {
			slog.Error("reconciliation cycle had failures", "error", err)
		}
		slog.Debug("reconciliation loop finished", "interval", s.interval)

		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-time.After(s.interval):
		}
	}
}

// runCycle resolves desired state once and reconciles every account against
// it. One account's failure never prevents the others from being attempted.
func (s *Scheduler) runCycle(ctx context.Context) []Outcome {
	metrics.CyclesTotal.Inc()

	sources := s.book.Resolve(ctx)
	desired := BuildRules(s.rules, sources)
	metrics.DesiredSources.Set(float64(len(sources)))
	metrics.DesiredRules.Set(float64(len(desired)))

	outcomes := make([]Outcome, 0, len(s.accounts))
	for i, account := range s.accounts {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return outcomes
			case <-time.After(accountPause):
			}
		}

		outcome := s.reconciler.ReconcileAccount(ctx, account, desired)
		if outcome.Err != nil {
			slog.Error("account reconciliation failed",
				"firewall", account.FirewallName,
				"token", account.Redacted(),
				"stage", outcome.Stage,
				"error", outcome.Err)
			metrics.FailuresTotal.WithLabelValues(string(outcome.Stage)).Inc()
		} else {
			slog.Info("account reconciled",
				"firewall", account.FirewallName,
				"id", outcome.FirewallID,
				"updated", outcome.Applied,
				"sources", len(sources))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func cycleError(outcomes []Outcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d accounts failed to reconcile", failed, len(outcomes))
	}
	return nil
}

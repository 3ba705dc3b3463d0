// File: internal/infra/sched/sync_worker.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"content-enrichment/internal/infra/redis"
	"content-enrichment/internal/infra/security"
	"content-enrichment/internal/infra/worker"
	"content-enrichment/internal/usecase"
)

const syncLockKey = "lock:daily_account_sync"

// AccountSource lists the bank-account records due for the daily sync.
type AccountSource interface {
	DueAccounts(ctx context.Context) ([]usecase.AccountRef, error)
}

// AccountSyncer runs the sync jobs; usecase.EnrichmentUseCase satisfies it.
type AccountSyncer interface {
	SyncAccounts(ctx context.Context, refs []usecase.AccountRef) []usecase.BatchItem
}

// SyncWorker kicks off the daily Teller sync batch at a fixed local hour.
// A redis lock keeps concurrent replicas from running the batch twice.
type SyncWorker struct {
	hour     int
	accounts AccountSource
	enrich   AccountSyncer
	locker   redis.Locker
	pool     *worker.Pool
	certs    *security.TellerCertSource
	log      *zerolog.Logger

	now func() time.Time
}

func NewSyncWorker(hour int, accounts AccountSource, enrich AccountSyncer, locker redis.Locker, pool *worker.Pool, certs *security.TellerCertSource, logger *zerolog.Logger) *SyncWorker {
	syncLog := logger.With().Str("component", "SyncWorker").Logger()
	return &SyncWorker{
		hour:     hour,
		accounts: accounts,
		enrich:   enrich,
		locker:   locker,
		pool:     pool,
		certs:    certs,
		log:      &syncLog,
		now:      time.Now,
	}
}

func (w *SyncWorker) Run(ctx context.Context) error {
	w.log.Info().Int("hour", w.hour).Msg("starting daily sync worker")
	for {
		wait := w.untilNextRun()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("stopping daily sync worker")
			return ctx.Err()
		case <-timer.C:
			if err := w.pool.Submit(w.runBatch); err != nil {
				w.log.Error().Err(err).Msg("could not schedule sync batch")
			}
		}
	}
}

func (w *SyncWorker) untilNextRun() time.Duration {
	now := w.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), w.hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func (w *SyncWorker) runBatch(ctx context.Context) error {
	token, err := w.locker.TryLock(ctx, syncLockKey, 30*time.Minute)
	if err != nil {
		w.log.Info().Err(err).Msg("sync batch already running elsewhere")
		return nil
	}
	defer func() { _ = w.locker.Unlock(context.Background(), syncLockKey, token) }()

	// Preflight the Teller client cert so a bad rotation fails the batch
	// here instead of midway through. One reload attempt on failure.
	if w.certs != nil {
		if _, err := w.certs.Certificate(); err != nil {
			w.certs.Invalidate()
			if _, err := w.certs.Certificate(); err != nil {
				w.log.Error().Err(err).Msg("teller client cert unavailable")
				return err
			}
		}
	}

	refs, err := w.accounts.DueAccounts(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("listing accounts for sync")
		return err
	}
	if len(refs) == 0 {
		w.log.Info().Msg("no accounts due for sync")
		return nil
	}

	start := time.Now()
	report := w.enrich.SyncAccounts(ctx, refs)
	failed := 0
	for _, item := range report {
		if item.Err != nil {
			failed++
			w.log.Error().Err(item.Err).Str("account_id", item.AccountID).Msg("account sync failed")
		}
	}
	w.log.Info().
		Int("total", len(report)).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("daily sync batch finished")
	return nil
}

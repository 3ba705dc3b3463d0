// File: internal/usecase/poller.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/adapter"
	"content-enrichment/internal/infra/metrics"
)

const (
	// maxPollAttempts bounds the loop at roughly the "5 minute" budget the
	// UI advertises. The interval table below is the contract; do not
	// re-derive the ceiling from a wall-clock figure.
	maxPollAttempts = 150

	// transientWindow is the number of leading attempts during which a
	// failed status query is retried instead of escalated.
	transientWindow = 5
)

// Progress is delivered to the caller on every non-terminal poll iteration.
type Progress struct {
	Attempt int
	Elapsed time.Duration
	Phase   string
}

type ProgressFunc func(Progress)

// pollInterval returns the pre-poll sleep for a given attempt number.
// Attempt 1 fires immediately; the schedule backs off in two steps.
func pollInterval(attempt int) time.Duration {
	switch {
	case attempt <= 10:
		return time.Second
	case attempt <= 30:
		return 2 * time.Second
	default:
		return 5 * time.Second
	}
}

// Poller drives a submitted job to a terminal state by querying its status
// on a tiered schedule. One Poller instance is safe for concurrent use;
// every Poll call runs its own independent loop.
type Poller struct {
	exec adapter.ExecutorAdapter
	log  *zerolog.Logger

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewPoller(exec adapter.ExecutorAdapter, log *zerolog.Logger) *Poller {
	return &Poller{
		exec:  exec,
		log:   log,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// Poll queries jobID until it reaches a terminal state, the attempt ceiling
// is hit, or ctx is cancelled.
//
// Error taxonomy:
//   - transient status-query failures inside the leading window are
//     swallowed; at attempt transientWindow or later they are returned
//   - a completed job without a result is domain.ErrMissingResult
//   - remote failure is domain.ErrJobFailed carrying the remote message
//   - exhaustion of the attempt table is domain.ErrPollTimeout
//   - ctx cancellation is domain.ErrJobCancelled, checked at loop top
//     before sleeping
func (p *Poller) Poll(ctx context.Context, jobID string, onProgress ProgressFunc) (json.RawMessage, error) {
	start := p.now()

	for attempt := 1; attempt <= maxPollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrJobCancelled, err)
		}
		if attempt > 1 {
			if err := p.sleep(ctx, pollInterval(attempt)); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrJobCancelled, err)
			}
		}

		snap, err := p.exec.Status(ctx, jobID)
		if err != nil {
			if attempt < transientWindow {
				p.log.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).
					Msg("transient status query failure")
				metrics.IncPollTransient()
				continue
			}
			return nil, err
		}

		elapsed := p.now().Sub(start)
		switch snap.Status {
		case model.JobStatusPending:
			p.emit(onProgress, Progress{Attempt: attempt, Elapsed: elapsed,
				Phase: fmt.Sprintf("queued (%ds elapsed)", int(elapsed.Seconds()))})

		case model.JobStatusProcessing:
			p.emit(onProgress, Progress{Attempt: attempt, Elapsed: elapsed,
				Phase: fmt.Sprintf("processing (%ds elapsed)", int(elapsed.Seconds()))})

		case model.JobStatusCompleted:
			if len(snap.Result) == 0 {
				return nil, domain.ErrMissingResult
			}
			metrics.ObservePoll(attempt, elapsed, "completed")
			return snap.Result, nil

		case model.JobStatusFailed:
			msg := snap.Error
			if msg == "" {
				msg = "job failed without error detail"
			}
			metrics.ObservePoll(attempt, elapsed, "failed")
			return nil, fmt.Errorf("%w: %s", domain.ErrJobFailed, msg)

		case model.JobStatusCancelled:
			metrics.ObservePoll(attempt, elapsed, "cancelled")
			return nil, fmt.Errorf("%w: cancelled by executor", domain.ErrJobCancelled)

		default:
			// Unknown vocabulary from a newer executor: keep polling.
			p.log.Warn().Str("job_id", jobID).Str("status", string(snap.Status)).
				Msg("unrecognized job status")
		}
	}

	metrics.ObservePoll(maxPollAttempts, p.now().Sub(start), "timeout")
	return nil, fmt.Errorf("%w (job %s)", domain.ErrPollTimeout, jobID)
}

// emit delivers progress without ever blocking the loop.
func (p *Poller) emit(fn ProgressFunc, pr Progress) {
	if fn == nil {
		return
	}
	go fn(pr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

//go:build !integration

package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/adapter"
)

// ---- Fakes ----

type fakeExecutor struct {
	submitFn func(ctx context.Context, action string, payload any) (*adapter.SubmitOutcome, error)
	statusFn func(ctx context.Context, jobID string) (*model.JobSnapshot, error)
}

func (f *fakeExecutor) Submit(ctx context.Context, action string, payload any) (*adapter.SubmitOutcome, error) {
	if f.submitFn == nil {
		panic("unexpected Submit")
	}
	return f.submitFn(ctx, action, payload)
}

func (f *fakeExecutor) Status(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	return f.statusFn(ctx, jobID)
}

var _ adapter.ExecutorAdapter = (*fakeExecutor)(nil)

func newTestPoller(exec *fakeExecutor, sleeps *[]time.Duration) *Poller {
	nop := zerolog.Nop()
	p := NewPoller(exec, &nop)
	p.sleep = func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return p
}

func TestPollIntervalSchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{10, time.Second},
		{11, 2 * time.Second},
		{30, 2 * time.Second},
		{31, 5 * time.Second},
		{150, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := pollInterval(tc.attempt); got != tc.want {
			t.Errorf("pollInterval(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestPollCompletesWithoutSleepingFirst(t *testing.T) {
	var sleeps []time.Duration
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		calls++
		return &model.JobSnapshot{Status: model.JobStatusCompleted, Result: json.RawMessage(`{"ok":true}`)}, nil
	}}
	p := newTestPoller(exec, &sleeps)

	res, err := p.Poll(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if string(res) != `{"ok":true}` {
		t.Fatalf("result = %s", res)
	}
	if calls != 1 {
		t.Fatalf("status calls = %d, want 1", calls)
	}
	if len(sleeps) != 0 {
		t.Fatalf("slept %v before first attempt", sleeps)
	}
}

func TestPollPendingThenProcessingThenCompleted(t *testing.T) {
	var sleeps []time.Duration
	seq := []*model.JobSnapshot{
		{Status: model.JobStatusPending},
		{Status: model.JobStatusProcessing},
		{Status: model.JobStatusCompleted, Result: json.RawMessage(`"done"`)},
	}
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		snap := seq[calls]
		calls++
		return snap, nil
	}}
	p := newTestPoller(exec, &sleeps)

	res, err := p.Poll(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if string(res) != `"done"` {
		t.Fatalf("result = %s", res)
	}
	if calls != 3 {
		t.Fatalf("status calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", sleeps, want)
		}
	}
}

func TestPollFailedJobCarriesRemoteMessage(t *testing.T) {
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		return &model.JobSnapshot{Status: model.JobStatusFailed, Error: "out of disk"}, nil
	}}
	p := newTestPoller(exec, nil)

	_, err := p.Poll(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", err)
	}
	if got := err.Error(); !strings.Contains(got, "out of disk") {
		t.Fatalf("error %q does not carry remote message", got)
	}
}

func TestPollCompletedWithoutResult(t *testing.T) {
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		return &model.JobSnapshot{Status: model.JobStatusCompleted}, nil
	}}
	p := newTestPoller(exec, nil)

	_, err := p.Poll(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrMissingResult) {
		t.Fatalf("err = %v, want ErrMissingResult", err)
	}
}

func TestPollTransientErrorsSwallowedInsideWindow(t *testing.T) {
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		calls++
		if calls <= 4 {
			return nil, fmt.Errorf("%w: 502", domain.ErrStatusQuery)
		}
		return &model.JobSnapshot{Status: model.JobStatusCompleted, Result: json.RawMessage(`1`)}, nil
	}}
	p := newTestPoller(exec, nil)

	res, err := p.Poll(context.Background(), "job-1", nil)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if string(res) != "1" {
		t.Fatalf("result = %s", res)
	}
	if calls != 5 {
		t.Fatalf("status calls = %d, want 5", calls)
	}
}

func TestPollTransientErrorAtWindowEscalates(t *testing.T) {
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		calls++
		return nil, fmt.Errorf("%w: 502", domain.ErrStatusQuery)
	}}
	p := newTestPoller(exec, nil)

	_, err := p.Poll(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrStatusQuery) {
		t.Fatalf("err = %v, want ErrStatusQuery", err)
	}
	if calls != transientWindow {
		t.Fatalf("status calls = %d, want %d", calls, transientWindow)
	}
}

func TestPollExhaustionTimesOut(t *testing.T) {
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		calls++
		return &model.JobSnapshot{Status: model.JobStatusPending}, nil
	}}
	p := newTestPoller(exec, nil)

	_, err := p.Poll(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if calls != maxPollAttempts {
		t.Fatalf("status calls = %d, want %d", calls, maxPollAttempts)
	}
}

func TestPollCancelledBeforeFirstQuery(t *testing.T) {
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		calls++
		return &model.JobSnapshot{Status: model.JobStatusPending}, nil
	}}
	p := newTestPoller(exec, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Poll(ctx, "job-1", nil)
	if !errors.Is(err, domain.ErrJobCancelled) {
		t.Fatalf("err = %v, want ErrJobCancelled", err)
	}
	if calls != 0 {
		t.Fatalf("status calls = %d, want 0", calls)
	}
}

func TestPollCancelledDuringSleep(t *testing.T) {
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		return &model.JobSnapshot{Status: model.JobStatusPending}, nil
	}}
	nop := zerolog.Nop()
	p := NewPoller(exec, &nop)
	p.sleep = func(_ context.Context, _ time.Duration) error {
		return context.Canceled
	}

	_, err := p.Poll(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrJobCancelled) {
		t.Fatalf("err = %v, want ErrJobCancelled", err)
	}
}

func TestPollRemoteCancellation(t *testing.T) {
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		return &model.JobSnapshot{Status: model.JobStatusCancelled}, nil
	}}
	p := newTestPoller(exec, nil)

	_, err := p.Poll(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrJobCancelled) {
		t.Fatalf("err = %v, want ErrJobCancelled", err)
	}
}

func TestPollProgressPhases(t *testing.T) {
	seq := []*model.JobSnapshot{
		{Status: model.JobStatusPending},
		{Status: model.JobStatusProcessing},
		{Status: model.JobStatusCompleted, Result: json.RawMessage(`1`)},
	}
	calls := 0
	exec := &fakeExecutor{statusFn: func(_ context.Context, _ string) (*model.JobSnapshot, error) {
		snap := seq[calls]
		calls++
		return snap, nil
	}}
	p := newTestPoller(exec, nil)

	got := make(chan Progress, 8)
	_, err := p.Poll(context.Background(), "job-1", func(pr Progress) { got <- pr })
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// Callbacks run on their own goroutines, so arrival order is not fixed.
	var phases []string
	for i := 0; i < 2; i++ {
		select {
		case pr := <-got:
			phases = append(phases, pr.Phase)
		case <-time.After(time.Second):
			t.Fatalf("progress callback %d never fired", i)
		}
	}
	joined := strings.Join(phases, " ")
	if !strings.Contains(joined, "queued") || !strings.Contains(joined, "processing") {
		t.Fatalf("phases = %v", phases)
	}
}

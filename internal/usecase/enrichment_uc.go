// File: internal/usecase/enrichment_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/adapter"
	"content-enrichment/internal/domain/ports/repository"
	"content-enrichment/internal/infra/logging"
	"content-enrichment/internal/infra/metrics"
)

// Invalidator signals the surrounding application that a conversation's
// children changed and any cached views must be refetched.
type Invalidator interface {
	InvalidateChildren(ctx context.Context, contentID string)
}

// TokenCipher decrypts credentials stored on content records.
// security.EncryptionService satisfies it.
type TokenCipher interface {
	Decrypt(ciphertext string) (string, error)
}

// EnrichmentOutcome is what a reconciled job leaves behind.
type EnrichmentOutcome struct {
	JobID   string
	ChildID string
	Output  string
	Session *model.SessionMetadata
}

// AccountRef points at one bank-account content record to sync. AccessToken
// is the encrypted Teller token as persisted in the record's metadata.
type AccountRef struct {
	ContentID   string
	AccountID   string
	AccessToken string
}

// BatchItem is the per-account outcome of a batch sync.
type BatchItem struct {
	AccountID string
	Err       error
}

// Compile-time check
var _ EnrichmentUseCase = (*enrichmentUC)(nil)

// EnrichmentUseCase drives the full job lifecycle for every enrichment
// action: read continuation state, submit, poll to a terminal state, then
// reconcile the result into the content tree.
type EnrichmentUseCase interface {
	RunClaudeCode(ctx context.Context, contentID, prompt string, onProgress ProgressFunc) (*EnrichmentOutcome, error)
	ExtractSEO(ctx context.Context, contentID, url string) (json.RawMessage, error)
	CaptureScreenshots(ctx context.Context, contentID string, urls []string, onProgress ProgressFunc) (json.RawMessage, error)
	Transcribe(ctx context.Context, contentID, audioURL string, onProgress ProgressFunc) (*EnrichmentOutcome, error)
	SyncAccount(ctx context.Context, ref AccountRef) error
	SyncAccounts(ctx context.Context, refs []AccountRef) []BatchItem
	JobStatus(ctx context.Context, jobID string) (*model.JobSnapshot, error)
}

type enrichmentUC struct {
	exec        adapter.ExecutorAdapter
	poller      *Poller
	contents    repository.ContentRepository
	sessions    SessionUseCase
	prompts     *PromptBuilder
	invalidator Invalidator
	cipher      TokenCipher
	log         *zerolog.Logger

	newID func() string
}

func NewEnrichmentUseCase(
	exec adapter.ExecutorAdapter,
	poller *Poller,
	contents repository.ContentRepository,
	sessions SessionUseCase,
	prompts *PromptBuilder,
	invalidator Invalidator,
	cipher TokenCipher,
	log *zerolog.Logger,
) *enrichmentUC {
	return &enrichmentUC{
		exec:        exec,
		poller:      poller,
		contents:    contents,
		sessions:    sessions,
		prompts:     prompts,
		invalidator: invalidator,
		cipher:      cipher,
		log:         log,
		newID:       func() string { return ulid.Make().String() },
	}
}

// runJob is the one submit-then-poll path shared by every action; per-action
// differences are payload shape and reconciliation only.
func (u *enrichmentUC) runJob(ctx context.Context, action string, payload any, onProgress ProgressFunc) (json.RawMessage, string, error) {
	out, err := u.exec.Submit(ctx, action, payload)
	if err != nil {
		metrics.IncSubmission(action, "rejected")
		return nil, "", err
	}
	if out.Done {
		metrics.IncSubmission(action, "sync")
		metrics.IncJobOutcome(action, "completed")
		return out.Result, "", nil
	}

	metrics.IncSubmission(action, "async")
	ctx = logging.WithJobID(ctx, out.JobID)
	result, err := u.poller.Poll(ctx, out.JobID, onProgress)
	if err != nil {
		metrics.IncJobOutcome(action, outcomeLabel(err))
		return nil, out.JobID, err
	}
	metrics.IncJobOutcome(action, "completed")
	return result, out.JobID, nil
}

// claudeResult is the success payload of a claude_code job.
type claudeResult struct {
	SessionID string `json:"session_id"`
	S3URL     string `json:"s3_url"`
	R2URL     string `json:"r2_url"`
	Output    string `json:"output"`
	Text      string `json:"text"`
}

func (r *claudeResult) artifact() string {
	if r.S3URL != "" {
		return r.S3URL
	}
	return r.R2URL
}

func (r *claudeResult) output(raw json.RawMessage) string {
	if r.Output != "" {
		return r.Output
	}
	if r.Text != "" {
		return r.Text
	}
	return string(raw)
}

// RunClaudeCode resolves the inherited session (if any), builds the prompt
// from the conversation's lineage, runs a claude_code job, then reconciles:
// a child record holding the exchange, refreshed session metadata on the
// conversation, and a children invalidation signal.
func (u *enrichmentUC) RunClaudeCode(ctx context.Context, contentID, prompt string, onProgress ProgressFunc) (*EnrichmentOutcome, error) {
	defer logging.TraceDuration(u.log, "EnrichmentUC.RunClaudeCode")()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithContentID(ctx, contentID)

	conversation, err := u.contents.FindByID(ctx, nil, contentID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	meta, err := u.sessions.Get(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	continuing := meta.Valid()

	payload := map[string]any{
		"prompt": u.buildPrompt(ctx, contentID, meta, prompt),
	}
	if continuing {
		payload["session_id"] = meta.SessionID
		payload["artifact_url"] = meta.ArtifactURL()
	}

	raw, jobID, err := u.runJob(ctx, "claude_code", payload, onProgress)
	if err != nil {
		return nil, err
	}

	var rs claudeResult
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("%w: undecodable claude result: %v", domain.ErrMissingResult, err)
	}
	output := rs.output(raw)

	childID, err := u.contents.CreateChild(ctx, nil, &model.Content{
		ID:              u.newID(),
		Type:            "text",
		Data:            formatExchange(prompt, output),
		UserID:          conversation.UserID,
		GroupID:         conversation.GroupID,
		ParentContentID: &contentID,
	})
	if err != nil {
		// The raw result is otherwise lost to the user; log it whole so an
		// operator can recover the output.
		u.log.Error().Err(err).Str("content_id", contentID).
			RawJSON("job_result", raw).Msg("child record creation failed, job result dropped")
		return nil, fmt.Errorf("persist job result: %w", err)
	}

	outcome := &EnrichmentOutcome{JobID: jobID, ChildID: childID, Output: output}
	if rs.SessionID != "" && rs.artifact() != "" {
		initial := prompt
		if continuing && meta.InitialPrompt != "" {
			initial = meta.InitialPrompt
		}
		if err := u.sessions.Store(ctx, contentID, rs.SessionID, rs.artifact(), initial, continuing); err != nil {
			u.log.Error().Err(err).Str("content_id", contentID).Msg("session metadata store failed")
		} else {
			outcome.Session, _ = u.sessions.Get(ctx, contentID)
		}
	}

	if u.invalidator != nil {
		u.invalidator.InvalidateChildren(ctx, contentID)
	}
	return outcome, nil
}

// buildPrompt folds the initial prompt and prior exchanges into the next
// instruction, within the token budget. Lineage read failures degrade to the
// bare prompt.
func (u *enrichmentUC) buildPrompt(ctx context.Context, contentID string, meta *model.SessionMetadata, prompt string) string {
	if u.prompts == nil {
		return prompt
	}
	initial := ""
	if meta.Valid() {
		initial = meta.InitialPrompt
	}
	var lineage []string
	children, err := u.contents.ListChildren(ctx, nil, contentID)
	if err != nil {
		u.log.Warn().Err(err).Str("content_id", contentID).Msg("lineage read failed")
	} else {
		for _, c := range children {
			if c.Type == "text" && c.Data != "" {
				lineage = append(lineage, c.Data)
			}
		}
	}
	return u.prompts.Build(initial, lineage, prompt)
}

func (u *enrichmentUC) ExtractSEO(ctx context.Context, contentID, url string) (json.RawMessage, error) {
	if url == "" {
		return nil, domain.ErrInvalidArgument
	}
	raw, _, err := u.runJob(ctx, "seo_extract", map[string]any{"url": url}, nil)
	if err != nil {
		return nil, err
	}
	if err := u.contents.MergeMetadata(ctx, nil, contentID, map[string]json.RawMessage{"seo": raw}); err != nil {
		return nil, fmt.Errorf("persist seo metadata: %w", err)
	}
	if u.invalidator != nil {
		u.invalidator.InvalidateChildren(ctx, contentID)
	}
	return raw, nil
}

func (u *enrichmentUC) CaptureScreenshots(ctx context.Context, contentID string, urls []string, onProgress ProgressFunc) (json.RawMessage, error) {
	if len(urls) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	raw, _, err := u.runJob(ctx, "screenshot", map[string]any{"urls": urls}, onProgress)
	if err != nil {
		return nil, err
	}
	if err := u.contents.MergeMetadata(ctx, nil, contentID, map[string]json.RawMessage{"screenshots": raw}); err != nil {
		return nil, fmt.Errorf("persist screenshot metadata: %w", err)
	}
	if u.invalidator != nil {
		u.invalidator.InvalidateChildren(ctx, contentID)
	}
	return raw, nil
}

func (u *enrichmentUC) Transcribe(ctx context.Context, contentID, audioURL string, onProgress ProgressFunc) (*EnrichmentOutcome, error) {
	if audioURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	parent, err := u.contents.FindByID(ctx, nil, contentID)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	raw, jobID, err := u.runJob(ctx, "transcribe", map[string]any{"audio_url": audioURL}, onProgress)
	if err != nil {
		return nil, err
	}
	var tr struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &tr); err != nil || tr.Text == "" {
		return nil, fmt.Errorf("%w: transcript missing text", domain.ErrMissingResult)
	}

	childID, err := u.contents.CreateChild(ctx, nil, &model.Content{
		ID:              u.newID(),
		Type:            "text",
		Data:            tr.Text,
		UserID:          parent.UserID,
		GroupID:         parent.GroupID,
		ParentContentID: &contentID,
	})
	if err != nil {
		u.log.Error().Err(err).Str("content_id", contentID).
			RawJSON("job_result", raw).Msg("transcript record creation failed, job result dropped")
		return nil, fmt.Errorf("persist transcript: %w", err)
	}
	if u.invalidator != nil {
		u.invalidator.InvalidateChildren(ctx, contentID)
	}
	return &EnrichmentOutcome{JobID: jobID, ChildID: childID, Output: tr.Text}, nil
}

// SyncAccount runs one teller_sync job for a bank-account record and merges
// the sync summary into its metadata.
func (u *enrichmentUC) SyncAccount(ctx context.Context, ref AccountRef) error {
	if ref.ContentID == "" || ref.AccountID == "" {
		return domain.ErrInvalidArgument
	}
	token := ref.AccessToken
	if u.cipher != nil && token != "" {
		plain, err := u.cipher.Decrypt(token)
		if err != nil {
			return fmt.Errorf("decrypt access token: %w", err)
		}
		token = plain
	}

	raw, _, err := u.runJob(ctx, "teller_sync", map[string]any{
		"account_id":   ref.AccountID,
		"access_token": token,
	}, nil)
	if err != nil {
		return err
	}
	if err := u.contents.MergeMetadata(ctx, nil, ref.ContentID, map[string]json.RawMessage{"teller_sync": raw}); err != nil {
		return fmt.Errorf("persist sync summary: %w", err)
	}
	if u.invalidator != nil {
		u.invalidator.InvalidateChildren(ctx, ref.ContentID)
	}
	return nil
}

// SyncAccounts runs one job per account sequentially. Each account has its
// own independent polling loop; one failure does not stop the batch.
func (u *enrichmentUC) SyncAccounts(ctx context.Context, refs []AccountRef) []BatchItem {
	report := make([]BatchItem, 0, len(refs))
	for _, ref := range refs {
		err := u.SyncAccount(ctx, ref)
		if err != nil {
			u.log.Error().Err(err).Str("account_id", ref.AccountID).Msg("account sync failed")
		}
		report = append(report, BatchItem{AccountID: ref.AccountID, Err: err})
	}
	return report
}

func (u *enrichmentUC) JobStatus(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.exec.Status(ctx, jobID)
}

func formatExchange(prompt, output string) string {
	return fmt.Sprintf("> %s\n\n%s", prompt, output)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrPollTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrJobCancelled):
		return "cancelled"
	case errors.Is(err, domain.ErrMissingResult):
		return "protocol_error"
	case errors.Is(err, domain.ErrJobFailed):
		return "failed"
	default:
		return "error"
	}
}

// File: internal/usecase/session_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
	"content-enrichment/internal/domain/ports/repository"
	"content-enrichment/internal/infra/metrics"
)

// maxSessionDepth bounds the upward walk through the parent chain. There is
// no cycle detection; the bound alone keeps a corrupted chain from looping.
const maxSessionDepth = 10

// SessionCache memoizes resolved session metadata per conversation id.
// Implementations must tolerate concurrent readers; a nil cache disables
// caching entirely.
type SessionCache interface {
	Get(ctx context.Context, contentID string) (*model.SessionMetadata, bool)
	Set(ctx context.Context, contentID string, meta *model.SessionMetadata)
	Invalidate(ctx context.Context, contentID string)
}

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase persists and resolves continuation metadata attached to
// content records. Get walks the parent chain so a child item inherits a
// session started by an ancestor; Store merges into the record's metadata
// blob without clobbering sibling keys.
type SessionUseCase interface {
	Store(ctx context.Context, contentID, sessionID, artifactURL, initialPrompt string, isUpdate bool) error
	Get(ctx context.Context, contentID string) (*model.SessionMetadata, error)
	Has(ctx context.Context, contentID string) (bool, error)
}

type sessionUC struct {
	contents repository.ContentRepository
	tm       repository.TransactionManager
	cache    SessionCache
	now      func() time.Time
}

func NewSessionUseCase(contents repository.ContentRepository, tm repository.TransactionManager, cache SessionCache) *sessionUC {
	return &sessionUC{contents: contents, tm: tm, cache: cache, now: time.Now}
}

// Store merges continuation metadata onto the conversation record. The
// original created_at and initial_prompt survive later continuations;
// last_updated_at is refreshed only when isUpdate is set. The legacy r2_url
// field is preserved as written, never promoted.
func (s *sessionUC) Store(ctx context.Context, contentID, sessionID, artifactURL, initialPrompt string, isUpdate bool) error {
	if contentID == "" || sessionID == "" {
		return domain.ErrInvalidArgument
	}

	// Read-merge-write inside one transaction so two concurrent job
	// completions cannot clobber each other's merge.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := s.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		content, err := s.contents.FindByID(ctx, tx, contentID)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}

		now := s.now()
		meta := model.SessionMetadata{
			SessionID:     sessionID,
			S3URL:         artifactURL,
			InitialPrompt: initialPrompt,
			CreatedAt:     now,
		}
		if existing := content.SessionMetadata(); existing != nil {
			if !existing.CreatedAt.IsZero() {
				meta.CreatedAt = existing.CreatedAt
			}
			if existing.InitialPrompt != "" {
				meta.InitialPrompt = existing.InitialPrompt
			}
			meta.R2URL = existing.R2URL
			if artifactURL == "" {
				meta.S3URL = existing.S3URL
			}
		}
		if isUpdate {
			meta.LastUpdatedAt = &now
		}

		raw, err := json.Marshal(&meta)
		if err != nil {
			return fmt.Errorf("encode session metadata: %w", err)
		}
		if err := s.contents.MergeMetadata(ctx, tx, contentID, map[string]json.RawMessage{
			model.MetadataKeySession: raw,
		}); err != nil {
			return fmt.Errorf("merge session metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, contentID)
	}
	return nil
}

// Get returns the first valid session metadata found on the conversation or
// one of its ancestors, or nil when the chain holds none within the depth
// bound.
func (s *sessionUC) Get(ctx context.Context, contentID string) (*model.SessionMetadata, error) {
	if contentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if s.cache != nil {
		if meta, ok := s.cache.Get(ctx, contentID); ok {
			metrics.IncCacheRequest("session", "hit")
			return meta, nil
		}
		metrics.IncCacheRequest("session", "miss")
	}

	id := contentID
	for depth := 0; depth < maxSessionDepth; depth++ {
		content, err := s.contents.FindByID(ctx, nil, id)
		if err != nil {
			if err == domain.ErrNotFound {
				return nil, nil
			}
			return nil, err
		}
		if meta := content.SessionMetadata(); meta.Valid() {
			if s.cache != nil {
				s.cache.Set(ctx, contentID, meta)
			}
			return meta, nil
		}
		if content.ParentContentID == nil || *content.ParentContentID == "" {
			return nil, nil
		}
		id = *content.ParentContentID
	}
	return nil, nil
}

func (s *sessionUC) Has(ctx context.Context, contentID string) (bool, error) {
	meta, err := s.Get(ctx, contentID)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

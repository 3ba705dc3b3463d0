package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/ports/repository"
	"content-enrichment/internal/infra/logging"
	"content-enrichment/internal/usecase"
)

// AccountSource lists bank-account records eligible for syncing.
type AccountSource interface {
	DueAccounts(ctx context.Context) ([]usecase.AccountRef, error)
}

// Server exposes the enrichment API. All /api/v1 routes require a Supabase
// bearer token.
type Server struct {
	enrich   usecase.EnrichmentUseCase
	sessions usecase.SessionUseCase
	contents repository.ContentRepository
	groups   repository.GroupRepository
	accounts AccountSource
	guard    *AuthGuard
	limiter  Limiter
	log      *zerolog.Logger
}

func NewServer(
	enrich usecase.EnrichmentUseCase,
	sessions usecase.SessionUseCase,
	contents repository.ContentRepository,
	groups repository.GroupRepository,
	accounts AccountSource,
	guard *AuthGuard,
	limiter Limiter,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "APIServer").Logger()
	return &Server{
		enrich:   enrich,
		sessions: sessions,
		contents: contents,
		groups:   groups,
		accounts: accounts,
		guard:    guard,
		limiter:  limiter,
		log:      &srvLog,
	}
}

// authorizeContent allows the record owner, plus members of the record's
// group when one is set. Mirrors the row-level rules on the hosted table.
func (s *Server) authorizeContent(ctx context.Context, contentID string) error {
	c, err := s.contents.FindByID(ctx, nil, contentID)
	if err != nil {
		return err
	}
	userID := logging.UserIDFrom(ctx)
	if c.UserID == userID {
		return nil
	}
	if c.GroupID != "" {
		members, err := s.groups.Memberships(ctx, nil, userID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.GroupID == c.GroupID {
				return nil
			}
		}
	}
	return domain.ErrNotAuthorized
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.guard.Require())

		r.With(RateLimit(s.limiter, "enrich", 10, time.Minute)).
			Post("/content/{id}/enrich/{action}", s.handleEnrich)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Get("/content/{id}/session", s.handleSession)
		r.With(RateLimit(s.limiter, "sync", 2, time.Minute)).
			Post("/accounts/sync", s.handleAccountSync)
	})

	return r
}

type enrichRequest struct {
	Prompt   string   `json:"prompt,omitempty"`
	URL      string   `json:"url,omitempty"`
	URLs     []string `json:"urls,omitempty"`
	AudioURL string   `json:"audio_url,omitempty"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	l := logging.With(ctx, s.log)

	if err := s.authorizeContent(ctx, contentID); err != nil {
		s.writeUCError(w, l, err)
		return
	}

	switch action {
	case "claude_code":
		if req.Prompt == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}
		out, err := s.enrich.RunClaudeCode(ctx, contentID, req.Prompt, nil)
		if err != nil {
			s.writeUCError(w, l, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case "seo":
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "url is required")
			return
		}
		res, err := s.enrich.ExtractSEO(ctx, contentID, req.URL)
		if err != nil {
			s.writeUCError(w, l, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": res})
	case "screenshots":
		if len(req.URLs) == 0 {
			writeError(w, http.StatusBadRequest, "urls are required")
			return
		}
		res, err := s.enrich.CaptureScreenshots(ctx, contentID, req.URLs, nil)
		if err != nil {
			s.writeUCError(w, l, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": res})
	case "transcribe":
		if req.AudioURL == "" {
			writeError(w, http.StatusBadRequest, "audio_url is required")
			return
		}
		out, err := s.enrich.Transcribe(ctx, contentID, req.AudioURL, nil)
		if err != nil {
			s.writeUCError(w, l, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	snap, err := s.enrich.JobStatus(logging.WithJobID(r.Context(), jobID), jobID)
	if err != nil {
		s.writeUCError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "id")
	if err := s.authorizeContent(r.Context(), contentID); err != nil {
		s.writeUCError(w, logging.With(r.Context(), s.log), err)
		return
	}
	meta, err := s.sessions.Get(r.Context(), contentID)
	if err != nil {
		s.writeUCError(w, logging.With(r.Context(), s.log), err)
		return
	}
	if meta == nil {
		writeError(w, http.StatusNotFound, "no session")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

type syncRequest struct {
	Accounts []usecase.AccountRef `json:"accounts,omitempty"`
}

type syncResponse struct {
	Total  int      `json:"total"`
	Failed []string `json:"failed,omitempty"`
}

func (s *Server) handleAccountSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	refs := req.Accounts
	if len(refs) == 0 {
		var err error
		refs, err = s.accounts.DueAccounts(ctx)
		if err != nil {
			s.writeUCError(w, logging.With(ctx, s.log), err)
			return
		}
	}

	report := s.enrich.SyncAccounts(ctx, refs)
	resp := syncResponse{Total: len(report)}
	for _, item := range report {
		if item.Err != nil {
			resp.Failed = append(resp.Failed, item.AccountID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeUCError(w http.ResponseWriter, l *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, domain.ErrSubmissionRejected):
		l.Error().Err(err).Msg("submission rejected")
		writeError(w, http.StatusBadGateway, "enrichment service rejected the job")
	case errors.Is(err, domain.ErrPollTimeout):
		l.Error().Err(err).Msg("job polling timed out")
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, domain.ErrJobFailed), errors.Is(err, domain.ErrMissingResult), errors.Is(err, domain.ErrStatusQuery):
		l.Error().Err(err).Msg("job failed")
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrJobCancelled):
		writeError(w, http.StatusRequestTimeout, "request cancelled")
	default:
		l.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

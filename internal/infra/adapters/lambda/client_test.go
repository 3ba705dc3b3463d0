// File: internal/infra/adapters/lambda/client_test.go
package lambda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"content-enrichment/internal/domain"
	"content-enrichment/internal/domain/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-key", 5*time.Second)
}

func TestSubmitAsync(t *testing.T) {
	var gotReq map[string]any
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(`{"success":true,"job_id":"job-42"}`))
	})

	out, err := c.Submit(context.Background(), "claude_code", map[string]string{"prompt": "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.JobID != "job-42" || out.Done {
		t.Fatalf("outcome = %+v", out)
	}
	if gotReq["action"] != "claude_code" {
		t.Fatalf("request action = %v", gotReq["action"])
	}
}

func TestSubmitSyncComplete(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"title":"page"}}`))
	})

	out, err := c.Submit(context.Background(), "seo_extract", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Done || out.JobID != "" {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(string(out.Result), "page") {
		t.Fatalf("result = %s", out.Result)
	}
}

func TestSubmitSyncCompleteWithoutResultField(t *testing.T) {
	// Older executors answer with the payload at the top level.
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"title":"page"}`))
	})

	out, err := c.Submit(context.Background(), "seo_extract", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Done {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(string(out.Result), "title") {
		t.Fatalf("result = %s, want whole body", out.Result)
	}
}

func TestSubmitRejected(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"unknown action"}`))
	})

	_, err := c.Submit(context.Background(), "bogus", nil)
	if !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("err = %v, want ErrSubmissionRejected", err)
	}
	if !strings.Contains(err.Error(), "unknown action") {
		t.Fatalf("err %q does not carry remote message", err)
	}
}

func TestSubmitHTTPError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	})

	if _, err := c.Submit(context.Background(), "claude_code", nil); err == nil {
		t.Fatal("want error on non-2xx response")
	}
}

func TestStatusEnvelopeShape(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action  string `json:"action"`
			Payload struct {
				JobID string `json:"job_id"`
			} `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Action != "job_status" || req.Payload.JobID != "job-42" {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"success":true,"job":{"status":"running","result":null}}`))
	})

	snap, err := c.Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != model.JobStatusProcessing {
		t.Fatalf("status = %q, want processing", snap.Status)
	}
}

func TestStatusFlatShape(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"completed","result":{"output":"done"}}`))
	})

	snap, err := c.Status(context.Background(), "job-42")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != model.JobStatusCompleted {
		t.Fatalf("status = %q", snap.Status)
	}
	if !strings.Contains(string(snap.Result), "done") {
		t.Fatalf("result = %s", snap.Result)
	}
}

func TestStatusQueryFailureWrapped(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.Status(context.Background(), "job-42")
	if !errors.Is(err, domain.ErrStatusQuery) {
		t.Fatalf("err = %v, want ErrStatusQuery", err)
	}
}

// File: internal/infra/adapters/lambda/normalize.go
package lambda

import (
	"encoding/json"
	"errors"
	"strings"

	"content-enrichment/internal/domain/model"
)

// The status endpoint answers in one of two shapes, depending on which
// executor generation served the request:
//
//	{"success": true, "job": {"status": "...", "result": ..., "error": "..."}}
//	{"status": "...", "result": ..., "error": "..."}
//
// normalizeStatus folds both into one JobSnapshot so the polling loop never
// sees the difference.
func normalizeStatus(body json.RawMessage) (*model.JobSnapshot, error) {
	var env struct {
		Success *bool           `json:"success"`
		Error   string          `json:"error"`
		Job     *statusFields   `json:"job"`
		Status  string          `json:"status"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	fields := statusFields{Status: env.Status, Result: env.Result, Error: env.Error}
	if env.Job != nil {
		fields = *env.Job
	}
	if fields.Status == "" {
		if env.Success != nil && !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = "status query unsuccessful"
			}
			return nil, errors.New(msg)
		}
		return nil, errors.New("status response missing status field")
	}

	return &model.JobSnapshot{
		Status: canonicalStatus(fields.Status),
		Result: fields.Result,
		Error:  fields.Error,
	}, nil
}

type statusFields struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// canonicalStatus maps the executor's vocabulary onto the job status enum:
// "running" is an alias of processing, "error" an alias of failed.
func canonicalStatus(s string) model.JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued":
		return model.JobStatusPending
	case "processing", "running":
		return model.JobStatusProcessing
	case "completed":
		return model.JobStatusCompleted
	case "failed", "error":
		return model.JobStatusFailed
	case "cancelled":
		return model.JobStatusCancelled
	default:
		return model.JobStatus(s)
	}
}

package adapter

import (
	"context"
	"encoding/json"

	"content-enrichment/internal/domain/model"
)

// SubmitOutcome is what a submission call yields. The executor either
// accepts the job for asynchronous processing (JobID set) or, for cheap
// actions, runs it inline and hands the result back immediately (Done set).
// Callers must branch on Done.
type SubmitOutcome struct {
	JobID  string
	Done   bool
	Result json.RawMessage
}

// ExecutorAdapter is the port for the remote Lambda execution API.
//
// Submit posts {action, payload} and returns the outcome; submission
// failures are never retried here. Status queries the job by id and
// normalizes the two response shapes the endpoint is known to return.
type ExecutorAdapter interface {
	Submit(ctx context.Context, action string, payload any) (*SubmitOutcome, error)
	Status(ctx context.Context, jobID string) (*model.JobSnapshot, error)
}

package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further status transition will occur.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job tracks one unit of asynchronous work submitted to the remote executor.
// The executor owns the status; the client only ever reads it.
type Job struct {
	ID        string
	Action    string
	Status    JobStatus
	Result    json.RawMessage // present only when Status is completed
	Error     string          // present only when Status is failed
	CreatedAt time.Time
}

// JobSnapshot is one observation of a job's remote state, already normalized
// from the two response shapes the status endpoint is known to return.
type JobSnapshot struct {
	Status JobStatus
	Result json.RawMessage
	Error  string
}

package importer

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an import job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Finished reports whether the job will not change any more.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind names what an import job loads.
type Kind string

const KindExercises Kind = "exercises"

// maxRowErrors caps how many per-row errors a job keeps.
const maxRowErrors = 20

// Job is the persisted status of one import run.
type Job struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Source    string `json:"source"`
	ObjectKey string `json:"objectKey"`
	Status    Status `json:"status"`

	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
	Total     int `json:"total"` // known once the dataset has been read to the end

	Error     string   `json:"error,omitempty"`
	RowErrors []string `json:"rowErrors,omitempty"`
	StartedBy string   `json:"startedBy"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (j *Job) recordRowError(line int, err error) {
	j.Failed++
	if len(j.RowErrors) < maxRowErrors {
		j.RowErrors = append(j.RowErrors, fmt.Sprintf("line %d: %v", line, err))
	}
}

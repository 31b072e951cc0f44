package model

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary reports the outcome of one reminder pass.
type RunSummary struct {
	Evaluated   int `json:"evaluated_count"`
	Sent        int `json:"sent_count"`
	Failed      int `json:"failed_count"`
	WriteFailed int `json:"write_failed_count"`
}

// ReminderPassCompleted is broadcast after every reminder pass.
type ReminderPassCompleted struct {
	RunID      uuid.UUID  `json:"run_id"`
	Date       string     `json:"date"`
	Summary    RunSummary `json:"summary"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

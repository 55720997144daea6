package store

import (
	"time"

	"github.com/fruitslash/scorekeeper/leaderboard"
)

type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusSubmitted SubmissionStatus = "submitted"
	StatusFailed    SubmissionStatus = "failed"
)

type (
	// Submission is the journal record of single score submission.
	Submission struct {
		ID      string           `json:"id"`
		Nonce   string           `json:"nonce"`
		Wallet  string           `json:"wallet"`
		Score   uint64           `json:"score"`
		Status  SubmissionStatus `json:"status"`
		Error   string           `json:"error,omitempty"`
		Created time.Time        `json:"created"`
		Updated time.Time        `json:"updated"`
	}

	// Snapshot is the last reconciled leaderboard view.
	Snapshot struct {
		Entries []leaderboard.Entry `json:"entries"`
		Updated time.Time           `json:"updated"`
	}
)

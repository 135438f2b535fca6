package domain

import (
	"time"
)

type Account struct {
	Fid        int64
	Nickname   string
	FurnaceLv  int
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type RedemptionRecord struct {
	Fid        int64
	Code       string
	RedeemedAt time.Time
}

// Outcome is the classified result of one (account, code) redemption attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "SUCCESS"
	OutcomeAlreadyReceived Outcome = "ALREADY_RECEIVED"
	OutcomeSimilarCode     Outcome = "ALREADY_REDEEMED_SIMILAR_CODE"
	OutcomeNotLoggedIn     Outcome = "NOT_LOGIN_FAILED"
	OutcomeError           Outcome = "ERROR"
)

// Report is the fan-in result of one batch run. Partitions hold nicknames;
// empty partitions are omitted from the serialized form.
type Report struct {
	RunID      string    `json:"run_id"`
	Code       string    `json:"code"`
	Total      int       `json:"total"`
	Skipped    int       `json:"skipped,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Success         []string `json:"success,omitempty"`
	AlreadyReceived []string `json:"already_received,omitempty"`
	SimilarCode     []string `json:"already_redeemed_similar,omitempty"`
	NotLoggedIn     []string `json:"not_logged_in,omitempty"`
	Errors          []string `json:"error,omitempty"`
}

// Add routes a nickname into the partition for the given outcome.
func (r *Report) Add(outcome Outcome, nickname string) {
	switch outcome {
	case OutcomeSuccess:
		r.Success = append(r.Success, nickname)
	case OutcomeAlreadyReceived:
		r.AlreadyReceived = append(r.AlreadyReceived, nickname)
	case OutcomeSimilarCode:
		r.SimilarCode = append(r.SimilarCode, nickname)
	case OutcomeNotLoggedIn:
		r.NotLoggedIn = append(r.NotLoggedIn, nickname)
	default:
		r.Errors = append(r.Errors, nickname)
	}
}

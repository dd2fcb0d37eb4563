package progress

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Record is evidence that a learner completed one content item.
// Unique per (EnrollmentID, ContentItemID); lessons and activities only.
// Completed is monotonic: it never flips back to false except by deletion.
type Record struct {
	ID            string    `json:"id"`
	EnrollmentID  string    `json:"enrollment_id"`
	ContentItemID string    `json:"content_item_id"`
	Completed     bool      `json:"completed"`
	Score         null.Int  `json:"score"` // percentage; activities only
	CompletedAt   time.Time `json:"completed_at"` // UTC
}

// CompletionResult reports a lesson completion; the duplicate path is a
// success, flagged rather than rejected.
type CompletionResult struct {
	Record           Record `json:"record"`
	AlreadyCompleted bool   `json:"already_completed"`
}

// ActivityResult reports a scored activity submission.
type ActivityResult struct {
	Record       Record `json:"record"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correct_count"`
	Total        int    `json:"total"`
	Resubmission bool   `json:"resubmission"`
}

// Summary is the aggregate course completion for one enrollment.
type Summary struct {
	Percentage     int `json:"percentage"`
	CompletedCount int `json:"completed_count"`
	TotalCount     int `json:"total_count"`
}

// SubmitActivityRequest maps question index to chosen option index.
type SubmitActivityRequest struct {
	Answers map[int]int `json:"answers"`
}

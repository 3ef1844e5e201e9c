package model

import "time"

type SubmissionStatus string

const (
	StatusPending           SubmissionStatus = "pending"
	StatusProcessing        SubmissionStatus = "processing"
	StatusAccepted          SubmissionStatus = "accepted"
	StatusWrongAnswer       SubmissionStatus = "wrong_answer"
	StatusTimeLimitExceeded SubmissionStatus = "time_limit_exceeded"
	StatusRuntimeError      SubmissionStatus = "runtime_error"
)

// Terminal reports whether the status ends the submission lifecycle. No
// transition may leave a terminal state.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusAccepted, StatusWrongAnswer, StatusTimeLimitExceeded, StatusRuntimeError:
		return true
	}
	return false
}

// TestResult is the simulated outcome of one test case.
type TestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Passed         bool   `json:"passed"`
	Output         string `json:"output"`
}

type Submission struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	QuestionID    string           `json:"question_id"`
	Code          string           `json:"code"`
	LanguageSlug  string           `json:"language_slug"`
	Status        SubmissionStatus `json:"status"`
	ExecutionTime *float64         `json:"execution_time,omitempty"` // Seconds
	Results       []TestResult     `json:"results,omitempty"`
	Feedback      *string          `json:"feedback,omitempty"`
	Score         int              `json:"score"`
	SubmittedAt   time.Time        `json:"submitted_at"`
}

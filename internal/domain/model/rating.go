package model

import "time"

// InitialRatingScore is the score a fresh rating starts at.
const InitialRatingScore = 1000

type DifficultyStats struct {
	Attempted int `json:"attempted"`
	Solved    int `json:"solved"`
}

type DifficultyBreakdown struct {
	Easy   DifficultyStats `json:"easy"`
	Medium DifficultyStats `json:"medium"`
	Hard   DifficultyStats `json:"hard"`
}

// Stats returns the mutable per-difficulty counters.
func (b *DifficultyBreakdown) Stats(d Difficulty) *DifficultyStats {
	switch d {
	case DifficultyEasy:
		return &b.Easy
	case DifficultyHard:
		return &b.Hard
	default:
		return &b.Medium
	}
}

// Rating is a per-user-per-language skill summary. (user_id, language_id) is
// unique; Score never goes below zero.
type Rating struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"user_id"`
	LanguageID          string              `json:"language_id"`
	Score               int                 `json:"score"`
	ProblemsSolved      int                 `json:"problems_solved"`
	TotalAttempts       int                 `json:"total_attempts"`
	AverageTime         float64             `json:"average_time"` // Mean seconds over successful attempts
	Accuracy            float64             `json:"accuracy"`     // ProblemsSolved/TotalAttempts*100
	DifficultyBreakdown DifficultyBreakdown `json:"difficulty_breakdown"`
	LastUpdated         time.Time           `json:"last_updated"`
}

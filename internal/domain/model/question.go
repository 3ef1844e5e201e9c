package model

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Difficulties lists all levels in ascending order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// Question is a coding exercise tied to a topic. A question with an empty ID
// is ephemeral: it was generated on demand and has not been persisted yet.
type Question struct {
	ID               string     `json:"id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Difficulty       Difficulty `json:"difficulty"`
	TestCases        []TestCase `json:"test_cases"`
	Solution         *string    `json:"solution,omitempty"`
	Hints            []string   `json:"hints,omitempty"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	PointsValue      int        `json:"points_value"`
	TopicID          string     `json:"topic_id"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Ephemeral reports whether the question has not been persisted.
func (q *Question) Ephemeral() bool {
	return q.ID == ""
}

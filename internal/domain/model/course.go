package model

import (
	"encoding/json"
	"time"
)

// Course groups curriculum modules under one instructor. Learners enroll to
// track which courses they follow; enrollment is idempotent per user.
type Course struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Thumbnail       *string   `json:"thumbnail,omitempty"`
	IsPublished     bool      `json:"is_published"`
	EnrollmentCount int       `json:"enrollment_count"`
	Duration        *string   `json:"duration,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	InstructorID    string    `json:"instructor_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Populated on single-course reads only.
	Modules []CourseModule `json:"modules,omitempty"`
}

// CourseModule is one ordered unit of content inside a course.
type CourseModule struct {
	ID          string          `json:"id"`
	CourseID    string          `json:"course_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Position    int             `json:"position"`
	IsPublished bool            `json:"is_published"`
	Content     json.RawMessage `json:"content,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

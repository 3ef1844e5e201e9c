package model

import "time"

// Topic is a unit of curriculum within one language. (name, language_id) is
// unique at the storage level.
type Topic struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LanguageID  string    `json:"language_id"`
	CreatedAt   time.Time `json:"created_at"`
}

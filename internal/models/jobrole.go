package models

import (
	"time"

	"github.com/google/uuid"
)

// JobRole is a catalog entry interviews are generated against.
type JobRole struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Seniority   string    `json:"seniority"`
	CreatedAt   time.Time `json:"created_at"`
}

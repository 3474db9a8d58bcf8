package models

import (
	"time"

	"github.com/google/uuid"
)

// Resume is an uploaded résumé with extracted plain text.
type Resume struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Filename  string    `json:"filename"`
	S3Key     string    `json:"s3_key"`
	Text      string    `json:"-"`
	PageCount int       `json:"page_count"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}

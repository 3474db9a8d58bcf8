package resumes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepview/backend/internal/models"
)

// ErrNotFound is returned when a résumé does not exist.
var ErrNotFound = errors.New("resume not found")

// Repository handles résumé persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a resumes repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a résumé row. The ID must be pre-generated because it is
// part of the S3 key written before the insert.
func (r *Repository) Create(ctx context.Context, resume *models.Resume) error {
	const q = `INSERT INTO resumes (id, user_id, filename, s3_key, extracted_text, page_count, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q, resume.ID, resume.UserID, resume.Filename, resume.S3Key,
		resume.Text, resume.PageCount, resume.FileSize).Scan(&resume.CreatedAt)
}

// GetByID returns a résumé including its extracted text.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Resume, error) {
	const q = `SELECT id, user_id, filename, s3_key, extracted_text, page_count, file_size, created_at
		FROM resumes WHERE id = $1`
	var resume models.Resume
	err := r.pool.QueryRow(ctx, q, id).Scan(&resume.ID, &resume.UserID, &resume.Filename,
		&resume.S3Key, &resume.Text, &resume.PageCount, &resume.FileSize, &resume.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resume, nil
}

// ListByUser returns a user's résumés, newest first, without extracted text.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Resume, error) {
	const q = `SELECT id, user_id, filename, s3_key, page_count, file_size, created_at
		FROM resumes WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Resume
	for rows.Next() {
		var resume models.Resume
		if err := rows.Scan(&resume.ID, &resume.UserID, &resume.Filename, &resume.S3Key,
			&resume.PageCount, &resume.FileSize, &resume.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, resume)
	}
	return list, rows.Err()
}

package jobroles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepview/backend/internal/models"
)

// ErrNotFound is returned when a job role does not exist.
var ErrNotFound = errors.New("job role not found")

// Repository handles job role persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a job roles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all job roles ordered by title.
func (r *Repository) List(ctx context.Context) ([]models.JobRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, description, seniority, created_at FROM job_roles ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.JobRole
	for rows.Next() {
		var jr models.JobRole
		if err := rows.Scan(&jr.ID, &jr.Title, &jr.Description, &jr.Seniority, &jr.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, jr)
	}
	return list, rows.Err()
}

// GetByID returns a job role by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.JobRole, error) {
	var jr models.JobRole
	err := r.pool.QueryRow(ctx, `SELECT id, title, description, seniority, created_at FROM job_roles WHERE id = $1`, id).
		Scan(&jr.ID, &jr.Title, &jr.Description, &jr.Seniority, &jr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &jr, nil
}

// Create inserts a new job role.
func (r *Repository) Create(ctx context.Context, jr *models.JobRole) error {
	const q = `INSERT INTO job_roles (title, description, seniority) VALUES ($1, $2, $3) RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, jr.Title, jr.Description, jr.Seniority).Scan(&jr.ID, &jr.CreatedAt)
}

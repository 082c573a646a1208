// AngelaMos | 2026
// feedback.go

package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelamos/consultancy-api/internal/core"
)

type Feedback struct {
	ID         string    `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	Email      string    `db:"email"       json:"email"`
	Subject    string    `db:"subject"     json:"subject"`
	Message    string    `db:"message"     json:"message"`
	IdentityID *string   `db:"identity_id" json:"identity_id"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

type SubmitRequest struct {
	Name    string `json:"name"    validate:"required,max=200"`
	Email   string `json:"email"   validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	List(ctx context.Context, limit, offset int) ([]Feedback, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, f *Feedback) error {
	query := `
		INSERT INTO feedback (id, name, email, subject, message, identity_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		f.ID, f.Name, f.Email, f.Subject, f.Message, f.IdentityID,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create feedback: %w", core.TranslatePgError(err))
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	limit, offset int,
) ([]Feedback, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM feedback`); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	rows := []Feedback{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, email, subject, message, identity_id, created_at
		FROM feedback
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}

	return rows, total, nil
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Submit links the message to the caller's identity when one is signed in.
func (s *Service) Submit(
	ctx context.Context,
	identityID string,
	req SubmitRequest,
) (*Feedback, error) {
	f := &Feedback{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	if identityID != "" {
		f.IdentityID = &identityID
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}

	return f, nil
}

func (s *Service) List(
	ctx context.Context,
	page, pageSize int,
) ([]Feedback, int, error) {
	return s.repo.List(ctx, pageSize, (page-1)*pageSize)
}

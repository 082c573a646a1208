// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angelamos/consultancy-api/internal/core"
)

// Repository owns the verification columns of the identities table.
type Repository interface {
	SetToken(
		ctx context.Context,
		identityID, tokenHash string,
		expiresAt time.Time,
	) error
	ConsumeToken(
		ctx context.Context,
		email, tokenHash string,
		now time.Time,
	) (string, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) SetToken(
	ctx context.Context,
	identityID, tokenHash string,
	expiresAt time.Time,
) error {
	query := `
		UPDATE identities
		SET verification_token = $2, verification_expires = $3,
		    updated_at = NOW()
		WHERE id = $1 AND is_verified = FALSE`

	result, err := r.db.ExecContext(ctx, query, identityID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("set verification token: %w", core.ErrNotFound)
	}

	return nil
}

// ConsumeToken flips is_verified and clears the token in a single
// conditional update, so a token can succeed at most once.
func (r *repository) ConsumeToken(
	ctx context.Context,
	email, tokenHash string,
	now time.Time,
) (string, error) {
	query := `
		UPDATE identities
		SET is_verified = TRUE, verification_token = NULL,
		    verification_expires = NULL, updated_at = NOW()
		WHERE email = $1
		  AND verification_token = $2
		  AND is_verified = FALSE
		  AND verification_expires > $3
		RETURNING id`

	var id string
	err := r.db.GetContext(ctx, &id, query, email, tokenHash, now)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("consume verification token: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("consume verification token: %w", err)
	}

	return id, nil
}

func (r *repository) PurgeExpired(
	ctx context.Context,
	before time.Time,
) (int64, error) {
	query := `
		UPDATE identities
		SET verification_token = NULL, verification_expires = NULL
		WHERE is_verified = FALSE
		  AND verification_token IS NOT NULL
		  AND verification_expires < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}

	return result.RowsAffected()
}

// AngelaMos | 2026
// repository.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/consultancy-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, identity *Identity) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	Update(ctx context.Context, identity *Identity) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context, params ListParams) ([]Identity, int, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const identityColumns = `
	id, first_name, last_name, email, phone, address, password_hash, role,
	is_verified, verification_token, verification_expires,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, identity *Identity) error {
	query := `
		INSERT INTO identities (
			id, first_name, last_name, email, phone, address, password_hash,
			role, is_verified, verification_token, verification_expires
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		identity.ID,
		identity.FirstName,
		identity.LastName,
		identity.Email,
		identity.Phone,
		identity.Address,
		identity.PasswordHash,
		identity.Role,
		identity.IsVerified,
		identity.VerificationToken,
		identity.VerificationExpires,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create identity: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create identity: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`

	var identity Identity
	err := r.db.GetContext(ctx, &identity, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get identity: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	return &identity, nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`

	var identity Identity
	err := r.db.GetContext(ctx, &identity, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get identity by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by email: %w", err)
	}

	return &identity, nil
}

func (r *repository) Update(ctx context.Context, identity *Identity) error {
	query := `
		UPDATE identities
		SET first_name = $2, last_name = $3, phone = $4, address = $5,
		    role = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &identity.UpdatedAt, query,
		identity.ID,
		identity.FirstName,
		identity.LastName,
		identity.Phone,
		identity.Address,
		identity.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update identity: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE identities
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update password: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Identity, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("is_verified = $%d", argIdx))
		args = append(args, *params.Verified)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM identities WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count identities: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM identities
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		identityColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	identities := []Identity{}
	if err := r.db.SelectContext(ctx, &identities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list identities: %w", err)
	}

	return identities, total, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM identities`); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return total, nil
}

// AngelaMos | 2026
// repository.go

package instructor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/angelamos/consultancy-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, inst *Instructor) error
	GetByID(ctx context.Context, id string) (*Instructor, error)
	List(ctx context.Context, params ListParams) ([]Instructor, int, error)
	Update(ctx context.Context, inst *Instructor) error
	SetCVPath(ctx context.Context, id, path string) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	HasRated(ctx context.Context, instructorID, identityID string) (bool, error)
	Rate(ctx context.Context, rating Rating) (*Aggregate, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const instructorColumns = `
	id, first_name, last_name, email, phone, address, bio, years_experience,
	hourly_rate, courses, cv_path, average_rating, rating_count, status,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, inst *Instructor) error {
	query := `
		INSERT INTO instructors (
			id, first_name, last_name, email, phone, address, bio,
			years_experience, hourly_rate, courses, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING average_rating, rating_count, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		inst.ID,
		inst.FirstName,
		inst.LastName,
		inst.Email,
		inst.Phone,
		inst.Address,
		inst.Bio,
		inst.YearsExperience,
		inst.HourlyRate,
		inst.Courses,
		inst.Status,
	).Scan(&inst.AverageRating, &inst.RatingCount, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create instructor: %w", core.TranslatePgError(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Instructor, error) {
	query := `SELECT ` + instructorColumns + ` FROM instructors WHERE id = $1`

	var inst Instructor
	err := r.db.GetContext(ctx, &inst, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get instructor: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instructor: %w", err)
	}

	return &inst, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Instructor, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR email ILIKE $%[1]d OR bio ILIKE $%[1]d)",
			argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	if params.Course != "" {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements(courses) c WHERE c->>'title' ILIKE $%d)",
			argIdx))
		args = append(args, "%"+core.EscapeLike(params.Course)+"%")
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM instructors WHERE ` + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM instructors
		WHERE %s
		ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d`,
		instructorColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	rows := []Instructor{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	return rows, total, nil
}

// Update never touches the rating aggregate; only Rate moves it.
func (r *repository) Update(ctx context.Context, inst *Instructor) error {
	query := `
		UPDATE instructors
		SET first_name = $2, last_name = $3, email = $4, phone = $5,
		    address = $6, bio = $7, years_experience = $8, hourly_rate = $9,
		    courses = $10, status = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &inst.UpdatedAt, query,
		inst.ID,
		inst.FirstName,
		inst.LastName,
		inst.Email,
		inst.Phone,
		inst.Address,
		inst.Bio,
		inst.YearsExperience,
		inst.HourlyRate,
		inst.Courses,
		inst.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update instructor: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update instructor: %w", core.TranslatePgError(err))
	}

	return nil
}

func (r *repository) SetCVPath(ctx context.Context, id, path string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE instructors SET cv_path = $2, updated_at = NOW()
		WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("set instructor cv: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set instructor cv: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set instructor cv: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM instructors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete instructor: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Exists(ctx context.Context, id string) (bool, error) {
	if !core.ValidID(id) {
		return false, nil
	}

	var exists bool
	err := r.db.GetContext(
		ctx,
		&exists,
		`SELECT EXISTS(SELECT 1 FROM instructors WHERE id = $1)`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("check instructor: %w", err)
	}

	return exists, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM instructors`); err != nil {
		return 0, fmt.Errorf("count instructors: %w", err)
	}
	return total, nil
}

func (r *repository) HasRated(
	ctx context.Context,
	instructorID, identityID string,
) (bool, error) {
	var rated bool
	err := r.db.GetContext(ctx, &rated, `
		SELECT EXISTS(
			SELECT 1 FROM instructor_ratings
			WHERE instructor_id = $1 AND identity_id = $2
		)`, instructorID, identityID)
	if err != nil {
		return false, fmt.Errorf("check rating: %w", err)
	}
	return rated, nil
}

// Rate records the rating and folds it into the aggregate in one
// transaction. The new mean is computed by the UPDATE from the stored values,
// so concurrent raters serialize on the row lock instead of overwriting each
// other.
func (r *repository) Rate(ctx context.Context, rating Rating) (*Aggregate, error) {
	var agg Aggregate

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO instructor_ratings (instructor_id, identity_id, rating)
			VALUES ($1, $2, $3)`,
			rating.InstructorID,
			rating.IdentityID,
			rating.Rating,
		)
		if err != nil {
			err = core.TranslatePgError(err)
			switch {
			case errors.Is(err, core.ErrDuplicateKey):
				return ErrAlreadyRated
			case errors.Is(err, core.ErrForeignKey):
				return fmt.Errorf("insert rating: %w", core.ErrNotFound)
			}
			return fmt.Errorf("insert rating: %w", err)
		}

		err = tx.GetContext(ctx, &agg, `
			UPDATE instructors
			SET average_rating =
			        (average_rating * rating_count + $2) / (rating_count + 1),
			    rating_count = rating_count + 1,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING average_rating, rating_count`,
			rating.InstructorID,
			rating.Rating,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update aggregate: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update aggregate: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &agg, nil
}

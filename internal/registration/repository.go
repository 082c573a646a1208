// AngelaMos | 2026
// repository.go

package registration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/angelamos/consultancy-api/internal/core"
)

const instructorFKConstraint = "registrations_instructor_id_fkey"

type Repository interface {
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByIdentityAndFamily(
		ctx context.Context,
		identityID string,
		family Family,
	) (*Registration, error)
	List(ctx context.Context, params ListParams) ([]Registration, int, error)
	ListByIdentity(ctx context.Context, identityID string) ([]Registration, error)
	UpdateAttributes(ctx context.Context, id string, attrs core.JSONB) error
	Apply(ctx context.Context, id string, m Mutation) error
	Delete(ctx context.Context, id string) error
	HasInstructorAssignment(
		ctx context.Context,
		identityID, instructorID string,
	) (bool, error)
	CountByFamily(ctx context.Context) ([]FamilyCount, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const selectRegistration = `
	SELECT r.id, r.identity_id, r.family, r.status, r.payment_status,
	       r.instructor_id, r.attributes, r.created_at, r.updated_at,
	       i.first_name, i.last_name, i.email, i.phone
	FROM registrations r
	JOIN identities i ON i.id = r.identity_id`

func (r *repository) Create(ctx context.Context, reg *Registration) error {
	query := `
		INSERT INTO registrations (
			id, identity_id, family, status, payment_status,
			instructor_id, attributes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		reg.ID,
		reg.IdentityID,
		reg.Family,
		reg.Status,
		reg.PaymentStatus,
		reg.InstructorID,
		reg.Attributes,
	).Scan(&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create registration: %w", translate(err))
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Registration, error) {
	var reg Registration
	err := r.db.GetContext(ctx, &reg, selectRegistration+` WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get registration: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}

	return &reg, nil
}

func (r *repository) GetByIdentityAndFamily(
	ctx context.Context,
	identityID string,
	family Family,
) (*Registration, error) {
	var reg Registration
	err := r.db.GetContext(
		ctx,
		&reg,
		selectRegistration+` WHERE r.identity_id = $1 AND r.family = $2`,
		identityID,
		family,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get registration: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}

	return &reg, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Registration, int, error) {
	params.Normalize()

	conditions := []string{"r.family = $1"}
	args := []any{params.Family}
	argIdx := 2

	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, arg)
		argIdx++
	}

	if params.IdentityID != "" {
		add("r.identity_id = $%d", params.IdentityID)
	}

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(i.email ILIKE $%[1]d OR i.first_name ILIKE $%[1]d OR i.last_name ILIKE $%[1]d OR (i.first_name || ' ' || i.last_name) ILIKE $%[1]d)",
			argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Subject != "" {
		add(
			"r.attributes @> jsonb_build_object('subjects', jsonb_build_array($%d::text))",
			params.Subject,
		)
	}

	if params.TrainingType != "" {
		add(
			"r.attributes @> jsonb_build_object('training_types', jsonb_build_array($%d::text))",
			params.TrainingType,
		)
	}

	if params.DeliveryMethod != "" {
		add("r.attributes->>'delivery_method' = $%d", params.DeliveryMethod)
	}

	if params.ResearchLevel != "" {
		add("r.attributes->>'research_level' = $%d", params.ResearchLevel)
	}

	if params.Status != "" {
		add("r.status = ANY($%d)", pq.Array(splitList(params.Status)))
	}

	if params.PaymentStatus != "" {
		add("r.payment_status = $%d", params.PaymentStatus)
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM registrations r
		JOIN identities i ON i.id = r.identity_id
		WHERE %s`, whereClause)

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY r.created_at DESC
		LIMIT $%d OFFSET $%d`,
		selectRegistration, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	rows := []Registration{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	return rows, total, nil
}

func (r *repository) ListByIdentity(
	ctx context.Context,
	identityID string,
) ([]Registration, error) {
	rows := []Registration{}
	err := r.db.SelectContext(
		ctx,
		&rows,
		selectRegistration+` WHERE r.identity_id = $1 ORDER BY r.created_at`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations by identity: %w", err)
	}

	return rows, nil
}

func (r *repository) UpdateAttributes(
	ctx context.Context,
	id string,
	attrs core.JSONB,
) error {
	query := `
		UPDATE registrations
		SET attributes = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, attrs)
	if err != nil {
		return fmt.Errorf("update registration attributes: %w", err)
	}

	return requireRow(result, "update registration attributes")
}

// Apply performs every field of m in one statement. A status change only
// lands when the current status permits it; otherwise nothing is written and
// ErrInvalidTransition is returned.
func (r *repository) Apply(ctx context.Context, id string, m Mutation) error {
	query := `
		UPDATE registrations
		SET payment_status = COALESCE($2::text, payment_status),
		    status = COALESCE($3::text, status),
		    instructor_id = CASE WHEN $4::boolean THEN $5::uuid ELSE instructor_id END,
		    updated_at = NOW()
		WHERE id = $1
		  AND ($3::text IS NULL OR status = ANY($6))
		RETURNING id`

	var status, payment *string
	allowed := []string{string(StatusPending)}
	if m.Status != nil {
		s := string(*m.Status)
		status = &s
		allowed = append(allowed, s)
	}
	if m.PaymentStatus != nil {
		p := string(*m.PaymentStatus)
		payment = &p
	}

	var updated string
	err := r.db.GetContext(ctx, &updated, query,
		id,
		payment,
		status,
		m.SetInstructor,
		m.InstructorID,
		pq.Array(allowed),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return r.missOrConflict(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("apply registration change: %w", translate(err))
	}

	return nil
}

func (r *repository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := r.db.GetContext(
		ctx,
		&exists,
		`SELECT EXISTS(SELECT 1 FROM registrations WHERE id = $1)`,
		id,
	)
	if err != nil {
		return fmt.Errorf("check registration: %w", err)
	}
	if !exists {
		return fmt.Errorf("apply registration change: %w", core.ErrNotFound)
	}
	return ErrInvalidTransition
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM registrations WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}

	return requireRow(result, "delete registration")
}

func (r *repository) HasInstructorAssignment(
	ctx context.Context,
	identityID, instructorID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE identity_id = $1
			  AND instructor_id = $2
			  AND family = ANY($3)
		)`

	var assigned bool
	err := r.db.GetContext(
		ctx,
		&assigned,
		query,
		identityID,
		instructorID,
		pq.Array(instructorFamilies()),
	)
	if err != nil {
		return false, fmt.Errorf("check instructor assignment: %w", err)
	}

	return assigned, nil
}

func (r *repository) CountByFamily(ctx context.Context) ([]FamilyCount, error) {
	query := `
		SELECT family,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		       COUNT(*) FILTER (WHERE status = 'accepted') AS accepted,
		       COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
		       COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid
		FROM registrations
		GROUP BY family`

	counts := []FamilyCount{}
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count registrations by family: %w", err)
	}

	return counts, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func translate(err error) error {
	if core.ConstraintName(err) == instructorFKConstraint {
		return ErrInstructorNotFound
	}
	return core.TranslatePgError(err)
}

func instructorFamilies() []string {
	var out []string
	for _, f := range Families() {
		if f.HasInstructor() {
			out = append(out, string(f))
		}
	}
	return out
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

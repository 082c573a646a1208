// AngelaMos | 2026
// service.go

package registration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/storage"
)

// Actor is the verified caller a request acts for.
type Actor struct {
	IdentityID string
	IsAdmin    bool
}

// Upload is a CV attached to a tutor registration.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// Close releases the underlying file when the reader holds one.
func (u *Upload) Close() error {
	if c, ok := u.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type InstructorLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo        Repository
	instructors InstructorLookup
	store       storage.Store
	catalog     *Catalog
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewService(
	repo Repository,
	instructors InstructorLookup,
	store storage.Store,
	catalog *Catalog,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		instructors: instructors,
		store:       store,
		catalog:     catalog,
		validator:   core.NewValidator(),
		logger:      logger,
	}
}

// Create stores a pending, unpaid registration. Each identity holds at most
// one registration per family; the unique constraint settles races the
// pre-check misses.
func (s *Service) Create(
	ctx context.Context,
	actor Actor,
	family Family,
	req CreateRequest,
	cv *Upload,
) (*Registration, error) {
	ctx, span := core.StartSpan(ctx, "registration.Create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return nil, core.FromValidator(err)
	}

	attrs, err := DecodeAttributes(family, req.Attributes, s.validator, s.catalog)
	if err != nil {
		return nil, err
	}

	if err := s.checkInstructor(ctx, family, req.InstructorID); err != nil {
		return nil, err
	}

	_, err = s.repo.GetByIdentityAndFamily(ctx, actor.IdentityID, family)
	switch {
	case err == nil:
		return nil, ErrAlreadyRegistered
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("check existing registration: %w", err)
	}

	if tutor, ok := attrs.(*TutorAttributes); ok {
		tutor.CVPath = ""
		if cv != nil {
			path, err := s.storeCV(ctx, family, cv)
			if err != nil {
				return nil, err
			}
			tutor.CVPath = path
		}
	}

	data, err := core.MarshalJSONB(attrs)
	if err != nil {
		return nil, err
	}

	reg := &Registration{
		ID:            uuid.New().String(),
		IdentityID:    actor.IdentityID,
		Family:        family,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		InstructorID:  req.InstructorID,
		Attributes:    data,
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrAlreadyRegistered
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	return s.repo.GetByID(ctx, reg.ID)
}

func (s *Service) storeCV(
	ctx context.Context,
	family Family,
	cv *Upload,
) (string, error) {
	key, contentType, err := storage.DocumentKey("cv/"+string(family), cv.Filename)
	if err != nil {
		return "", core.NewValidationError("cv", "must be a PDF or Word document")
	}

	path, err := s.store.Save(ctx, key, cv.Reader, cv.Size, contentType)
	if err != nil {
		return "", fmt.Errorf("store cv: %w", err)
	}

	return path, nil
}

func (s *Service) checkInstructor(
	ctx context.Context,
	family Family,
	instructorID *string,
) error {
	if instructorID == nil {
		return nil
	}
	if !family.HasInstructor() {
		return ErrNoInstructorSlot
	}

	exists, err := s.instructors.Exists(ctx, *instructorID)
	if err != nil {
		return fmt.Errorf("check instructor: %w", err)
	}
	if !exists {
		return ErrInstructorNotFound
	}
	return nil
}

// List shows admins every row of the family and everyone else only their own.
func (s *Service) List(
	ctx context.Context,
	actor Actor,
	params ListParams,
) ([]Registration, int, error) {
	if !actor.IsAdmin {
		params.IdentityID = actor.IdentityID
	}
	params.Normalize()
	return s.repo.List(ctx, params)
}

func (s *Service) Get(
	ctx context.Context,
	actor Actor,
	family Family,
	id string,
) (*Registration, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if reg.Family != family {
		return nil, fmt.Errorf("get registration: %w", core.ErrNotFound)
	}

	if !actor.IsAdmin && !reg.OwnedBy(actor.IdentityID) {
		return nil, core.ErrForbidden
	}

	return reg, nil
}

// UpdateProfile replaces the family attributes. A stored CV path survives
// edits.
func (s *Service) UpdateProfile(
	ctx context.Context,
	actor Actor,
	family Family,
	id string,
	req UpdateProfileRequest,
) (*Registration, error) {
	reg, err := s.Get(ctx, actor, family, id)
	if err != nil {
		return nil, err
	}

	attrs, err := DecodeAttributes(family, req.Attributes, s.validator, s.catalog)
	if err != nil {
		return nil, err
	}

	if tutor, ok := attrs.(*TutorAttributes); ok {
		tutor.CVPath = ""
		if existing, err := attributesFrom(family, reg.Attributes); err == nil {
			tutor.CVPath = existing.(*TutorAttributes).CVPath
		}
	}

	data, err := core.MarshalJSONB(attrs)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAttributes(ctx, id, data); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) AdminUpdate(
	ctx context.Context,
	id string,
	m Mutation,
) (*Registration, error) {
	if m.IsEmpty() {
		return nil, core.NewValidationError("body", "no changes supplied")
	}

	if m.SetInstructor {
		reg, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.checkInstructor(ctx, reg.Family, m.InstructorID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Apply(ctx, id, m); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// Accept is idempotent for an already accepted registration.
func (s *Service) Accept(ctx context.Context, id string) (*Registration, error) {
	return s.transition(ctx, id, StatusAccepted)
}

// Reject is idempotent for an already rejected registration.
func (s *Service) Reject(ctx context.Context, id string) (*Registration, error) {
	return s.transition(ctx, id, StatusRejected)
}

func (s *Service) transition(
	ctx context.Context,
	id string,
	to Status,
) (*Registration, error) {
	if err := s.repo.Apply(ctx, id, Mutation{Status: &to}); err != nil {
		return nil, err
	}

	s.logger.Info("registration status changed",
		"registration_id", id,
		"status", to,
	)

	return s.repo.GetByID(ctx, id)
}

func (s *Service) SetPayment(
	ctx context.Context,
	id string,
	payment PaymentStatus,
) (*Registration, error) {
	if payment != PaymentPaid && payment != PaymentUnpaid {
		return nil, core.NewValidationError("payment_status", "must be paid or unpaid")
	}

	if err := s.repo.Apply(ctx, id, Mutation{PaymentStatus: &payment}); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// Delete removes the row and then, best effort, any stored CV.
func (s *Service) Delete(ctx context.Context, id string) error {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if reg.Family != FamilyTutor || s.store == nil {
		return nil
	}

	attrs, err := attributesFrom(reg.Family, reg.Attributes)
	if err != nil {
		return nil
	}
	if path := attrs.(*TutorAttributes).CVPath; path != "" {
		if err := s.store.Delete(ctx, path); err != nil {
			s.logger.Warn("stored cv not removed",
				"registration_id", id,
				"path", path,
				"error", err,
			)
		}
	}

	return nil
}

func (s *Service) ListByIdentity(
	ctx context.Context,
	identityID string,
) ([]Registration, error) {
	return s.repo.ListByIdentity(ctx, identityID)
}

// HasInstructorAssignment reports whether any of the identity's registrations
// names the instructor.
func (s *Service) HasInstructorAssignment(
	ctx context.Context,
	identityID, instructorID string,
) (bool, error) {
	return s.repo.HasInstructorAssignment(ctx, identityID, instructorID)
}

// CountByFamily always reports every family, including empty ones.
func (s *Service) CountByFamily(ctx context.Context) ([]FamilyCount, error) {
	rows, err := s.repo.CountByFamily(ctx)
	if err != nil {
		return nil, err
	}

	byFamily := make(map[Family]FamilyCount, len(rows))
	for _, row := range rows {
		byFamily[row.Family] = row
	}

	out := make([]FamilyCount, 0, len(Families()))
	for _, f := range Families() {
		count := byFamily[f]
		count.Family = f
		out = append(out, count)
	}
	return out, nil
}

// decodeCreate parses a JSON create body for handlers that received the
// payload as a multipart field.
func decodeCreate(raw string) (CreateRequest, error) {
	var req CreateRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, core.NewValidationError("payload", "must be a JSON object")
	}
	return req, nil
}

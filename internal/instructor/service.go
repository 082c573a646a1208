// AngelaMos | 2026
// service.go

package instructor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/storage"
)

const (
	emailConstraint = "instructors_email_key"
	phoneConstraint = "instructors_phone_key"
)

// AssignmentChecker answers whether an identity was ever assigned to an
// instructor through a registration.
type AssignmentChecker interface {
	HasInstructorAssignment(
		ctx context.Context,
		identityID, instructorID string,
	) (bool, error)
}

type Service struct {
	repo        Repository
	assignments AssignmentChecker
	store       storage.Store
	logger      *slog.Logger
}

func NewService(
	repo Repository,
	assignments AssignmentChecker,
	store storage.Store,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		assignments: assignments,
		store:       store,
		logger:      logger,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Instructor, error) {
	status := req.Status
	if status == "" {
		status = StatusActive
	}

	inst := &Instructor{
		ID:              uuid.New().String(),
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           strings.TrimSpace(req.Phone),
		Address:         req.Address,
		Bio:             req.Bio,
		YearsExperience: req.YearsExperience,
		HourlyRate:      req.HourlyRate,
		Courses:         Courses(req.Courses).normalized(),
		Status:          status,
	}

	if err := s.repo.Create(ctx, inst); err != nil {
		return nil, conflictOr(err)
	}

	return inst, nil
}

// Get hides non-active instructors from public callers.
func (s *Service) Get(
	ctx context.Context,
	id string,
	publicOnly bool,
) (*Instructor, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if publicOnly && !inst.IsActive() {
		return nil, fmt.Errorf("get instructor: %w", core.ErrNotFound)
	}

	return inst, nil
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]Instructor, int, error) {
	params.Normalize()
	return s.repo.List(ctx, params)
}

func (s *Service) Update(
	ctx context.Context,
	id string,
	req UpdateRequest,
) (*Instructor, error) {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		inst.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		inst.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		inst.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		inst.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		inst.Address = *req.Address
	}
	if req.Bio != nil {
		inst.Bio = *req.Bio
	}
	if req.YearsExperience != nil {
		inst.YearsExperience = *req.YearsExperience
	}
	if req.HourlyRate != nil {
		inst.HourlyRate = *req.HourlyRate
	}
	if req.Courses != nil {
		inst.Courses = Courses(*req.Courses).normalized()
	}
	if req.Status != nil {
		inst.Status = *req.Status
	}

	if err := s.repo.Update(ctx, inst); err != nil {
		return nil, conflictOr(err)
	}

	return inst, nil
}

// Delete removes the instructor, their ratings and, best effort, the CV.
// Registrations that named the instructor keep their row with no instructor.
func (s *Service) Delete(ctx context.Context, id string) error {
	inst, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if inst.CVPath != nil && s.store != nil {
		if err := s.store.Delete(ctx, *inst.CVPath); err != nil {
			s.logger.Warn("instructor cv not removed",
				"instructor_id", id,
				"error", err,
			)
		}
	}

	return nil
}

// UploadCV stores the document before recording its path. A failure to
// record leaves the stored file in place.
func (s *Service) UploadCV(
	ctx context.Context,
	id, filename string,
	size int64,
	r io.Reader,
) (*Instructor, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	key, contentType, err := storage.DocumentKey("cv/instructors", filename)
	if err != nil {
		return nil, core.NewValidationError("cv", "must be a PDF or Word document")
	}

	path, err := s.store.Save(ctx, key, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("store cv: %w", err)
	}

	if err := s.repo.SetCVPath(ctx, id, path); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// Rate checks, in order: the instructor exists, the identity has not rated
// them, and the identity was assigned to them. Only then is the rating
// recorded.
func (s *Service) Rate(
	ctx context.Context,
	instructorID, identityID string,
	rating int,
) (*Aggregate, error) {
	ctx, span := core.StartSpan(ctx, "instructor.Rate")
	defer span.End()

	if identityID == "" {
		return nil, core.ErrUnauthorized
	}

	if rating < 1 || rating > 5 {
		return nil, core.NewValidationError("rating", "must be between 1 and 5")
	}

	exists, err := s.repo.Exists(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("rate instructor: %w", core.ErrNotFound)
	}

	rated, err := s.repo.HasRated(ctx, instructorID, identityID)
	if err != nil {
		return nil, err
	}
	if rated {
		return nil, ErrAlreadyRated
	}

	assigned, err := s.assignments.HasInstructorAssignment(ctx, identityID, instructorID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !assigned {
		return nil, ErrNotAssigned
	}

	agg, err := s.repo.Rate(ctx, Rating{
		InstructorID: instructorID,
		IdentityID:   identityID,
		Rating:       rating,
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyRated) {
			core.SetSpanError(ctx, err)
		}
		return nil, err
	}

	s.logger.Info("instructor rated",
		"instructor_id", instructorID,
		"rating_count", agg.RatingCount,
	)

	return agg, nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func conflictOr(err error) error {
	if !errors.Is(err, core.ErrDuplicateKey) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, emailConstraint):
		return core.ConflictError("an instructor with this email already exists", "DUPLICATE_EMAIL")
	case strings.Contains(msg, phoneConstraint):
		return core.ConflictError("an instructor with this phone already exists", "DUPLICATE_PHONE")
	default:
		return core.ConflictError("instructor already exists", "DUPLICATE")
	}
}

// AngelaMos | 2026
// service.go

package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/consultancy-api/internal/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.IdentityInfo, error) {
	identity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toIdentityInfo(identity), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.IdentityInfo, error) {
	identity, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, err
	}

	return toIdentityInfo(identity), nil
}

func (s *Service) CreateIdentity(
	ctx context.Context,
	in auth.NewIdentity,
) (*auth.IdentityInfo, error) {
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	identity := &Identity{
		ID:                  uuid.New().String(),
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Email:               strings.ToLower(in.Email),
		Phone:               in.Phone,
		Address:             in.Address,
		PasswordHash:        in.PasswordHash,
		Role:                role,
		IsVerified:          in.IsVerified,
		VerificationToken:   in.VerificationToken,
		VerificationExpires: in.VerificationExpires,
	}

	if err := s.repo.Create(ctx, identity); err != nil {
		return nil, err
	}

	return toIdentityInfo(identity), nil
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, id, passwordHash)
}

func (s *Service) GetMe(ctx context.Context, id string) (*Identity, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	id string,
	req UpdateProfileRequest,
) (*Identity, error) {
	identity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		identity.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		identity.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		identity.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		identity.Address = strings.TrimSpace(*req.Address)
	}

	if err := s.repo.Update(ctx, identity); err != nil {
		return nil, err
	}

	return identity, nil
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]Identity, int, error) {
	params.Normalize()
	return s.repo.List(ctx, params)
}

func (s *Service) Get(ctx context.Context, id string) (*Identity, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateRole takes effect at the identity's next sign-in; sessions already
// issued keep the role they were signed with.
func (s *Service) UpdateRole(
	ctx context.Context,
	id, role string,
) (*Identity, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	identity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	identity.Role = role

	if err := s.repo.Update(ctx, identity); err != nil {
		return nil, err
	}

	return identity, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func toIdentityInfo(i *Identity) *auth.IdentityInfo {
	return &auth.IdentityInfo{
		ID:           i.ID,
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		Email:        i.Email,
		PasswordHash: i.PasswordHash,
		Role:         i.Role,
		IsVerified:   i.IsVerified,
	}
}

var _ auth.IdentityProvider = (*Service)(nil)

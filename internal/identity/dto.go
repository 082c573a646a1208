// AngelaMos | 2026
// dto.go

package identity

import (
	"time"
)

type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name,omitempty"  validate:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone,omitempty"      validate:"omitempty,min=5,max=32"`
	Address   *string `json:"address,omitempty"    validate:"omitempty,max=255"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type IdentityResponse struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search"`
	Role     string `json:"role"`
	Verified *bool  `json:"verified"`
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func ToResponse(i *Identity) IdentityResponse {
	return IdentityResponse{
		ID:         i.ID,
		FirstName:  i.FirstName,
		LastName:   i.LastName,
		Email:      i.Email,
		Phone:      i.Phone,
		Address:    i.Address,
		Role:       i.Role,
		IsVerified: i.IsVerified,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}

func ToResponseList(identities []Identity) []IdentityResponse {
	responses := make([]IdentityResponse, 0, len(identities))
	for i := range identities {
		responses = append(responses, ToResponse(&identities[i]))
	}
	return responses
}

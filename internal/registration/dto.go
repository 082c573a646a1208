// AngelaMos | 2026
// dto.go

package registration

import (
	"encoding/json"
	"time"

	"github.com/angelamos/consultancy-api/internal/core"
)

type CreateRequest struct {
	InstructorID *string         `json:"instructor_id,omitempty" validate:"omitempty,uuid"`
	Attributes   json.RawMessage `json:"attributes"`
}

type UpdateProfileRequest struct {
	Attributes json.RawMessage `json:"attributes"`
}

type AdminUpdateRequest struct {
	Status          *string `json:"status,omitempty"         validate:"omitempty,oneof=accepted rejected"`
	PaymentStatus   *string `json:"payment_status,omitempty" validate:"omitempty,oneof=paid unpaid"`
	InstructorID    *string `json:"instructor_id,omitempty"  validate:"omitempty,uuid"`
	ClearInstructor bool    `json:"clear_instructor"`
}

func (r AdminUpdateRequest) Mutation() Mutation {
	var m Mutation
	if r.Status != nil {
		s := Status(*r.Status)
		m.Status = &s
	}
	if r.PaymentStatus != nil {
		p := PaymentStatus(*r.PaymentStatus)
		m.PaymentStatus = &p
	}
	switch {
	case r.ClearInstructor:
		m.SetInstructor = true
	case r.InstructorID != nil:
		m.SetInstructor = true
		m.InstructorID = r.InstructorID
	}
	return m
}

type PaymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=paid unpaid"`
}

type Applicant struct {
	IdentityID string `json:"identity_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

type Response struct {
	ID            string     `json:"id"`
	Family        Family     `json:"family"`
	Status        Status     `json:"status"`
	PaymentStatus string     `json:"payment_status"`
	InstructorID  *string    `json:"instructor_id"`
	Attributes    core.JSONB `json:"attributes"`
	Applicant     Applicant  `json:"applicant"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type ListParams struct {
	Family         Family
	IdentityID     string
	Page           int
	PageSize       int
	Search         string
	Subject        string
	DeliveryMethod string
	TrainingType   string
	ResearchLevel  string
	Status         string
	PaymentStatus  string
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

func ToResponse(r *Registration) Response {
	return Response{
		ID:            r.ID,
		Family:        r.Family,
		Status:        r.Status,
		PaymentStatus: string(r.PaymentStatus),
		InstructorID:  r.InstructorID,
		Attributes:    r.Attributes,
		Applicant: Applicant{
			IdentityID: r.IdentityID,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			Email:      r.Email,
			Phone:      r.Phone,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func ToResponseList(rows []Registration) []Response {
	out := make([]Response, 0, len(rows))
	for i := range rows {
		out = append(out, ToResponse(&rows[i]))
	}
	return out
}

type FamilyCount struct {
	Family   Family `json:"family"   db:"family"`
	Total    int    `json:"total"    db:"total"`
	Pending  int    `json:"pending"  db:"pending"`
	Accepted int    `json:"accepted" db:"accepted"`
	Rejected int    `json:"rejected" db:"rejected"`
	Paid     int    `json:"paid"     db:"paid"`
}

// AngelaMos | 2026
// dto.go

package instructor

import (
	"time"
)

type CreateRequest struct {
	FirstName       string   `json:"first_name"       validate:"required,max=100"`
	LastName        string   `json:"last_name"        validate:"required,max=100"`
	Email           string   `json:"email"            validate:"required,email,max=255"`
	Phone           string   `json:"phone"            validate:"required,max=32"`
	Address         string   `json:"address"          validate:"max=255"`
	Bio             string   `json:"bio"              validate:"max=4000"`
	YearsExperience int      `json:"years_experience" validate:"min=0,max=60"`
	HourlyRate      float64  `json:"hourly_rate"      validate:"min=0"`
	Courses         []Course `json:"courses"          validate:"dive"`
	Status          string   `json:"status"           validate:"omitempty,oneof=active inactive suspended"`
}

type UpdateRequest struct {
	FirstName       *string   `json:"first_name,omitempty"       validate:"omitempty,min=1,max=100"`
	LastName        *string   `json:"last_name,omitempty"        validate:"omitempty,min=1,max=100"`
	Email           *string   `json:"email,omitempty"            validate:"omitempty,email,max=255"`
	Phone           *string   `json:"phone,omitempty"            validate:"omitempty,min=5,max=32"`
	Address         *string   `json:"address,omitempty"          validate:"omitempty,max=255"`
	Bio             *string   `json:"bio,omitempty"              validate:"omitempty,max=4000"`
	YearsExperience *int      `json:"years_experience,omitempty" validate:"omitempty,min=0,max=60"`
	HourlyRate      *float64  `json:"hourly_rate,omitempty"      validate:"omitempty,min=0"`
	Courses         *[]Course `json:"courses,omitempty"          validate:"omitempty,dive"`
	Status          *string   `json:"status,omitempty"           validate:"omitempty,oneof=active inactive suspended"`
}

type RateRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

type ListParams struct {
	Page       int
	PageSize   int
	Search     string
	Status     string
	Course     string
	ActiveOnly bool
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
	if p.ActiveOnly {
		p.Status = StatusActive
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PublicResponse omits contact details and the CV location.
type PublicResponse struct {
	ID              string   `json:"id"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Bio             string   `json:"bio"`
	YearsExperience int      `json:"years_experience"`
	HourlyRate      float64  `json:"hourly_rate"`
	Courses         []Course `json:"courses"`
	AverageRating   float64  `json:"average_rating"`
	RatingCount     int      `json:"rating_count"`
}

type AdminResponse struct {
	PublicResponse
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CVPath    *string   `json:"cv_path"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RateResponse struct {
	InstructorID string `json:"instructor_id"`
	Rating       int    `json:"rating"`
	Aggregate
}

func ToPublicResponse(i *Instructor) PublicResponse {
	courses := []Course(i.Courses)
	if courses == nil {
		courses = []Course{}
	}
	return PublicResponse{
		ID:              i.ID,
		FirstName:       i.FirstName,
		LastName:        i.LastName,
		Bio:             i.Bio,
		YearsExperience: i.YearsExperience,
		HourlyRate:      i.HourlyRate,
		Courses:         courses,
		AverageRating:   i.AverageRating,
		RatingCount:     i.RatingCount,
	}
}

func ToAdminResponse(i *Instructor) AdminResponse {
	return AdminResponse{
		PublicResponse: ToPublicResponse(i),
		Email:          i.Email,
		Phone:          i.Phone,
		Address:        i.Address,
		CVPath:         i.CVPath,
		Status:         i.Status,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func ToPublicList(rows []Instructor) []PublicResponse {
	out := make([]PublicResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToPublicResponse(&rows[i]))
	}
	return out
}

func ToAdminList(rows []Instructor) []AdminResponse {
	out := make([]AdminResponse, 0, len(rows))
	for i := range rows {
		out = append(out, ToAdminResponse(&rows[i]))
	}
	return out
}

// AngelaMos | 2026
// entity.go

package registration

import (
	"errors"
	"time"

	"github.com/angelamos/consultancy-api/internal/core"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

var (
	ErrAlreadyRegistered  = errors.New("already registered for this service")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInstructorNotFound = errors.New("instructor not found")
	ErrNoInstructorSlot   = errors.New("family does not take an instructor")
)

// CanTransition allows pending to move to a decision and a decision to be
// repeated. Decisions never change once made.
func (s Status) CanTransition(to Status) bool {
	if to != StatusAccepted && to != StatusRejected {
		return false
	}
	return s == StatusPending || s == to
}

type Registration struct {
	ID            string        `db:"id"`
	IdentityID    string        `db:"identity_id"`
	Family        Family        `db:"family"`
	Status        Status        `db:"status"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	InstructorID  *string       `db:"instructor_id"`
	Attributes    core.JSONB    `db:"attributes"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`

	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
}

func (r *Registration) OwnedBy(identityID string) bool {
	return identityID != "" && r.IdentityID == identityID
}

// Mutation describes an admin change applied in one statement. Nil fields are
// left untouched.
type Mutation struct {
	Status        *Status
	PaymentStatus *PaymentStatus
	SetInstructor bool
	InstructorID  *string
}

func (m Mutation) IsEmpty() bool {
	return m.Status == nil && m.PaymentStatus == nil && !m.SetInstructor
}

// AngelaMos | 2026
// entity.go

package identity

import (
	"time"
)

type Identity struct {
	ID                  string     `db:"id"`
	FirstName           string     `db:"first_name"`
	LastName            string     `db:"last_name"`
	Email               string     `db:"email"`
	Phone               string     `db:"phone"`
	Address             string     `db:"address"`
	PasswordHash        string     `db:"password_hash"`
	Role                string     `db:"role"`
	IsVerified          bool       `db:"is_verified"`
	VerificationToken   *string    `db:"verification_token"`
	VerificationExpires *time.Time `db:"verification_expires"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i *Identity) FullName() string {
	return i.FirstName + " " + i.LastName
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AngelaMos | 2026
// entity.go

package auth

import (
	"fmt"
	"time"

	"github.com/angelamos/consultancy-api/internal/core"
)

// PendingVerification is a freshly issued email verification secret. Only
// TokenHash is ever persisted; Token travels once, inside the email link.
type PendingVerification struct {
	Token     string
	TokenHash string
	ExpiresAt time.Time
}

func NewPendingVerification(
	now time.Time,
	ttl time.Duration,
) (*PendingVerification, error) {
	token, err := core.GenerateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	return &PendingVerification{
		Token:     token,
		TokenHash: core.HashToken(token),
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (p *PendingVerification) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/middleware"
)

var (
	ErrEmailExists          = errors.New("email already exists")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrInvalidVerification  = errors.New("invalid or expired verification token")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
)

const (
	roleUser            = "user"
	resendCooldownKey   = "verification:resend:"
	mailDispatchTimeout = 10 * time.Second
)

type IdentityInfo struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
	IsVerified   bool
}

type NewIdentity struct {
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	Address             string
	PasswordHash        string
	Role                string
	IsVerified          bool
	VerificationToken   *string
	VerificationExpires *time.Time
}

type IdentityProvider interface {
	GetByEmail(ctx context.Context, email string) (*IdentityInfo, error)
	GetByID(ctx context.Context, id string) (*IdentityInfo, error)
	CreateIdentity(ctx context.Context, in NewIdentity) (*IdentityInfo, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type VerificationMailer interface {
	SendVerification(ctx context.Context, to, name, link string) error
}

type ServiceConfig struct {
	PublicURL      string
	TokenTTL       time.Duration
	ResendCooldown time.Duration
}

type Service struct {
	repo       Repository
	jwt        *JWTManager
	identities IdentityProvider
	mailer     VerificationMailer
	redis      *redis.Client
	cfg        ServiceConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	identities IdentityProvider,
	mailer VerificationMailer,
	redisClient *redis.Client,
	cfg ServiceConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		jwt:        jwt,
		identities: identities,
		mailer:     mailer,
		redis:      redisClient,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an identity with role "user". A caller holding an admin
// session gets an already-verified account and no email is sent.
func (s *Service) Signup(
	ctx context.Context,
	req SignupRequest,
	adminCreate bool,
) (*SignupResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.Signup")
	defer span.End()

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	in := NewIdentity{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        normalizeEmail(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		PasswordHash: passwordHash,
		Role:         roleUser,
		IsVerified:   adminCreate,
	}

	var pending *PendingVerification
	if !adminCreate {
		pending, err = NewPendingVerification(s.now(), s.cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		in.VerificationToken = &pending.TokenHash
		in.VerificationExpires = &pending.ExpiresAt
	}

	created, err := s.identities.CreateIdentity(ctx, in)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		core.SetSpanError(ctx, err)
		return nil, fmt.Errorf("create identity: %w", err)
	}

	resp := &SignupResponse{
		ID:         created.ID,
		Email:      created.Email,
		Role:       created.Role,
		IsVerified: created.IsVerified,
		Message:    "account created",
	}

	if pending != nil {
		s.dispatchVerification(ctx, created, pending.Token)
		resp.Message = "account created, check your email to verify it"
	}

	return resp, nil
}

// VerifyEmail succeeds at most once per issued token.
func (s *Service) VerifyEmail(
	ctx context.Context,
	email, token string,
) error {
	if email == "" || token == "" {
		return ErrInvalidVerification
	}

	_, err := s.repo.ConsumeToken(
		ctx,
		normalizeEmail(email),
		core.HashToken(token),
		s.now(),
	)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrInvalidVerification
		}
		return fmt.Errorf("verify email: %w", err)
	}

	return nil
}

// ResendVerification never reveals whether the address exists or is already
// verified.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	identity, err := s.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get identity: %w", err)
	}

	if identity.IsVerified {
		return nil
	}

	if !s.acquireResendSlot(ctx, email) {
		return nil
	}

	pending, err := NewPendingVerification(s.now(), s.cfg.TokenTTL)
	if err != nil {
		return err
	}

	err = s.repo.SetToken(ctx, identity.ID, pending.TokenHash, pending.ExpiresAt)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("store verification token: %w", err)
	}

	s.dispatchVerification(ctx, identity, pending.Token)
	return nil
}

func (s *Service) SignIn(
	ctx context.Context,
	req SigninRequest,
) (*SessionResponse, error) {
	ctx, span := core.StartSpan(ctx, "auth.SignIn")
	defer span.End()

	identity, err := s.identities.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&identity.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if !identity.IsVerified {
		return nil, ErrEmailNotVerified
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.identities.UpdatePassword(ctx, identity.ID, newHash)
	}

	return s.issueSession(identity)
}

func (s *Service) ChangePassword(
	ctx context.Context,
	identityID string,
	req ChangePasswordRequest,
) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return fmt.Errorf("get identity: %w", err)
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, identity.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrWrongCurrentPassword
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.identities.UpdatePassword(ctx, identityID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// PurgeExpiredTokens clears unconsumed verification tokens that expired
// before now minus retention.
func (s *Service) PurgeExpiredTokens(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now().Add(-retention))
}

func (s *Service) issueSession(identity *IdentityInfo) (*SessionResponse, error) {
	claims := sessionClaims(identity)

	session, err := s.jwt.CreateSession(claims)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &SessionResponse{
		IdentityID: claims.IdentityID,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
		Email:      claims.Email,
		Role:       claims.Role,
		Token:      session.Token,
		ExpiresAt:  session.ExpiresAt,
	}, nil
}

func (s *Service) acquireResendSlot(ctx context.Context, email string) bool {
	if s.redis == nil || s.cfg.ResendCooldown <= 0 {
		return true
	}

	ok, err := s.redis.SetNX(
		ctx,
		resendCooldownKey+email,
		1,
		s.cfg.ResendCooldown,
	).Result()
	if err != nil {
		s.logger.Warn("resend cooldown unavailable, allowing resend",
			"error", err,
		)
		return true
	}

	return ok
}

func (s *Service) dispatchVerification(
	ctx context.Context,
	identity *IdentityInfo,
	token string,
) {
	if s.mailer == nil {
		return
	}

	sendCtx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx),
		mailDispatchTimeout,
	)
	defer cancel()

	name := strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	link := s.verificationLink(identity.Email, token)

	if err := s.mailer.SendVerification(sendCtx, identity.Email, name, link); err != nil {
		s.logger.Error("verification email not sent",
			"identity_id", identity.ID,
			"error", err,
		)
		core.AddSpanEvent(ctx, "verification_email_failed")
	}
}

func (s *Service) verificationLink(email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return strings.TrimRight(s.cfg.PublicURL, "/") +
		"/v1/auth/verify-email?" + q.Encode()
}

func sessionClaims(identity *IdentityInfo) middleware.SessionClaims {
	return middleware.SessionClaims{
		IdentityID: identity.ID,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		Email:      identity.Email,
		Role:       identity.Role,
	}
}

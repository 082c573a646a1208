// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/consultancy-api/internal/core"
)

type storedIdentity struct {
	info    IdentityInfo
	token   *string
	expires *time.Time
}

// memoryIdentities backs both the identity provider and the verification
// repository so consumed tokens are visible to sign-in.
type memoryIdentities struct {
	mu      sync.Mutex
	byEmail map[string]*storedIdentity
	seq     int
}

func newMemoryIdentities() *memoryIdentities {
	return &memoryIdentities{byEmail: map[string]*storedIdentity{}}
}

func (m *memoryIdentities) GetByEmail(_ context.Context, email string) (*IdentityInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("get identity: %w", core.ErrNotFound)
	}
	info := rec.info
	return &info, nil
}

func (m *memoryIdentities) GetByID(_ context.Context, id string) (*IdentityInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byEmail {
		if rec.info.ID == id {
			info := rec.info
			return &info, nil
		}
	}
	return nil, fmt.Errorf("get identity: %w", core.ErrNotFound)
}

func (m *memoryIdentities) CreateIdentity(_ context.Context, in NewIdentity) (*IdentityInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[in.Email]; ok {
		return nil, fmt.Errorf("create identity: %w", core.ErrDuplicateKey)
	}

	m.seq++
	rec := &storedIdentity{
		info: IdentityInfo{
			ID:           fmt.Sprintf("identity-%d", m.seq),
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        in.Email,
			PasswordHash: in.PasswordHash,
			Role:         in.Role,
			IsVerified:   in.IsVerified,
		},
		token:   in.VerificationToken,
		expires: in.VerificationExpires,
	}
	m.byEmail[in.Email] = rec

	info := rec.info
	return &info, nil
}

func (m *memoryIdentities) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byEmail {
		if rec.info.ID == id {
			rec.info.PasswordHash = passwordHash
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memoryIdentities) SetToken(
	_ context.Context,
	identityID, tokenHash string,
	expiresAt time.Time,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byEmail {
		if rec.info.ID == identityID && !rec.info.IsVerified {
			rec.token = &tokenHash
			rec.expires = &expiresAt
			return nil
		}
	}
	return core.ErrNotFound
}

func (m *memoryIdentities) ConsumeToken(
	_ context.Context,
	email, tokenHash string,
	now time.Time,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byEmail[email]
	if !ok || rec.info.IsVerified || rec.token == nil ||
		*rec.token != tokenHash || !rec.expires.After(now) {
		return "", core.ErrNotFound
	}

	rec.info.IsVerified = true
	rec.token = nil
	rec.expires = nil
	return rec.info.ID, nil
}

func (m *memoryIdentities) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, rec := range m.byEmail {
		if rec.expires != nil && rec.expires.Before(before) {
			rec.token = nil
			rec.expires = nil
			n++
		}
	}
	return n, nil
}

type sentMail struct {
	to, name, link string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (r *recordingMailer) SendVerification(_ context.Context, to, name, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, sentMail{to: to, name: name, link: link})
	return r.err
}

func (r *recordingMailer) last(t *testing.T) sentMail {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

func tokenFromLink(t *testing.T, link string) (string, string) {
	t.Helper()

	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("email"), u.Query().Get("token")
}

type serviceFixture struct {
	svc        *Service
	identities *memoryIdentities
	mailer     *recordingMailer
	now        time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		identities: newMemoryIdentities(),
		mailer:     &recordingMailer{},
		now:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(
		f.identities,
		newTestJWT(t),
		f.identities,
		f.mailer,
		nil,
		ServiceConfig{
			PublicURL: "https://api.example.com/",
			TokenTTL:  24 * time.Hour,
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func signupRequest(email string) SignupRequest {
	return SignupRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     email,
		Phone:     "+15550100",
		Password:  "cobol-forever",
	}
}

func TestSignupSendsVerificationLink(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Signup(ctx, signupRequest("  Grace@Example.com "), false)
	require.NoError(t, err)

	assert.Equal(t, "grace@example.com", resp.Email)
	assert.Equal(t, roleUser, resp.Role)
	assert.False(t, resp.IsVerified)

	mail := f.mailer.last(t)
	assert.Equal(t, "grace@example.com", mail.to)
	assert.Equal(t, "Grace Hopper", mail.name)
	assert.Contains(t, mail.link, "https://api.example.com/v1/auth/verify-email?")

	email, token := tokenFromLink(t, mail.link)
	assert.Equal(t, "grace@example.com", email)
	assert.NotEmpty(t, token)

	stored := f.identities.byEmail["grace@example.com"]
	require.NotNil(t, stored.token)
	assert.NotEqual(t, token, *stored.token)
	assert.Equal(t, core.HashToken(token), *stored.token)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest("dup@example.com"), false)
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, signupRequest("DUP@example.com"), false)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestSignupByAdminIsVerified(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.svc.Signup(context.Background(), signupRequest("walkin@example.com"), true)
	require.NoError(t, err)

	assert.True(t, resp.IsVerified)
	assert.Empty(t, f.mailer.sent)

	session, err := f.svc.SignIn(context.Background(), SigninRequest{
		Email:    "walkin@example.com",
		Password: "cobol-forever",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestSignupSurvivesMailFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.mailer.err = errors.New("smtp unreachable")

	resp, err := f.svc.Signup(context.Background(), signupRequest("late@example.com"), false)
	require.NoError(t, err)
	assert.False(t, resp.IsVerified)
}

func TestVerifyEmailSucceedsOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest("once@example.com"), false)
	require.NoError(t, err)
	email, token := tokenFromLink(t, f.mailer.last(t).link)

	require.NoError(t, f.svc.VerifyEmail(ctx, email, token))
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, email, token), ErrInvalidVerification)
}

func TestVerifyEmailRejectsBadInput(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest("bad@example.com"), false)
	require.NoError(t, err)
	email, token := tokenFromLink(t, f.mailer.last(t).link)

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, email, "wrong"), ErrInvalidVerification)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "other@example.com", token), ErrInvalidVerification)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "", token), ErrInvalidVerification)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, email, ""), ErrInvalidVerification)
}

func TestVerifyEmailExpired(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest("slow@example.com"), false)
	require.NoError(t, err)
	email, token := tokenFromLink(t, f.mailer.last(t).link)

	f.now = f.now.Add(24 * time.Hour)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, email, token), ErrInvalidVerification)
}

func TestSignInErrorOrder(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest("order@example.com"), false)
	require.NoError(t, err)

	_, err = f.svc.SignIn(ctx, SigninRequest{Email: "ghost@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.SignIn(ctx, SigninRequest{Email: "order@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.SignIn(ctx, SigninRequest{Email: "order@example.com", Password: "cobol-forever"})
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	email, token := tokenFromLink(t, f.mailer.last(t).link)
	require.NoError(t, f.svc.VerifyEmail(ctx, email, token))

	session, err := f.svc.SignIn(ctx, SigninRequest{Email: "Order@Example.com", Password: "cobol-forever"})
	require.NoError(t, err)

	claims, err := f.svc.jwt.VerifySession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.IdentityID, claims.IdentityID)
	assert.Equal(t, "order@example.com", claims.Email)
	assert.Equal(t, roleUser, claims.Role)
	assert.Equal(t, "Grace", claims.FirstName)
}

func TestResendVerification(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResendVerification(ctx, "nobody@example.com"))
	assert.Empty(t, f.mailer.sent)

	_, err := f.svc.Signup(ctx, signupRequest("again@example.com"), false)
	require.NoError(t, err)
	_, oldToken := tokenFromLink(t, f.mailer.last(t).link)

	require.NoError(t, f.svc.ResendVerification(ctx, "AGAIN@example.com"))
	require.Len(t, f.mailer.sent, 2)
	email, newToken := tokenFromLink(t, f.mailer.last(t).link)
	assert.NotEqual(t, oldToken, newToken)

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, email, oldToken), ErrInvalidVerification)
	require.NoError(t, f.svc.VerifyEmail(ctx, email, newToken))

	require.NoError(t, f.svc.ResendVerification(ctx, email))
	assert.Len(t, f.mailer.sent, 2)
}

func TestChangePassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Signup(ctx, signupRequest("rotate@example.com"), true)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, resp.ID, ChangePasswordRequest{
		CurrentPassword: "not-it",
		NewPassword:     "brand-new-pass",
	})
	assert.ErrorIs(t, err, ErrWrongCurrentPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, resp.ID, ChangePasswordRequest{
		CurrentPassword: "cobol-forever",
		NewPassword:     "brand-new-pass",
	}))

	_, err = f.svc.SignIn(ctx, SigninRequest{Email: "rotate@example.com", Password: "cobol-forever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.SignIn(ctx, SigninRequest{Email: "rotate@example.com", Password: "brand-new-pass"})
	assert.NoError(t, err)
}

func TestPurgeExpiredTokens(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, signupRequest("stale@example.com"), false)
	require.NoError(t, err)

	n, err := f.svc.PurgeExpiredTokens(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(48 * time.Hour)
	n, err = f.svc.PurgeExpiredTokens(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

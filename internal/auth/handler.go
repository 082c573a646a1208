// AngelaMos | 2026
// handler.go

package auth

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/middleware"
)

type HandlerConfig struct {
	SecureCookies     bool
	VerifyRedirectURL string
}

type Handler struct {
	service   *Service
	jwt       *JWTManager
	validator *validator.Validate
	cfg       HandlerConfig
}

func NewHandler(service *Service, jwt *JWTManager, cfg HandlerConfig) *Handler {
	return &Handler{
		service:   service,
		jwt:       jwt,
		validator: core.NewValidator(),
		cfg:       cfg,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	optionalAuth func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Get("/verify-email", h.VerifyEmail)
		r.Post("/resend-verification", h.ResendVerification)
		r.Post("/signin", h.SignIn)
		r.Post("/signout", h.SignOut)

		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Post("/signup", h.Signup)
			r.Get("/session", h.Session)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if req.AdminCreate && !middleware.IsAdmin(r.Context()) {
		core.JSONError(w, core.UnauthorizedError("admin session required"))
		return
	}

	resp, err := h.service.Signup(r.Context(), req, req.AdminCreate)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	err := h.service.VerifyEmail(r.Context(), q.Get("email"), q.Get("token"))
	if err != nil && !errors.Is(err, ErrInvalidVerification) {
		core.InternalServerError(w, err)
		return
	}

	if h.cfg.VerifyRedirectURL != "" {
		http.Redirect(
			w,
			r,
			verifyRedirect(h.cfg.VerifyRedirectURL, err == nil),
			http.StatusFound,
		)
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, MessageResponse{Message: "email verified"})
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, MessageResponse{
		Message: "if the account exists and is unverified, a new link was sent",
	})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	resp, err := h.service.SignIn(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, resp.Token, int(h.jwt.SessionTTL().Seconds()))
	core.OK(w, resp)
}

func (h *Handler) SignOut(w http.ResponseWriter, _ *http.Request) {
	h.setSessionCookie(w, "", -1)
	core.NoContent(w)
}

// Session answers 200 with null data when no valid session is presented.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.OK(w, nil)
		return
	}

	core.OK(w, SessionResponse{
		IdentityID: claims.IdentityID,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
		Email:      claims.Email,
		Role:       claims.Role,
	})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identityID := middleware.GetIdentityID(r.Context())
	if identityID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req ChangePasswordRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), identityID, req); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.jwt.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func verifyRedirect(base string, verified bool) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}

	flag := "0"
	if verified {
		flag = "1"
	}

	q := u.Query()
	q.Set("verified", flag)
	u.RawQuery = q.Encode()
	return u.String()
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmailExists):
		core.JSONError(w, core.ConflictError(
			"an account with this email already exists",
			"EMAIL_EXISTS",
		))
	case errors.Is(err, ErrAccountNotFound):
		core.JSONError(w, core.NewAppError(
			core.ErrUnauthorized,
			"no account found for this email",
			http.StatusUnauthorized,
			"ACCOUNT_NOT_FOUND",
		))
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.NewAppError(
			core.ErrUnauthorized,
			"invalid email or password",
			http.StatusUnauthorized,
			"INVALID_CREDENTIALS",
		))
	case errors.Is(err, ErrEmailNotVerified):
		core.JSONError(w, core.NewAppError(
			core.ErrUnauthorized,
			"email address has not been verified",
			http.StatusUnauthorized,
			"EMAIL_NOT_VERIFIED",
		))
	case errors.Is(err, ErrInvalidVerification):
		core.JSONError(w, core.NewAppError(
			core.ErrInvalidInput,
			"verification link is invalid or has expired",
			http.StatusBadRequest,
			"INVALID_VERIFICATION_TOKEN",
		))
	case errors.Is(err, ErrWrongCurrentPassword):
		core.JSONError(w, core.NewValidationError(
			"current_password",
			"is incorrect",
		))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "identity")
	default:
		core.InternalServerError(w, err)
	}
}

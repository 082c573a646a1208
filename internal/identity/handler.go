// AngelaMos | 2026
// handler.go

package identity

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/identities", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Patch("/me", h.UpdateMe)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	identityID := middleware.GetIdentityID(r.Context())

	identity, err := h.service.GetMe(r.Context(), identityID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(identity))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identityID := middleware.GetIdentityID(r.Context())

	var req UpdateProfileRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	identity, err := h.service.UpdateMe(r.Context(), identityID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(identity))
}

// RegisterAdminRoutes mounts identity management under an already
// admin-gated router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/identities", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{identityID}", h.Get)
		r.Put("/{identityID}/role", h.UpdateRole)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
		Verified: core.QueryBool(r, "verified"),
	}
	params.Normalize()

	identities, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToResponseList(identities),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identityID(w, r)
	if !ok {
		return
	}

	identity, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(identity))
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := identityID(w, r)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	identity, err := h.service.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(identity))
}

func identityID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "identityID")
	if !core.ValidID(id) {
		core.NotFound(w, "identity")
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrNotFound) {
		core.NotFound(w, "identity")
		return
	}
	core.InternalServerError(w, err)
}

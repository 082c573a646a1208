// AngelaMos | 2026
// handler.go

package feedback

import (
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
	optionalAuth func(http.Handler) http.Handler,
) {
	r.With(optionalAuth).Post("/feedback", h.Submit)
}

// RegisterAdminRoutes mounts the feedback inbox under an already admin-gated
// router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/feedback", h.List)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	f, err := h.service.Submit(
		r.Context(),
		middleware.GetIdentityID(r.Context()),
		req,
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, f)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := max(core.QueryInt(r, "page", 1), 1)
	pageSize := min(max(core.QueryInt(r, "page_size", 20), 1), 100)

	rows, total, err := h.service.List(r.Context(), page, pageSize)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, rows, page, pageSize, total)
}

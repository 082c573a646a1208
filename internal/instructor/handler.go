// AngelaMos | 2026
// handler.go

package instructor

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/middleware"
)

type Handler struct {
	service        *Service
	validator      *validator.Validate
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		validator:      core.NewValidator(),
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/instructors", func(r chi.Router) {
		r.Get("/", h.ListPublic)
		r.Get("/{instructorID}", h.GetPublic)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/{instructorID}/ratings", h.Rate)
		})
	})
}

// RegisterAdminRoutes mounts instructor management under an already
// admin-gated router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/instructors", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{instructorID}", h.Get)
		r.Patch("/{instructorID}", h.Update)
		r.Delete("/{instructorID}", h.Delete)
		r.Put("/{instructorID}/cv", h.UploadCV)
	})
}

func listParams(r *http.Request) ListParams {
	q := r.URL.Query()
	p := ListParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", 20),
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Course:   q.Get("course"),
	}
	return p
}

func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)
	params.ActiveOnly = true
	params.Normalize()

	rows, total, err := h.service.List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, ToPublicList(rows), params.Page, params.PageSize, total)
}

func (h *Handler) GetPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := instructorID(w, r)
	if !ok {
		return
	}

	inst, err := h.service.Get(r.Context(), id, true)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToPublicResponse(inst))
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	identityID := middleware.GetIdentityID(r.Context())
	if identityID == "" {
		core.Unauthorized(w, "")
		return
	}

	id, ok := instructorID(w, r)
	if !ok {
		return
	}

	var req RateRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	agg, err := h.service.Rate(r.Context(), id, identityID, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, RateResponse{
		InstructorID: id,
		Rating:       req.Rating,
		Aggregate:    *agg,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)
	params.Normalize()

	rows, total, err := h.service.List(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, ToAdminList(rows), params.Page, params.PageSize, total)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	inst, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToAdminResponse(inst))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := instructorID(w, r)
	if !ok {
		return
	}

	inst, err := h.service.Get(r.Context(), id, false)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAdminResponse(inst))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := instructorID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	inst, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAdminResponse(inst))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := instructorID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) UploadCV(w http.ResponseWriter, r *http.Request) {
	id, ok := instructorID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		core.BadRequest(w, "invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("cv")
	if err != nil {
		core.ValidationFailed(w, core.NewValidationError("cv", "is required"))
		return
	}
	defer file.Close() //nolint:errcheck // read-only multipart file

	inst, err := h.service.UploadCV(r.Context(), id, header.Filename, header.Size, file)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToAdminResponse(inst))
}

func instructorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "instructorID")
	if !core.ValidID(id) {
		core.NotFound(w, "instructor")
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsAppError(err):
		core.JSONError(w, err)
	case errors.Is(err, ErrAlreadyRated):
		core.Conflict(w, "you have already rated this instructor", "ALREADY_RATED")
	case errors.Is(err, ErrNotAssigned):
		core.JSONError(w, core.NewAppError(
			core.ErrForbidden,
			"only clients assigned to this instructor can rate them",
			http.StatusForbidden,
			"NOT_ASSIGNED",
		))
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "instructor")
	case errors.Is(err, core.ErrInvalidInput):
		core.JSONError(w, err)
	default:
		core.InternalServerError(w, err)
	}
}

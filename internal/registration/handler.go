// AngelaMos | 2026
// handler.go

package registration

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/consultancy-api/internal/core"
	"github.com/angelamos/consultancy-api/internal/middleware"
)

const (
	cvField      = "cv"
	payloadField = "payload"
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
	r.Route("/registrations", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.ListMine)
		r.Post("/{family}", h.Create)
		r.Get("/{family}", h.List)
		r.Get("/{family}/{registrationID}", h.Get)
		r.Patch("/{family}/{registrationID}", h.UpdateProfile)
	})
}

// RegisterAdminRoutes mounts registration management under an already
// admin-gated router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/registrations/{registrationID}", func(r chi.Router) {
		r.Patch("/", h.AdminUpdate)
		r.Delete("/", h.Delete)
		r.Post("/accept", h.Accept)
		r.Post("/reject", h.Reject)
		r.Put("/payment", h.SetPayment)
	})
}

func actorFrom(r *http.Request) Actor {
	return Actor{
		IdentityID: middleware.GetIdentityID(r.Context()),
		IsAdmin:    middleware.IsAdmin(r.Context()),
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	family, err := ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		writeError(w, err)
		return
	}

	req, cv, ok := h.readCreate(w, r, family)
	if !ok {
		return
	}
	if cv != nil {
		defer cv.Close() //nolint:errcheck // read-only multipart file
	}

	reg, err := h.service.Create(r.Context(), actorFrom(r), family, req, cv)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, ToResponse(reg))
}

// readCreate accepts a JSON body, or for tutors a multipart form carrying the
// JSON in a "payload" field next to an optional "cv" file.
func (h *Handler) readCreate(
	w http.ResponseWriter,
	r *http.Request,
	family Family,
) (CreateRequest, *Upload, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req CreateRequest
		if err := core.DecodeJSON(r, &req); err != nil {
			core.BadRequest(w, "invalid request body")
			return req, nil, false
		}
		return req, nil, true
	}

	if family != FamilyTutor {
		core.BadRequest(w, "file uploads are only accepted for tutor registrations")
		return CreateRequest{}, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		core.BadRequest(w, "invalid multipart form or file too large")
		return CreateRequest{}, nil, false
	}

	req, err := decodeCreate(r.FormValue(payloadField))
	if err != nil {
		core.JSONError(w, err)
		return req, nil, false
	}

	file, header, err := r.FormFile(cvField)
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil, true
	}
	if err != nil {
		core.BadRequest(w, "invalid cv upload")
		return req, nil, false
	}

	return req, &Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   file,
	}, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	family, err := ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	params := ListParams{
		Family:         family,
		Page:           core.QueryInt(r, "page", 1),
		PageSize:       core.QueryInt(r, "page_size", 20),
		Search:         q.Get("search"),
		Subject:        q.Get("subject"),
		DeliveryMethod: q.Get("delivery_method"),
		TrainingType:   q.Get("training_type"),
		ResearchLevel:  q.Get("research_level"),
		Status:         q.Get("status"),
		PaymentStatus:  q.Get("payment_status"),
	}
	params.Normalize()

	rows, total, err := h.service.List(r.Context(), actorFrom(r), params)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Paginated(w, ToResponseList(rows), params.Page, params.PageSize, total)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListByIdentity(
		r.Context(),
		middleware.GetIdentityID(r.Context()),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponseList(rows))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	family, id, ok := pathParams(w, r)
	if !ok {
		return
	}

	reg, err := h.service.Get(r.Context(), actorFrom(r), family, id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(reg))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	family, id, ok := pathParams(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	reg, err := h.service.UpdateProfile(r.Context(), actorFrom(r), family, id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(reg))
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	var req AdminUpdateRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	reg, err := h.service.AdminUpdate(r.Context(), id, req.Mutation())
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(reg))
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	reg, err := h.service.Accept(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(reg))
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	reg, err := h.service.Reject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(reg))
}

func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	var req PaymentRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	reg, err := h.service.SetPayment(r.Context(), id, PaymentStatus(req.PaymentStatus))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, ToResponse(reg))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := registrationID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func pathParams(w http.ResponseWriter, r *http.Request) (Family, string, bool) {
	family, err := ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		writeError(w, err)
		return "", "", false
	}

	id, ok := registrationID(w, r)
	return family, id, ok
}

func registrationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "registrationID")
	if !core.ValidID(id) {
		core.NotFound(w, "registration")
		return "", false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	var vErr *core.ValidationError
	switch {
	case errors.As(err, &vErr):
		core.ValidationFailed(w, vErr)
	case errors.Is(err, ErrAlreadyRegistered):
		core.Conflict(w, "you are already registered for this service", "ALREADY_REGISTERED")
	case errors.Is(err, ErrInvalidTransition):
		core.Conflict(w, "a decision has already been made for this registration", "INVALID_TRANSITION")
	case errors.Is(err, ErrInstructorNotFound):
		core.NotFound(w, "instructor")
	case errors.Is(err, ErrNoInstructorSlot):
		core.ValidationFailed(w, core.NewValidationError(
			"instructor_id",
			"this service does not take an instructor",
		))
	case errors.Is(err, ErrUnknownFamily):
		core.NotFound(w, "registration type")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "registration")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, "")
	default:
		core.InternalServerError(w, err)
	}
}

package certificates

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clubs-council/members-service/internal/platform/httpx"
	"github.com/clubs-council/members-service/internal/shared"
)

// Handler exposes certificate operations over JSON. Certificate numbers
// contain slashes, so they travel in bodies and query strings rather
// than path segments.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers certificate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.request)
	r.Post("/verify", h.verify)
	r.Post("/approve", h.approve)
	r.Post("/reject", h.reject)
	r.Get("/detail", h.get)
	r.Get("/mine", h.listMine)
	r.Get("/", h.list)
}

// requestResponse returns the certificate plus the one-time key.
type requestResponse struct {
	Certificate *Certificate `json:"certificate"`
	Key         string       `json:"key"`
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Reason string `json:"request_reason"`
	}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &input); err != nil {
			httpx.RespondError(w, shared.Wrap(shared.KindValidation, "malformed request body", err))
			return
		}
	}
	caller := shared.IdentityFromContext(r.Context())
	cert, key, err := h.service.Request(r.Context(), caller, input.Reason)
	if err != nil {
		h.logError(r, "request certificate", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, requestResponse{Certificate: cert, Key: key})
}

// numberTarget identifies one certificate in a transition request.
type numberTarget struct {
	Number string `json:"certificate_number" validate:"required"`
}

func (h *Handler) decodeTarget(r *http.Request) (numberTarget, error) {
	var target numberTarget
	if err := httpx.DecodeJSON(r, &target); err != nil {
		return target, shared.Wrap(shared.KindValidation, "malformed request body", err)
	}
	if err := h.validator.Struct(target); err != nil {
		return target, shared.Wrap(shared.KindValidation, "certificate_number required", err)
	}
	return target, nil
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	cert, err := h.service.Approve(r.Context(), caller, target.Number)
	if err != nil {
		h.logError(r, "approve certificate", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cert)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	cert, err := h.service.Reject(r.Context(), caller, target.Number)
	if err != nil {
		h.logError(r, "reject certificate", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cert)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Number string `json:"certificate_number" validate:"required"`
		Key    string `json:"key" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.Wrap(shared.KindValidation, "malformed request body", err))
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, shared.Wrap(shared.KindValidation, "certificate_number and key required", err))
		return
	}
	cert, err := h.service.Verify(r.Context(), input.Number, input.Key)
	if err != nil {
		h.logError(r, "verify certificate", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"valid": true, "certificate": cert})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		httpx.RespondError(w, shared.ErrValidation("number required"))
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	cert, err := h.service.Get(r.Context(), caller, number)
	if err != nil {
		h.logError(r, "get certificate", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cert)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	caller := shared.IdentityFromContext(r.Context())
	list, err := h.service.ListMine(r.Context(), caller)
	if err != nil {
		h.logError(r, "list own certificates", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	state := State(r.URL.Query().Get("state"))
	if state == "" {
		state = StatePendingCC
	}
	caller := shared.IdentityFromContext(r.Context())
	list, err := h.service.List(r.Context(), caller, state)
	if err != nil {
		h.logError(r, "list certificates", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) logError(r *http.Request, op string, err error) {
	if shared.KindOf(err) != shared.KindUnknown {
		h.logger.Debug(op, slog.String("path", r.URL.Path), slog.Any("error", err))
		return
	}
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
}

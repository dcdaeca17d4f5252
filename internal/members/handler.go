package members

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clubs-council/members-service/internal/platform/httpx"
	"github.com/clubs-council/members-service/internal/shared"
)

// Handler exposes membership operations over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers membership routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/", h.edit)
	r.Post("/delete", h.deleteMember)
	r.Post("/approve", h.approve)
	r.Post("/reject", h.reject)
	r.Post("/reassign-club", h.reassignClub)
	r.Get("/", h.get)
	r.Get("/user/{uid}", h.listUserRoles)
	r.Get("/club/{cid}", h.listClubMembers)
	r.Get("/club/{cid}/current", h.listCurrentMembers)
	r.Get("/pending", h.listPending)
}

func (h *Handler) decodeMembership(r *http.Request) (MembershipInput, error) {
	var input MembershipInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		return input, shared.Wrap(shared.KindValidation, "malformed request body", err)
	}
	if err := h.validator.Struct(input); err != nil {
		return input, shared.Wrap(shared.KindValidation, "invalid membership input", err)
	}
	return input, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeMembership(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	m, err := h.service.Create(r.Context(), caller, input)
	if err != nil {
		h.logError(r, "create member", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodeMembership(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	m, err := h.service.Edit(r.Context(), caller, input)
	if err != nil {
		h.logError(r, "edit member", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// roleTarget identifies a membership, optionally scoped to one role.
type roleTarget struct {
	CID string `json:"cid" validate:"required"`
	UID string `json:"uid" validate:"required"`
	RID string `json:"rid"`
}

func (h *Handler) decodeTarget(r *http.Request) (roleTarget, error) {
	var target roleTarget
	if err := httpx.DecodeJSON(r, &target); err != nil {
		return target, shared.Wrap(shared.KindValidation, "malformed request body", err)
	}
	if err := h.validator.Struct(target); err != nil {
		return target, shared.Wrap(shared.KindValidation, "cid and uid required", err)
	}
	return target, nil
}

func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	m, err := h.service.Delete(r.Context(), caller, target.CID, target.UID, target.RID)
	if err != nil {
		h.logError(r, "delete member", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	m, err := h.service.Approve(r.Context(), caller, target.CID, target.UID, target.RID)
	if err != nil {
		h.logError(r, "approve role", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	target, err := h.decodeTarget(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	m, err := h.service.Reject(r.Context(), caller, target.CID, target.UID, target.RID)
	if err != nil {
		h.logError(r, "reject role", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) reassignClub(w http.ResponseWriter, r *http.Request) {
	var input struct {
		OldCID string `json:"old_cid" validate:"required"`
		NewCID string `json:"new_cid" validate:"required"`
		Secret string `json:"secret" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.Wrap(shared.KindValidation, "malformed request body", err))
		return
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.RespondError(w, shared.Wrap(shared.KindValidation, "old_cid, new_cid and secret required", err))
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	count, err := h.service.ReassignClub(r.Context(), caller, input.OldCID, input.NewCID, input.Secret)
	if err != nil {
		h.logError(r, "reassign club", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": count})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	cid := r.URL.Query().Get("cid")
	uid := r.URL.Query().Get("uid")
	if cid == "" || uid == "" {
		httpx.RespondError(w, shared.ErrValidation("cid and uid required"))
		return
	}
	caller := shared.IdentityFromContext(r.Context())
	m, err := h.service.Get(r.Context(), caller, cid, uid)
	if err != nil {
		h.logError(r, "get member", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	caller := shared.IdentityFromContext(r.Context())
	list, err := h.service.ListUserRoles(r.Context(), caller, chi.URLParam(r, "uid"))
	if err != nil {
		h.logError(r, "list user roles", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) listClubMembers(w http.ResponseWriter, r *http.Request) {
	caller := shared.IdentityFromContext(r.Context())
	list, err := h.service.ListClubMembers(r.Context(), caller, chi.URLParam(r, "cid"))
	if err != nil {
		h.logError(r, "list club members", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) listCurrentMembers(w http.ResponseWriter, r *http.Request) {
	caller := shared.IdentityFromContext(r.Context())
	list, err := h.service.ListCurrentMembers(r.Context(), caller, chi.URLParam(r, "cid"))
	if err != nil {
		h.logError(r, "list current members", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	caller := shared.IdentityFromContext(r.Context())
	list, err := h.service.ListPendingMembers(r.Context(), caller)
	if err != nil {
		h.logError(r, "list pending members", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

// logError keeps handler noise down: expected domain outcomes log at
// debug, everything else at error.
func (h *Handler) logError(r *http.Request, op string, err error) {
	if shared.KindOf(err) != shared.KindUnknown {
		h.logger.Debug(op, slog.String("path", r.URL.Path), slog.Any("error", err))
		return
	}
	h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/staff-portal/internal/admin"
	"github.com/hongminglow/staff-portal/internal/auth"
	"github.com/hongminglow/staff-portal/internal/http/respond"
	"github.com/hongminglow/staff-portal/internal/invite"
	"github.com/hongminglow/staff-portal/internal/models"
	"github.com/hongminglow/staff-portal/internal/models/dto"
	"github.com/hongminglow/staff-portal/internal/roster"
)

// AdminHandler serves the user administration screen and the invitation form.
type AdminHandler struct {
	rosters *roster.Registry
	forms   *invite.Registry
	logger  logrus.FieldLogger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(rosters *roster.Registry, forms *invite.Registry, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{rosters: rosters, forms: forms, logger: logger}
}

// Register attaches admin routes. inviteLimit wraps the invitation route.
func (h *AdminHandler) Register(r chi.Router, inviteLimit func(http.Handler) http.Handler) {
	r.Get("/admin/users", h.handleList)
	r.Post("/admin/users/reload", h.handleReload)
	r.Put("/admin/users/{userID}/role", h.handleRoleChange)
	r.With(inviteLimit).Post("/admin/invitations", h.handleInvite)
	r.Get("/admin/invitations/form", h.handleInviteForm)
	r.Delete("/admin/invitations/form", h.handleClearInviteForm)
}

func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	model, ok := h.model(w, r)
	if !ok {
		return
	}
	_ = model.Mount(r.Context())
	h.writeSnapshot(w, model.Snapshot())
}

func (h *AdminHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	model, ok := h.model(w, r)
	if !ok {
		return
	}
	_ = model.Reload(r.Context())
	h.writeSnapshot(w, model.Snapshot())
}

func (h *AdminHandler) handleRoleChange(w http.ResponseWriter, r *http.Request) {
	model, ok := h.model(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		respond.AdminError(w, admin.Validation("invalid user id %q", userID), nil)
		return
	}
	var req dto.RoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Role) == "" {
		respond.AdminError(w, admin.Validation("role is required"), nil)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respond.AdminError(w, admin.Validation("%s", err.Error()), nil)
		return
	}

	err = model.ChangeRole(r.Context(), userID, role)
	snapshot := rosterResponse(model.Snapshot())
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, "role updated", snapshot)
	case errors.Is(err, roster.ErrMutationPending), errors.Is(err, roster.ErrNotLoaded):
		respond.JSON(w, http.StatusConflict, err.Error(), snapshot)
	case errors.Is(err, roster.ErrProtectedAccount):
		respond.JSON(w, http.StatusForbidden, err.Error(), snapshot)
	case errors.Is(err, roster.ErrUnknownUser):
		respond.JSON(w, http.StatusNotFound, err.Error(), snapshot)
	default:
		h.logFailure(r, "set user role", err)
		respond.AdminError(w, err, snapshot)
	}
}

func (h *AdminHandler) handleInvite(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}

	var req dto.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	msg, err := form.SubmitFields(r.Context(), invite.Fields{
		Email:      req.Email,
		FullName:   req.FullName,
		Department: req.Department,
		Title:      req.Title,
		Role:       models.Role(req.Role),
	})
	if err != nil {
		var fieldErr *invite.FieldError
		switch {
		case errors.Is(err, invite.ErrSubmitting):
			respond.JSON(w, http.StatusConflict, err.Error(), inviteFormResponse(form))
		case errors.As(err, &fieldErr):
			respond.JSON(w, http.StatusBadRequest, fieldErr.Error(), map[string][]string{"fields": fieldErr.Fields})
		default:
			h.logFailure(r, "invite user", err)
			respond.AdminError(w, err, nil)
		}
		return
	}
	respond.JSON(w, http.StatusCreated, msg, dto.InviteResponse{Message: msg})
}

func (h *AdminHandler) handleInviteForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, "ok", inviteFormResponse(form))
}

func (h *AdminHandler) handleClearInviteForm(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	if err := form.Clear(); err != nil {
		respond.JSON(w, http.StatusConflict, err.Error(), inviteFormResponse(form))
		return
	}
	respond.JSON(w, http.StatusOK, "form cleared", inviteFormResponse(form))
}

func (h *AdminHandler) model(w http.ResponseWriter, r *http.Request) (*roster.Model, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing session")
		return nil, false
	}
	return h.rosters.For(p), true
}

func (h *AdminHandler) form(w http.ResponseWriter, r *http.Request) (*invite.Form, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing session")
		return nil, false
	}
	return h.forms.For(p), true
}

func (h *AdminHandler) writeSnapshot(w http.ResponseWriter, s roster.Snapshot) {
	if s.State == roster.StateLoadError {
		respond.AdminError(w, s.Cause, rosterResponse(s))
		return
	}
	respond.JSON(w, http.StatusOK, "ok", rosterResponse(s))
}

func (h *AdminHandler) logFailure(r *http.Request, action string, err error) {
	entry := h.logger.WithError(err).WithField("kind", admin.KindOf(err).String())
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		entry = entry.WithField("principal", p.Email)
	}
	entry.Warn(action + " failed")
}

func rosterResponse(s roster.Snapshot) dto.RosterResponse {
	out := dto.RosterResponse{
		State:         string(s.State),
		Users:         make([]dto.RosterRow, 0, len(s.Rows)),
		PendingUserID: s.PendingUserID,
		Error:         s.Err,
	}
	for _, row := range s.Rows {
		out.Users = append(out.Users, dto.RosterRow{
			UserRecord:    row.UserRecord,
			CanChangeRole: row.CanChangeRole,
			Pending:       row.Pending,
		})
	}
	return out
}

func inviteFormResponse(f *invite.Form) dto.InviteFormResponse {
	fields, status := f.Fields(), f.Status()
	return dto.InviteFormResponse{
		Fields: dto.InviteRequest{
			Email:      fields.Email,
			FullName:   fields.FullName,
			Department: fields.Department,
			Title:      fields.Title,
			Role:       string(fields.Role),
		},
		Submitting: status.Submitting,
		Error:      status.Err,
		Success:    status.Success,
	}
}

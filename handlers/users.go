package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

type UsersHandler struct {
	base
	Engine *circulation.Engine
}

type UpdateRoleRequest struct {
	Role models.Role `json:"role"`
}

// Create registers a user. Staff may add readers; only admins may add staff.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req circulation.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}
	var user *models.User
	err := h.run(r, func(ctx context.Context) (err error) {
		user, err = h.Engine.RegisterUser(ctx, actorOf(r), req)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// List returns users. Password hashes are omitted via json:"-".
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	err := h.run(r, func(ctx context.Context) (err error) {
		users, err = h.Engine.ListUsers(ctx, actorOf(r))
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UsersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var user *models.User
	err := h.run(r, func(ctx context.Context) (err error) {
		user, err = h.Engine.UpdateUserRole(ctx, actorOf(r), chi.URLParam(r, "id"), req.Role)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Toggle flips a user between active and inactive. A flip is not idempotent,
// so it is never retried.
func (h *UsersHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	user, err := h.Engine.ToggleUserStatus(r.Context(), actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

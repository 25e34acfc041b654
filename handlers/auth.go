package handlers

import (
	"context"
	"net/http"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

type AuthHandler struct {
	base
	Engine *circulation.Engine
	Tokens TokenIssuer
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, h.logger, circulation.InvalidInput(circulation.ErrMissingCredentials, ""))
		return
	}
	var user *models.User
	err := h.run(r, func(ctx context.Context) (err error) {
		user, err = h.Engine.Authenticate(ctx, req.Email, req.Password)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	token, err := h.Tokens.Issue(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

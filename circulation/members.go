package circulation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/circulation/models"
)

// NewUser is the input to RegisterUser.
type NewUser struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
	BranchID string      `json:"branchId"`
}

// RegisterUser creates an active account. Staff may register readers; only
// admins may register staff.
func (e *Engine) RegisterUser(ctx context.Context, actor models.Actor, nu NewUser) (*models.User, error) {
	role := models.Role(strings.TrimSpace(strings.ToLower(string(nu.Role))))
	if role == "" {
		role = models.RoleStudent
	}
	if nu.BranchID == "" {
		nu.BranchID = actor.BranchID
	}
	if err := authorize(actor, ActionRegisterUser, Target{Role: role, BranchID: nu.BranchID}); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, InvalidInput(ErrInvalidRole, string(role))
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	return e.createUser(ctx, nu.Email, nu.Name, nu.Password, role, nu.BranchID)
}

func (e *Engine) createUser(ctx context.Context, email, name, password string, role models.Role, branchID string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, InvalidInput(ErrMissingCredentials, "")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), e.passwordCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Password:  string(hash),
		Role:      role,
		BranchID:  branchID,
		IsActive:  true,
		CreatedAt: e.clock(),
	}
	if err := e.store.InsertUser(ctx, user); err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}

// EnsureBootstrapAdmin creates the first admin when the user base is empty.
// It reports whether an account was created.
func (e *Engine) EnsureBootstrapAdmin(ctx context.Context, email, password, branchID string) (bool, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	n, err := e.store.CountUsers(ctx, "")
	if err != nil {
		return false, storeErr(err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := e.createUser(ctx, email, "Administrator", password, models.RoleAdmin, branchID); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil // another instance won the race
		}
		return false, err
	}
	e.logger.InfoContext(ctx, "bootstrap admin created", slog.String("email", email))
	return true, nil
}

// Authenticate checks credentials. Inactive accounts are refused.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	user, err := e.store.UserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if errors.Is(err, ErrUserNotFound) {
		return nil, Forbidden(ErrInvalidCredentials, "")
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, Forbidden(ErrInvalidCredentials, "")
	}
	if !user.IsActive {
		return nil, Forbidden(ErrUnauthorized, user.ID)
	}
	return user, nil
}

// UpdateUserRole changes another user's role. The last admin cannot be demoted.
func (e *Engine) UpdateUserRole(ctx context.Context, actor models.Actor, userID string, role models.Role) (*models.User, error) {
	if err := authorize(actor, ActionUpdateUserRole, Target{}); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, InvalidInput(ErrInvalidRole, string(role))
	}
	if userID == actor.UserID {
		return nil, InvalidInput(ErrSelfModification, userID)
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if user.Role == models.RoleAdmin && role != models.RoleAdmin {
		err = e.store.DemoteAdmin(ctx, userID, role)
	} else {
		err = e.store.SetUserRole(ctx, userID, role)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	user.Role = role
	return user, nil
}

// ToggleUserStatus activates or deactivates another user.
func (e *Engine) ToggleUserStatus(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	if err := authorize(actor, ActionToggleUserStatus, Target{}); err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, InvalidInput(ErrSelfModification, userID)
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := e.store.SetUserActive(ctx, userID, !user.IsActive); err != nil {
		return nil, storeErr(err)
	}
	user.IsActive = !user.IsActive
	return user, nil
}

// ListUsers returns accounts. Librarians see their own branch.
func (e *Engine) ListUsers(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := authorize(actor, ActionViewUsers, Target{BranchID: actor.BranchID}); err != nil {
		return nil, err
	}
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	branchID := ""
	if actor.Role == models.RoleLibrarian {
		branchID = actor.BranchID
	}
	users, err := e.store.ListUsers(ctx, branchID)
	return users, storeErr(err)
}

package circulation

import "github.com/kevinaaaquil/circulation/models"

// Action is a guarded operation.
type Action string

const (
	ActionIssueLoan        Action = "issue_loan"
	ActionReturnLoan       Action = "return_loan"
	ActionRegisterUser     Action = "register_user"
	ActionModerateReview   Action = "moderate_review"
	ActionUpdateUserRole   Action = "update_user_role"
	ActionToggleUserStatus Action = "toggle_user_status"
	ActionViewAllLoans     Action = "view_all_loans"
	ActionViewOverdue      Action = "view_overdue"
	ActionViewUsers        Action = "view_users"
	ActionManageCatalogue  Action = "manage_catalogue"
	ActionRemoveBook       Action = "remove_book"
	ActionSubmitReview     Action = "submit_review"
)

// Target describes what an action is applied to.
type Target struct {
	BranchID string
	Role     models.Role // role being granted, for ActionRegisterUser
}

type permission struct {
	roles []models.Role
	// branchScoped limits librarians to targets in their own branch.
	branchScoped bool
}

var (
	staff     = []models.Role{models.RoleAdmin, models.RoleLibrarian}
	adminOnly = []models.Role{models.RoleAdmin}
	everyone  = models.ValidRoles
)

var permissions = map[Action]permission{
	ActionIssueLoan:        {roles: staff},
	ActionReturnLoan:       {roles: staff},
	ActionRegisterUser:     {roles: staff},
	ActionModerateReview:   {roles: staff, branchScoped: true},
	ActionUpdateUserRole:   {roles: adminOnly},
	ActionToggleUserStatus: {roles: adminOnly},
	ActionViewAllLoans:     {roles: staff, branchScoped: true},
	ActionViewOverdue:      {roles: staff, branchScoped: true},
	ActionViewUsers:        {roles: staff, branchScoped: true},
	ActionManageCatalogue:  {roles: staff, branchScoped: true},
	ActionRemoveBook:       {roles: adminOnly},
	ActionSubmitReview:     {roles: everyone},
}

// registering librarians or admins is reserved to admins
var registerStaff = permission{roles: adminOnly}

// Authorize reports whether actor may perform action on target. It has no
// side effects and is evaluated on every call; inactive actors are denied.
func Authorize(actor models.Actor, action Action, target Target) bool {
	if !actor.IsActive || actor.UserID == "" {
		return false
	}
	p, ok := permissions[action]
	if !ok {
		return false
	}
	if action == ActionRegisterUser && (target.Role.IsStaff() || !target.Role.Valid()) {
		p = registerStaff
	}
	if !hasRole(p.roles, actor.Role) {
		return false
	}
	if p.branchScoped && actor.Role == models.RoleLibrarian && target.BranchID != actor.BranchID {
		return false
	}
	return true
}

func hasRole(roles []models.Role, r models.Role) bool {
	for _, v := range roles {
		if v == r {
			return true
		}
	}
	return false
}

func authorize(actor models.Actor, action Action, target Target) error {
	if !Authorize(actor, action, target) {
		return Forbidden(ErrUnauthorized, actor.UserID)
	}
	return nil
}

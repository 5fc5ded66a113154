package domain

import "fmt"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Identity is the caller a request acts on behalf of. The zero value is anonymous.
type Identity struct {
	UserID uint   `json:"id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

var Anonymous = Identity{}

func (i Identity) IsAnonymous() bool { return i.UserID == 0 }

func (i Identity) IsAdmin() bool { return !i.IsAnonymous() && i.Role == RoleAdmin }

type Action int

const (
	ActionManageProducts Action = iota + 1
	ActionToggleFavorite
	ActionViewFavorites
	ActionViewAdminDashboard
)

func (a Action) String() string {
	switch a {
	case ActionManageProducts:
		return "manage_products"
	case ActionToggleFavorite:
		return "toggle_favorite"
	case ActionViewFavorites:
		return "view_favorites"
	case ActionViewAdminDashboard:
		return "view_admin_dashboard"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Authorize is the single role check shared by every service and route guard.
func Authorize(actor Identity, action Action) error {
	switch action {
	case ActionManageProducts, ActionViewAdminDashboard:
		if actor.IsAdmin() {
			return nil
		}
	case ActionToggleFavorite, ActionViewFavorites:
		if !actor.IsAnonymous() {
			return nil
		}
	}
	if actor.IsAnonymous() {
		return fmt.Errorf("%w: login required", ErrForbidden)
	}
	return fmt.Errorf("%w: %s requires a different role", ErrForbidden, action)
}

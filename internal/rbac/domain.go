package rbac

import (
	"time"

	"github.com/draftgate/draftgate/internal/authz"
)

// Assignment links a user account to a role. The pair is unique; the
// signup path creates exactly one assignment per new account. Roles live
// in their own table, never as a field on the self-editable profile row,
// so a user cannot escalate privileges by editing their own profile.
type Assignment struct {
	UserID    int64
	Role      authz.Role
	CreatedAt time.Time
}

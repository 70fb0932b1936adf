// Package authz evaluates the row-level authorization rules governing
// the portal. Every data-access operation is gated here, at the service
// boundary, because clients are untrusted. Decisions use only the
// authenticated identity, its role assignments, and the target row's
// owner and status; callers thread the Identity explicitly, never as
// ambient state.
package authz

// Role is a closed two-member enumeration.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether r is a member of the closed role set.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the authenticated caller: account ID plus its role
// assignments, resolved once per request.
type Identity struct {
	ID    int64
	Roles []Role
}

// HasRole reports whether a role assignment exists for the identity.
func (i Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// Profile rules: self, or any row if admin; updates are self only.

func CanReadProfile(id Identity, profileUserID int64) bool {
	return id.ID == profileUserID || id.IsAdmin()
}

func CanUpdateProfile(id Identity, profileUserID int64) bool {
	return id.ID == profileUserID
}

// Project request rules. Content fields are mutable by the owner only
// while the request is pending; status changes are admin-only and never
// gated on the current status; the owner is immutable.

func CanReadRequest(id Identity, ownerID int64) bool {
	return id.ID == ownerID || id.IsAdmin()
}

func CanUpdateRequestContent(id Identity, ownerID int64, pending bool) bool {
	return id.ID == ownerID && pending
}

func CanChangeRequestStatus(id Identity) bool {
	return id.IsAdmin()
}

func CanDeleteRequest(id Identity, ownerID int64, pending bool) bool {
	return id.ID == ownerID && pending
}

// Comment rules: visible to the request owner and admins; created,
// edited, and deleted by admins acting as themselves.

func CanReadComments(id Identity, requestOwnerID int64) bool {
	return id.ID == requestOwnerID || id.IsAdmin()
}

func CanCreateComment(id Identity, authorID int64) bool {
	return id.IsAdmin() && id.ID == authorID
}

func CanModifyComment(id Identity, authorID int64) bool {
	return id.IsAdmin() && id.ID == authorID
}

// Notification rules: recipient only. Creation is system-only, as a
// transactional side effect of comment insertion; no public predicate
// exists for it.

func CanReadNotification(id Identity, recipientID int64) bool {
	return id.ID == recipientID
}

func CanModifyNotification(id Identity, recipientID int64) bool {
	return id.ID == recipientID
}

// Attachment rules: readable by the request owner and admins; added by
// the uploader only while the caller owns the parent request and it is
// pending; deleted by the uploader while the parent is still pending.

func CanReadAttachments(id Identity, requestOwnerID int64) bool {
	return id.ID == requestOwnerID || id.IsAdmin()
}

func CanAddAttachment(id Identity, requestOwnerID int64, pending bool) bool {
	return id.ID == requestOwnerID && pending
}

func CanDeleteAttachment(id Identity, uploaderID int64, pending bool) bool {
	return id.ID == uploaderID && pending
}

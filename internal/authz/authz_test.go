package authz

import "testing"

var (
	owner = Identity{ID: 1, Roles: []Role{RoleUser}}
	admin = Identity{ID: 2, Roles: []Role{RoleAdmin}}
	other = Identity{ID: 3, Roles: []Role{RoleUser}}
)

func TestHasRole(t *testing.T) {
	if !owner.HasRole(RoleUser) {
		t.Fatal("expected user role")
	}
	if owner.IsAdmin() {
		t.Fatal("plain user must not be admin")
	}
	if !admin.IsAdmin() {
		t.Fatal("expected admin role")
	}
}

func TestValidRole(t *testing.T) {
	if !ValidRole(RoleUser) || !ValidRole(RoleAdmin) {
		t.Fatal("closed set members must validate")
	}
	if ValidRole("superuser") {
		t.Fatal("out-of-range role accepted")
	}
}

func TestRequestRules(t *testing.T) {
	if !CanReadRequest(owner, 1) {
		t.Fatal("owner read denied")
	}
	if CanReadRequest(other, 1) {
		t.Fatal("non-owner read allowed")
	}
	if !CanReadRequest(admin, 1) {
		t.Fatal("admin read denied")
	}

	if !CanUpdateRequestContent(owner, 1, true) {
		t.Fatal("owner edit of pending request denied")
	}
	if CanUpdateRequestContent(owner, 1, false) {
		t.Fatal("owner edit allowed after status left pending")
	}
	if CanUpdateRequestContent(admin, 1, true) {
		t.Fatal("content edits are owner-only, even for admins")
	}

	if !CanChangeRequestStatus(admin) {
		t.Fatal("admin status change denied")
	}
	if CanChangeRequestStatus(owner) {
		t.Fatal("owner must not change status")
	}

	if !CanDeleteRequest(owner, 1, true) {
		t.Fatal("owner delete of pending request denied")
	}
	if CanDeleteRequest(owner, 1, false) {
		t.Fatal("delete allowed on non-pending request")
	}
	if CanDeleteRequest(admin, 1, true) {
		t.Fatal("admin delete of another's request allowed")
	}
}

func TestCommentRules(t *testing.T) {
	if !CanCreateComment(admin, admin.ID) {
		t.Fatal("admin comment as self denied")
	}
	if CanCreateComment(admin, owner.ID) {
		t.Fatal("admin may only comment as themselves")
	}
	if CanCreateComment(owner, owner.ID) {
		t.Fatal("non-admin comment allowed")
	}
	if !CanReadComments(owner, 1) || !CanReadComments(admin, 1) {
		t.Fatal("request owner and admin must read comments")
	}
	if CanReadComments(other, 1) {
		t.Fatal("unrelated user read comments")
	}
}

func TestNotificationRules(t *testing.T) {
	if !CanReadNotification(owner, 1) || !CanModifyNotification(owner, 1) {
		t.Fatal("recipient access denied")
	}
	if CanReadNotification(admin, 1) || CanModifyNotification(admin, 1) {
		t.Fatal("notifications are recipient-only, even for admins")
	}
}

func TestAttachmentRules(t *testing.T) {
	if !CanAddAttachment(owner, 1, true) {
		t.Fatal("owner upload to own pending request denied")
	}
	if CanAddAttachment(owner, 1, false) {
		t.Fatal("upload allowed after request left pending")
	}
	if CanAddAttachment(other, 1, true) {
		t.Fatal("upload to someone else's request allowed")
	}
	if CanAddAttachment(admin, 1, true) {
		t.Fatal("admins do not upload to others' requests")
	}
	if !CanDeleteAttachment(owner, 1, true) {
		t.Fatal("uploader delete denied on pending request")
	}
	if CanDeleteAttachment(owner, 1, false) {
		t.Fatal("uploader delete allowed after request left pending")
	}
	if !CanReadAttachments(admin, 1) {
		t.Fatal("admin attachment read denied")
	}
}

func TestProfileRules(t *testing.T) {
	if !CanReadProfile(owner, 1) || !CanReadProfile(admin, 1) {
		t.Fatal("self/admin profile read denied")
	}
	if CanReadProfile(other, 1) {
		t.Fatal("foreign profile read allowed")
	}
	if !CanUpdateProfile(owner, 1) {
		t.Fatal("self profile update denied")
	}
	if CanUpdateProfile(admin, 1) {
		t.Fatal("profile updates are self-only")
	}
}

package api

import (
	"net/http"

	"github.com/gatehouselabs/gatehouse/pkg/permissions"
	"github.com/gatehouselabs/gatehouse/pkg/session"
)

// Permission paths gating the service's routes
const (
	PermMemberAccess  = "Member.access"
	PermMemberList    = "Member.list"
	PermPasswordReset = "Member.reset.password"
	PermAdminAccess   = "Admin.access"
)

// SignupGrants is the permission set granted to every new member
var SignupGrants = []string{PermMemberAccess}

// RegisterBootPermissions populates the permission registry with the
// service's default permission set. Call once at startup, before Freeze.
func RegisterBootPermissions(registry *permissions.Registry) error {
	if _, err := registry.Register("Member", "access", "baseline member access to own profile"); err != nil {
		return err
	}
	if _, err := registry.Register("Member", "list", "list and page through all members"); err != nil {
		return err
	}

	// The reset grant lives only in the short-lived reset token, never in
	// the store, so a store refresh would always revoke it. The check
	// hook decides from the token claims alone.
	resetDef, err := registry.Register("Member", "reset.password", "complete a password reset")
	if err != nil {
		return err
	}
	resetDef.SetCheck(func(r *http.Request, sess *session.Session) (permissions.Decision, error) {
		if sess.HasPerm(PermPasswordReset) {
			return permissions.DecisionAllow, nil
		}
		return permissions.DecisionDeny, nil
	})

	if _, err := registry.Register("Admin", "access", "administrative member management"); err != nil {
		return err
	}

	return nil
}

package permissions

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gatehouselabs/gatehouse/pkg/session"
)

// Decision is the outcome of a custom check hook
type Decision int

const (
	// DecisionDefer runs the default membership test
	DecisionDefer Decision = iota
	// DecisionAllow skips the membership test and proceeds to approve
	DecisionAllow
	// DecisionDeny routes straight to reject
	DecisionDeny
)

// CheckHook is an optional pre-check attached to a permission. It may refresh
// state, veto the request, or defer to the default membership test.
type CheckHook func(r *http.Request, sess *session.Session) (Decision, error)

// ApproveHook runs after a permission is granted. It may enrich the request
// (return a derived *http.Request) or short-circuit the pipeline by returning
// proceed=false after writing its own response.
type ApproveHook func(w http.ResponseWriter, r *http.Request, sess *session.Session) (*http.Request, bool)

// RejectHook overrides the default rejection policy for a permission
type RejectHook func(w http.ResponseWriter, r *http.Request)

// Definition is a registered permission. The handle returned by Register is
// used to attach optional hooks; a permission with no hooks uses only the
// default membership test.
type Definition struct {
	group       string
	signature   string
	description string

	check   CheckHook
	approve ApproveHook
	reject  RejectHook
}

// Group returns the permission's group name
func (d *Definition) Group() string { return d.group }

// Signature returns the permission's signature
func (d *Definition) Signature() string { return d.signature }

// Description returns the human description given at registration
func (d *Definition) Description() string { return d.description }

// Path returns the full permission path "group.signature"
func (d *Definition) Path() string { return d.group + "." + d.signature }

// SetCheck attaches a custom check hook
func (d *Definition) SetCheck(h CheckHook) *Definition {
	d.check = h
	return d
}

// SetApprove attaches a custom approve hook
func (d *Definition) SetApprove(h ApproveHook) *Definition {
	d.approve = h
	return d
}

// SetReject attaches a custom reject hook
func (d *Definition) SetReject(h RejectHook) *Definition {
	d.reject = h
	return d
}

// Check returns the check hook, or nil
func (d *Definition) Check() CheckHook { return d.check }

// Approve returns the approve hook, or nil
func (d *Definition) Approve() ApproveHook { return d.approve }

// Reject returns the reject hook, or nil
func (d *Definition) Reject() RejectHook { return d.reject }

// Registry stores permission definitions keyed by (group, signature).
// Populate at startup, Freeze before serving; reads after that need no
// locking.
type Registry struct {
	groups map[string]map[string]*Definition
	frozen bool
}

// NewRegistry creates an empty permission registry in registration mode
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]map[string]*Definition),
	}
}

// Register adds a permission definition and returns its handle for hook
// attachment. Registering an existing (group, signature) pair fails with
// ErrDuplicatePermission.
func (r *Registry) Register(group, signature, description string) (*Definition, error) {
	if r.frozen {
		return nil, ErrRegistryFrozen
	}
	if group == "" || signature == "" {
		return nil, fmt.Errorf("%w: %q.%q", ErrMalformedPath, group, signature)
	}

	sigs, exists := r.groups[group]
	if !exists {
		sigs = make(map[string]*Definition)
		r.groups[group] = sigs
	}
	if _, exists := sigs[signature]; exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrDuplicatePermission, group, signature)
	}

	def := &Definition{
		group:       group,
		signature:   signature,
		description: description,
	}
	sigs[signature] = def
	return def, nil
}

// Unregister removes a permission. No-op if absent.
func (r *Registry) Unregister(group, signature string) {
	if r.frozen {
		return
	}
	sigs, exists := r.groups[group]
	if !exists {
		return
	}
	delete(sigs, signature)
	if len(sigs) == 0 {
		delete(r.groups, group)
	}
}

// UnregisterGroup removes a whole permission group. No-op if absent.
func (r *Registry) UnregisterGroup(group string) {
	if r.frozen {
		return
	}
	delete(r.groups, group)
}

// Freeze ends the registration phase. Further registration attempts fail
// with ErrRegistryFrozen; Unregister becomes a no-op.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Resolve looks up a permission by its path. Paths split on the first dot
// only, so the signature part may itself contain dots.
func (r *Registry) Resolve(path string) (*Definition, error) {
	group, signature, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	sigs, exists := r.groups[group]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, path)
	}
	def, exists := sigs[signature]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, path)
	}
	return def, nil
}

// ParsePath splits a permission path into group and signature on the first
// dot only: "Member.reset.password" yields ("Member", "reset.password").
func ParsePath(path string) (group, signature string, err error) {
	idx := strings.Index(path, ".")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	return path[:idx], path[idx+1:], nil
}

// JoinPath builds a permission path from its parts
func JoinPath(group, signature string) string {
	return group + "." + signature
}

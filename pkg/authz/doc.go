// Package authz builds per-route authorization middleware from registered
// permissions.
//
// A dispatcher resolves a permission path against the permission registry
// at route-construction time, so an unknown path fails startup instead of
// surfacing per-request. The produced middleware enforces the decision
// protocol: no session rejects immediately; an optional check hook may
// allow, deny, or defer to the membership test; the first granted
// membership test refreshes the session's permissions and disabled flag
// from the store; disabled members are rejected regardless of membership.
package authz

package api

// CreateMemberRequest is the sign-up payload
type CreateMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthenticateRequest is the sign-in payload
type AuthenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued session token
type TokenResponse struct {
	Token string `json:"token"`
}

// ChangePasswordRequest is the authenticated password-change payload
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ForgotPasswordRequest starts the password reset flow
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes the password reset flow. The caller
// authenticates with the short-lived reset token, not a session.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// MemberListResponse is a paginated page of members
type MemberListResponse struct {
	Members []map[string]interface{} `json:"members"`
	Total   int64                    `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

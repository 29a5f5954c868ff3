package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gatehouselabs/gatehouse/pkg/credentials"
	"github.com/gatehouselabs/gatehouse/pkg/httputil"
	"github.com/gatehouselabs/gatehouse/pkg/members"
	"github.com/gatehouselabs/gatehouse/pkg/session"
)

// createMember handles POST /api/v1/members
func (s *Server) createMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var fieldErrors []httputil.FieldError
	if req.Name == "" {
		fieldErrors = append(fieldErrors, httputil.FieldError{Field: "name", Code: "required"})
	}
	if req.Email == "" {
		fieldErrors = append(fieldErrors, httputil.FieldError{Field: "email", Code: "required"})
	} else if !strings.Contains(req.Email, "@") {
		fieldErrors = append(fieldErrors, httputil.FieldError{Field: "email", Code: "invalid"})
	}
	if req.Password == "" {
		fieldErrors = append(fieldErrors, httputil.FieldError{Field: "password", Code: "required"})
	}
	if len(fieldErrors) > 0 {
		httputil.WriteValidationFailed(w, fieldErrors...)
		return
	}

	identity, err := s.members.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, members.ErrMemberExists) {
			httputil.WriteConflict(w, "member already exists")
			return
		}
		s.logError(r, "member creation failed", err)
		httputil.WriteInternalError(w, errors.New("failed to create member"))
		return
	}

	// Baseline access grant; idempotent on re-grant
	if err := s.permStore.AddAssignments(r.Context(), identity.ID, SignupGrants); err != nil {
		s.logError(r, "signup grant failed", err)
		httputil.WriteInternalError(w, errors.New("failed to create member"))
		return
	}

	httputil.WriteCreated(w, identity)
}

// authenticate handles POST /api/v1/members/authenticate
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var req AuthenticateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	identity, err := s.members.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, members.ErrAccountDisabled):
			s.countSignIn("disabled")
			httputil.WriteForbidden(w, "account disabled")
		case errors.Is(err, members.ErrVerificationFailed):
			s.countSignIn("failed")
			httputil.WriteUnauthorized(w, "verification failed")
		default:
			s.countSignIn("error")
			s.logError(r, "sign-in failed", err)
			httputil.WriteInternalError(w, errors.New("sign-in failed"))
		}
		return
	}

	// Tokens carry the live permission set at issue time
	perms, err := s.permStore.ListAssignments(r.Context(), identity.ID)
	if err != nil {
		s.countSignIn("error")
		s.logError(r, "permission lookup failed", err)
		httputil.WriteInternalError(w, errors.New("sign-in failed"))
		return
	}

	token, err := s.issuer.Issue(credentials.Claims{
		MemberID: identity.ID,
		Name:     identity.Name,
		Email:    identity.Email,
		Perms:    perms,
	}, 0)
	if err != nil {
		s.countSignIn("error")
		s.logError(r, "token issue failed", err)
		httputil.WriteInternalError(w, errors.New("sign-in failed"))
		return
	}

	s.countSignIn("ok")
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.Inc()
	}
	httputil.WriteSuccess(w, TokenResponse{Token: token})
}

// getProfile handles GET /api/v1/members/profile
func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	profile, err := s.members.GetProfile(r.Context(), sess.ID)
	if err != nil {
		if errors.Is(err, members.ErrMemberNotFound) {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.logError(r, "profile read failed", err)
		httputil.WriteInternalError(w, errors.New("failed to load profile"))
		return
	}

	httputil.WriteSuccess(w, profile)
}

// updateProfile handles PUT /api/v1/members/profile
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var updates map[string]interface{}
	if !httputil.ParseJSONOrError(w, r, &updates) {
		return
	}

	if err := s.members.UpdateProfile(r.Context(), sess.ID, updates); err != nil {
		switch {
		case errors.Is(err, members.ErrUnknownField):
			httputil.WriteValidationFailed(w, httputil.FieldError{Field: fieldFromErr(err), Code: "unknown"})
		case errors.Is(err, members.ErrMemberNotFound):
			httputil.WriteNotFoundError(w, "member not found")
		default:
			s.logError(r, "profile update failed", err)
			httputil.WriteInternalError(w, errors.New("failed to update profile"))
		}
		return
	}

	profile, err := s.members.GetProfile(r.Context(), sess.ID)
	if err != nil {
		s.logError(r, "profile reload failed", err)
		httputil.WriteInternalError(w, errors.New("failed to load profile"))
		return
	}
	httputil.WriteSuccess(w, profile)
}

// changePassword handles PUT /api/v1/members/password
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		httputil.WriteBadRequest(w, "old_password and new_password are required")
		return
	}

	if err := s.members.ChangePassword(r.Context(), sess.ID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, members.ErrIncorrectPassword):
			httputil.WriteForbidden(w, "incorrect password")
		case errors.Is(err, members.ErrMemberNotFound):
			httputil.WriteNotFoundError(w, "member not found")
		default:
			s.logError(r, "password change failed", err)
			httputil.WriteInternalError(w, errors.New("failed to change password"))
		}
		return
	}

	httputil.WriteSuccess(w, map[string]bool{"ok": true})
}

// forgotPassword handles POST /api/v1/members/forgot. It issues a
// short-lived token whose only permission is completing the reset; the
// token is not tied to a stored grant, so it cannot outlive its TTL into
// a full session. Membership is not checked here — a bad email fails at
// reset time, after the token check.
func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteValidationFailed(w, httputil.FieldError{Field: "email", Code: "invalid"})
		return
	}

	token, err := s.issuer.Issue(credentials.Claims{
		Email: req.Email,
		Perms: []string{PermPasswordReset},
	}, ResetTokenTTL)
	if err != nil {
		s.logError(r, "reset token issue failed", err)
		httputil.WriteInternalError(w, errors.New("failed to start password reset"))
		return
	}

	httputil.WriteSuccess(w, TokenResponse{Token: token})
}

// resetPassword handles PUT /api/v1/members/reset_password
func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())

	var req ResetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Password == "" {
		httputil.WriteBadRequest(w, "password is required")
		return
	}

	if err := s.members.UpdatePasswordByEmail(r.Context(), sess.Email, req.Password); err != nil {
		if errors.Is(err, members.ErrMemberNotFound) {
			s.countReset("not_found")
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.countReset("error")
		s.logError(r, "password reset failed", err)
		httputil.WriteInternalError(w, errors.New("failed to reset password"))
		return
	}

	s.countReset("ok")
	httputil.WriteSuccess(w, map[string]bool{"ok": true})
}

func (s *Server) countSignIn(status string) {
	if s.metrics != nil {
		s.metrics.SignInAttemptsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) countReset(status string) {
	if s.metrics != nil {
		s.metrics.PasswordResetsTotal.WithLabelValues(status).Inc()
	}
}

func (s *Server) logError(r *http.Request, msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.WithError(err).WithField("path", r.URL.Path).Error(msg)
}

// fieldFromErr extracts the offending field name from an ErrUnknownField
func fieldFromErr(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return "unknown"
}

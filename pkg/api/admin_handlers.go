package api

import (
	"errors"
	"net/http"

	"github.com/gatehouselabs/gatehouse/pkg/httputil"
	"github.com/gatehouselabs/gatehouse/pkg/members"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// listMembers handles GET /api/v1/admin/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := httputil.ParseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.members.List(r.Context(), limit, offset)
	if err != nil {
		s.logError(r, "member list failed", err)
		httputil.WriteInternalError(w, errors.New("failed to list members"))
		return
	}

	total, err := s.members.Count(r.Context())
	if err != nil {
		s.logError(r, "member count failed", err)
		httputil.WriteInternalError(w, errors.New("failed to list members"))
		return
	}

	httputil.WriteSuccess(w, MemberListResponse{
		Members: rows,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// getMember handles GET /api/v1/admin/members/{id}
func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	profile, err := s.members.GetFullProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, members.ErrMemberNotFound) {
			httputil.WriteNotFoundError(w, "member not found")
			return
		}
		s.logError(r, "member read failed", err)
		httputil.WriteInternalError(w, errors.New("failed to load member"))
		return
	}

	httputil.WriteSuccess(w, profile)
}

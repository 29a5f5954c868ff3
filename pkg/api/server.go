package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gatehouselabs/gatehouse/pkg/authz"
	"github.com/gatehouselabs/gatehouse/pkg/credentials"
	"github.com/gatehouselabs/gatehouse/pkg/httputil"
	"github.com/gatehouselabs/gatehouse/pkg/members"
	"github.com/gatehouselabs/gatehouse/pkg/middleware"
	"github.com/gatehouselabs/gatehouse/pkg/observability"
	"github.com/gatehouselabs/gatehouse/pkg/permissions"
	"github.com/gatehouselabs/gatehouse/pkg/session"
)

// ResetTokenTTL bounds the lifetime of password reset tokens
const ResetTokenTTL = time.Hour

// Server wires the authorization pipeline and the member handlers into
// one HTTP handler
type Server struct {
	router *mux.Router

	members       *members.Manager
	issuer        *credentials.Issuer
	permStore     permissions.Store
	dispatcher    *authz.Dispatcher
	materializer  *session.Materializer
	signInLimiter *middleware.SignInRateLimiter

	logger  *observability.Logger
	metrics *observability.Metrics
}

// ServerDeps carries the server's collaborators, built at startup
type ServerDeps struct {
	Members       *members.Manager
	Issuer        *credentials.Issuer
	PermStore     permissions.Store
	Dispatcher    *authz.Dispatcher
	Materializer  *session.Materializer
	SignInLimiter *middleware.SignInRateLimiter
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// NewServer creates the API server and builds its route table. Fails when
// a route names an unregistered permission.
func NewServer(deps ServerDeps) (*Server, error) {
	s := &Server{
		router:        mux.NewRouter(),
		members:       deps.Members,
		issuer:        deps.Issuer,
		permStore:     deps.PermStore,
		dispatcher:    deps.Dispatcher,
		materializer:  deps.Materializer,
		signInLimiter: deps.SignInLimiter,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// setupRoutes configures all API routes and their permission gates
func (s *Server) setupRoutes() error {
	s.router.Use(httputil.RequestIDMiddleware)
	if s.logger != nil {
		s.router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware(s.logger)))
		s.router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware(s.logger)))
	}
	if s.metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(s.metrics)))
	}
	s.router.Use(s.materializer.Middleware())

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/members", s.createMember).Methods("POST")
	api.HandleFunc("/members/forgot", s.forgotPassword).Methods("POST")

	// Sign-in, behind the brute-force limiter
	authenticate := http.HandlerFunc(s.authenticate)
	if s.signInLimiter != nil {
		api.Handle("/members/authenticate", s.signInLimiter.Handler(authenticate)).Methods("POST")
	} else {
		api.Handle("/members/authenticate", authenticate).Methods("POST")
	}

	// Member routes, gated on Member.access
	memberRoutes := api.PathPrefix("/members").Subrouter()
	memberAccess, err := s.dispatcher.Require(PermMemberAccess, authz.RouteAPI)
	if err != nil {
		return err
	}
	memberRoutes.Use(memberAccess)
	memberRoutes.HandleFunc("/profile", s.getProfile).Methods("GET")
	memberRoutes.HandleFunc("/profile", s.updateProfile).Methods("PUT")
	memberRoutes.HandleFunc("/password", s.changePassword).Methods("PUT")

	// Reset completion, gated on the reset-token permission
	resetRoutes := api.PathPrefix("/members/reset_password").Subrouter()
	resetAccess, err := s.dispatcher.Require(PermPasswordReset, authz.RouteAPI)
	if err != nil {
		return err
	}
	resetRoutes.Use(resetAccess)
	resetRoutes.HandleFunc("", s.resetPassword).Methods("PUT")

	// Admin routes
	adminRoutes := api.PathPrefix("/admin").Subrouter()
	adminAccess, err := s.dispatcher.Require(PermAdminAccess, authz.RouteAPI)
	if err != nil {
		return err
	}
	adminRoutes.Use(adminAccess)

	listAccess, err := s.dispatcher.Require(PermMemberList, authz.RouteAPI)
	if err != nil {
		return err
	}
	adminRoutes.Handle("/members", listAccess(http.HandlerFunc(s.listMembers))).Methods("GET")
	adminRoutes.HandleFunc("/members/{id:[0-9]+}", s.getMember).Methods("GET")

	return nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for extra route registration
func (s *Server) Router() *mux.Router {
	return s.router
}

// Package server is the HTTP login portal. Each browser is identified by an
// opaque slot cookie and owns one session.Store held server-side.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-login-portal/apiclient"
	"github.com/jrsteele09/go-login-portal/auth"
	"github.com/jrsteele09/go-login-portal/auth/flowrepo"
	"github.com/jrsteele09/go-login-portal/internal/config"
	"github.com/jrsteele09/go-login-portal/internal/metrics"
	"github.com/jrsteele09/go-login-portal/session"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Slots is the durable storage the portal persists sessions and federated flows to.
type Slots interface {
	session.Persister
	flowrepo.Slots
}

type Server struct {
	env        string
	mux        *http.ServeMux
	handler    http.Handler
	routes     []string
	config     config.Config
	sessions   *session.Registry
	httpClient *http.Client
	federated  *auth.FederatedProvider
	flows      *flowrepo.StorageRepo
	now        func() time.Time

	idleTimeout   time.Duration
	sweepInterval time.Duration

	loginTmpl *template.Template
	homeTmpl  *template.Template

	servicesMu sync.Mutex
	services   map[*session.Store]*auth.Service
}

type Option func(*Server)

// WithFederatedProvider uses p instead of discovering Google from the configuration.
func WithFederatedProvider(p *auth.FederatedProvider) Option {
	return func(s *Server) {
		s.federated = p
	}
}

// WithNowTime sets the clock for idle sessions and flow expiry (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithHTTPClient sets the client used for auth API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		s.httpClient = hc
	}
}

func New(ctx context.Context, c config.Config, slots Slots, opts ...Option) (*Server, error) {
	s := &Server{
		env:           c.GetEnv(),
		mux:           http.NewServeMux(),
		config:        c,
		httpClient:    &http.Client{},
		now:           time.Now,
		idleTimeout:   c.GetSessionIdleTimeout(),
		sweepInterval: c.GetSweepInterval(),
		services:      make(map[*session.Store]*auth.Service),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = session.NewRegistry(slots, c.GetStorageSlot(), session.WithRegistryNowTime(s.now))
	s.flows = flowrepo.NewStorageRepo(slots, flowrepo.WithNowTime(s.now))

	var err error
	if s.loginTmpl, err = ParseTemplate("login.html"); err != nil {
		return nil, fmt.Errorf("[Server New] parse login template: %w", err)
	}
	if s.homeTmpl, err = ParseTemplate("home.html"); err != nil {
		return nil, fmt.Errorf("[Server New] parse home template: %w", err)
	}

	if s.federated == nil && c.GoogleEnabled() {
		s.federated, err = auth.NewFederatedProvider(ctx, auth.FederatedConfig{
			Issuer:       c.GetGoogleIssuer(),
			ClientID:     c.GetGoogleClientID(),
			ClientSecret: c.GetGoogleClientSecret(),
			RedirectURL:  c.GetBaseURL() + RouteCallback,
		})
		if err != nil {
			log.Err(err).Msg("Google login disabled, provider discovery failed")
		}
	}

	s.initRoutes()
	s.logRoutes()
	s.handler = s.withCors(s.mux)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions exposes the per-browser stores.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// withCors wraps h when cross-origin callers are configured. An empty origin
// list leaves the portal same-origin only.
func (s *Server) withCors(h http.Handler) http.Handler {
	origins := s.config.GetAllowedOrigins().List()
	if len(origins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(h)
}

// serviceFor returns the auth operations bound to store, creating its API
// client on first use.
func (s *Server) serviceFor(store *session.Store) *auth.Service {
	s.servicesMu.Lock()
	defer s.servicesMu.Unlock()

	if svc, ok := s.services[store]; ok {
		return svc
	}
	api := apiclient.New(s.config.GetAPIBaseURL(), store, store, apiclient.WithHTTPClient(s.httpClient))
	opts := []auth.ServiceOption{}
	if s.federated != nil {
		opts = append(opts, auth.WithFederated(s.federated, s.flows))
	}
	svc := auth.NewService(api, store, opts...)
	s.services[store] = svc
	return svc
}

// Sweep drops browser sessions unused for longer than the idle timeout,
// together with their auth services, and deletes expired federated flows
// from storage. Dropped sessions are restored from storage on their next request.
func (s *Server) Sweep(ctx context.Context) {
	evicted := s.sessions.DeleteIdle(s.now().Add(-s.idleTimeout))

	s.servicesMu.Lock()
	for store := range s.services {
		if !s.sessions.Holds(store) {
			delete(s.services, store)
		}
	}
	s.servicesMu.Unlock()

	metrics.CachedSessions.Set(float64(s.sessions.Len()))

	removed, err := s.flows.DeleteExpired(ctx)
	if err != nil {
		log.Err(err).Msg("Error deleting expired login flows")
	}
	if len(evicted) > 0 || removed > 0 {
		log.Debug().Int("sessions", len(evicted)).Int("flows", removed).Msg("Swept idle sessions")
	}
}

// RunSweeper calls Sweep every sweep interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context) {
	if s.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
	}
}

func padMethod(method string) string {
	return fmt.Sprintf(" %-7s", method)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

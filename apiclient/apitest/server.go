// Package apitest is a fake of the remote auth API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RouteLogin  = "/auth/login"
	RouteLogout = "/auth/logout"
	RouteMe     = "/auth/me"

	InvalidCredentialsMessage = "Invalid credentials provided."
)

var signingKey = []byte("apitest-signing-key")

type user struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	passwordHash []byte
}

// Request is a recorded inbound request.
type Request struct {
	Method        string
	Path          string
	Authorization string
}

// Server fakes /auth/login, /auth/logout and /auth/me. Access tokens are HS256
// JWTs carrying sub, email and name; revoked tokens answer 401.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	users        map[string]*user
	revoked      map[string]bool
	overrides    map[string]http.HandlerFunc
	requests     []Request
	logoutStatus int
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     make(map[string]*user),
		revoked:   make(map[string]bool),
		overrides: make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+RouteLogin, s.handle(RouteLogin, s.login))
	mux.HandleFunc("POST "+RouteLogout, s.handle(RouteLogout, s.logout))
	mux.HandleFunc("GET "+RouteMe, s.handle(RouteMe, s.me))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers a user with a bcrypt-hashed password.
func (s *Server) AddUser(t testing.TB, email, password, name string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.users[strings.ToLower(email)] = &user{ID: id, Email: email, Name: name, passwordHash: hash}
	s.mu.Unlock()
	return id
}

// Override replaces the handler for a route, the way a browser test mocks a network call.
func (s *Server) Override(route string, h http.HandlerFunc) {
	s.mu.Lock()
	s.overrides[route] = h
	s.mu.Unlock()
}

// Respond overrides route with a fixed JSON response.
func (s *Server) Respond(route string, status int, body any) {
	s.Override(route, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, body)
	})
}

// FailLogout makes /auth/logout answer with status.
func (s *Server) FailLogout(status int) {
	s.mu.Lock()
	s.logoutStatus = status
	s.mu.Unlock()
}

// Revoke makes every later request bearing token answer 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	s.revoked[token] = true
	s.mu.Unlock()
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for one path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handle(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		})
		override := s.overrides[route]
		s.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		next(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Malformed request.",
			"errors":  map[string][]string{"body": {"must be a JSON object"}},
		})
		return
	}

	s.mu.Lock()
	u := s.users[strings.ToLower(creds.Email)]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": InvalidCredentialsMessage})
		return
	}

	access, err := s.sign(u)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "token signing failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": uuid.NewString(),
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := s.logoutStatus
	s.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]string{"message": "logout failed"})
		return
	}

	token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	s.Revoke(token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	token, ok := s.authorize(w, r)
	if !ok {
		return
	}
	claims := jwtlib.MapClaims{}
	if _, err := jwtlib.ParseWithClaims(token, claims, keyFunc); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid token."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    claims["sub"],
		"email": claims["email"],
		"name":  claims["name"],
	})
}

// authorize checks the bearer token and writes a 401 when it is missing, invalid or revoked.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Missing bearer token."})
		return "", false
	}

	s.mu.Lock()
	revoked := s.revoked[token]
	s.mu.Unlock()
	if revoked {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token revoked."})
		return "", false
	}
	if _, err := jwtlib.Parse(token, keyFunc); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid token."})
		return "", false
	}
	return token, true
}

func (s *Server) sign(u *user) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  u.Name,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"jti":   uuid.NewString(),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(signingKey)
}

func keyFunc(t *jwtlib.Token) (any, error) {
	if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, jwtlib.ErrSignatureInvalid
	}
	return signingKey, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

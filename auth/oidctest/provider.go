// Package oidctest is a fake OIDC identity provider for federated login tests.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const keyID = "oidctest-key"

// Identity is the user the provider signs in.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type grant struct {
	identity      Identity
	clientID      string
	nonce         string
	codeChallenge string
}

// Provider serves discovery, JWKS and token endpoints. Authorization is done
// by calling Approve with the URL a login would redirect the browser to.
type Provider struct {
	*httptest.Server

	key *rsa.PrivateKey

	mu          sync.Mutex
	grants      map[string]grant
	omitIDToken bool
	tokenStatus int
}

func NewProvider(t testing.TB) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	p := &Provider{key: key, grants: make(map[string]grant)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("GET /jwks", p.jwks)
	mux.HandleFunc("POST /token", p.token)

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

// Approve signs identity in for the authorization request in authURL and
// returns the code the provider would send to the redirect URI.
func (p *Provider) Approve(t testing.TB, authURL string, identity Identity) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	return p.ApproveWithNonce(t, authURL, identity, q.Get("nonce"))
}

// ApproveWithNonce is Approve with the nonce claim replaced.
func (p *Provider) ApproveWithNonce(t testing.TB, authURL string, identity Identity, nonce string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	if q.Get("code_challenge_method") != "S256" {
		t.Fatalf("auth url has no S256 code challenge: %s", authURL)
	}

	code := uuid.NewString()
	p.mu.Lock()
	p.grants[code] = grant{
		identity:      identity,
		clientID:      q.Get("client_id"),
		nonce:         nonce,
		codeChallenge: q.Get("code_challenge"),
	}
	p.mu.Unlock()
	return code
}

// OmitIDToken makes the token endpoint answer without an id_token.
func (p *Provider) OmitIDToken() {
	p.mu.Lock()
	p.omitIDToken = true
	p.mu.Unlock()
}

// FailTokenExchange makes the token endpoint answer with status.
func (p *Provider) FailTokenExchange(status int) {
	p.mu.Lock()
	p.tokenStatus = status
	p.mu.Unlock()
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.URL,
		"authorization_endpoint":                p.URL + "/authorize",
		"token_endpoint":                        p.URL + "/token",
		"jwks_uri":                              p.URL + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": keyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	g, ok := p.grants[r.PostForm.Get("code")]
	delete(p.grants, r.PostForm.Get("code"))
	omit, status := p.omitIDToken, p.tokenStatus
	p.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"error": "server_error"})
		return
	}
	if !ok || challenge(r.PostForm.Get("code_verifier")) != g.codeChallenge {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	resp := map[string]any{
		"access_token":  uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": uuid.NewString(),
	}
	if !omit {
		idToken, err := p.sign(g)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
		resp["id_token"] = idToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) sign(g grant) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"iss":   p.URL,
		"aud":   g.clientID,
		"sub":   g.identity.Subject,
		"email": g.identity.Email,
		"name":  g.identity.Name,
		"nonce": g.nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	return tok.SignedString(p.key)
}

func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-login-portal/apiclient/apitest"
	"github.com/jrsteele09/go-login-portal/auth"
	"github.com/jrsteele09/go-login-portal/auth/oidctest"
	"github.com/jrsteele09/go-login-portal/internal/config"
	"github.com/jrsteele09/go-login-portal/server"
	"github.com/jrsteele09/go-login-portal/storage/memory"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "test@example.com"
	testUserPassword = "password123"
	testUserName     = "Test User"
	slotCookie       = "portal_slot"
)

type testFixture struct {
	api    *apitest.Server
	slots  *memory.Store
	portal *server.Server
	web    *httptest.Server
}

func newConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("API_BASE_URL", apiURL)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	c, err := config.FromEnv()
	require.NoError(t, err)
	return c
}

func newTestFixture(t *testing.T, opts ...server.Option) *testFixture {
	t.Helper()
	api := apitest.NewServer(t)
	api.AddUser(t, testUserEmail, testUserPassword, testUserName)
	slots := memory.New()

	portal, err := server.New(context.Background(), newConfig(t, api.URL), slots, opts...)
	require.NoError(t, err)
	web := httptest.NewServer(portal)
	t.Cleanup(web.Close)

	return &testFixture{api: api, slots: slots, portal: portal, web: web}
}

// browser is an HTTP client with its own cookie jar that does not follow redirects.
func (f *testFixture) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type page struct {
	status   int
	location string
	body     string
}

func (f *testFixture) get(t *testing.T, c *http.Client, path string) page {
	t.Helper()
	resp, err := c.Get(f.web.URL + path)
	require.NoError(t, err)
	return readPage(t, resp)
}

func (f *testFixture) post(t *testing.T, c *http.Client, path string, form url.Values) page {
	t.Helper()
	resp, err := c.PostForm(f.web.URL+path, form)
	require.NoError(t, err)
	return readPage(t, resp)
}

func readPage(t *testing.T, resp *http.Response) page {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (f *testFixture) login(t *testing.T, c *http.Client) {
	t.Helper()
	p := f.post(t, c, server.RouteLogin, url.Values{"email": {testUserEmail}, "password": {testUserPassword}})
	require.Equal(t, http.StatusSeeOther, p.status)
	require.Equal(t, server.RouteHome, p.location)
}

func (f *testFixture) slotID(t *testing.T, c *http.Client) string {
	t.Helper()
	u, err := url.Parse(f.web.URL)
	require.NoError(t, err)
	for _, cookie := range c.Jar.Cookies(u) {
		if cookie.Name == slotCookie {
			return cookie.Value
		}
	}
	t.Fatal("no slot cookie")
	return ""
}

func TestRouteGuard(t *testing.T) {
	f := newTestFixture(t)

	t.Run("home redirects to login when logged out", func(t *testing.T) {
		p := f.get(t, f.browser(t), server.RouteHome)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteLogin, p.location)
	})

	t.Run("login page renders and issues a slot cookie", func(t *testing.T) {
		c := f.browser(t)
		p := f.get(t, c, server.RouteLogin)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, `type="email"`)
		require.Contains(t, p.body, `type="password"`)
		require.Contains(t, p.body, "Remember me")
		require.Contains(t, p.body, "Forgot password?")
		require.Contains(t, p.body, "Create an account")
		require.NotContains(t, p.body, "Continue with Google")
		require.NotEmpty(t, f.slotID(t, c))
	})

	t.Run("unknown paths land on login", func(t *testing.T) {
		for _, path := range []string{"/nope", "/forgot-password", "/home/extra"} {
			p := f.get(t, f.browser(t), path)
			require.Equal(t, http.StatusFound, p.status, path)
			require.Equal(t, server.RouteLogin, p.location, path)
		}
	})

	t.Run("login redirects home when authenticated", func(t *testing.T) {
		c := f.browser(t)
		f.login(t, c)

		p := f.get(t, c, server.RouteLogin)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteHome, p.location)
	})
}

func TestLoginFlow(t *testing.T) {
	t.Run("success lands on home", func(t *testing.T) {
		f := newTestFixture(t)
		c := f.browser(t)
		f.login(t, c)

		p := f.get(t, c, server.RouteHome)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "WELCOME")
		require.Contains(t, p.body, "Signed in as "+testUserName)
	})

	t.Run("opaque token from the API", func(t *testing.T) {
		f := newTestFixture(t)
		f.api.Respond(apitest.RouteLogin, http.StatusOK, map[string]string{"access_token": "mock-jwt-token"})
		c := f.browser(t)
		f.login(t, c)

		p := f.get(t, c, server.RouteHome)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "WELCOME")
		require.NotContains(t, p.body, "Signed in as")
	})

	t.Run("invalid input shows field errors and sends nothing", func(t *testing.T) {
		f := newTestFixture(t)
		c := f.browser(t)

		p := f.post(t, c, server.RouteLogin, url.Values{"email": {"invalid-email"}, "password": {"short"}})
		require.Equal(t, http.StatusUnprocessableEntity, p.status)
		require.Contains(t, p.body, auth.MsgInvalidEmail)
		require.Contains(t, p.body, auth.MsgPasswordTooShort)
		require.Contains(t, p.body, `value="invalid-email"`)
		require.Empty(t, f.api.RequestsTo(apitest.RouteLogin))
	})

	t.Run("server error message stays on login", func(t *testing.T) {
		f := newTestFixture(t)
		c := f.browser(t)

		p := f.post(t, c, server.RouteLogin, url.Values{"email": {"wrong@example.com"}, "password": {"wrongpass"}})
		require.Equal(t, http.StatusUnauthorized, p.status)
		require.Contains(t, p.body, apitest.InvalidCredentialsMessage)

		p = f.get(t, c, server.RouteHome)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteLogin, p.location)
	})

	t.Run("generic message when the API gives none", func(t *testing.T) {
		f := newTestFixture(t)
		f.api.Override(apitest.RouteLogin, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		c := f.browser(t)

		p := f.post(t, c, server.RouteLogin, url.Values{"email": {testUserEmail}, "password": {testUserPassword}})
		require.Equal(t, http.StatusUnauthorized, p.status)
		require.Contains(t, p.body, auth.MsgLoginFailed)
	})

	t.Run("overlapping submission is rejected", func(t *testing.T) {
		f := newTestFixture(t)
		c := f.browser(t)
		f.get(t, c, server.RouteLogin)

		store := f.portal.Sessions().For(context.Background(), f.slotID(t, c))
		pending, err := store.Acquire()
		require.NoError(t, err)
		defer store.Release(pending)

		p := f.post(t, c, server.RouteLogin, url.Values{"email": {testUserEmail}, "password": {testUserPassword}})
		require.Equal(t, http.StatusConflict, p.status)
		require.Contains(t, p.body, "disabled")
		require.Empty(t, f.api.RequestsTo(apitest.RouteLogin))
	})

	t.Run("browsers have separate sessions", func(t *testing.T) {
		f := newTestFixture(t)
		alice, bob := f.browser(t), f.browser(t)
		f.login(t, alice)

		require.Equal(t, http.StatusOK, f.get(t, alice, server.RouteHome).status)
		require.Equal(t, http.StatusSeeOther, f.get(t, bob, server.RouteHome).status)
	})
}

func TestLogoutFlow(t *testing.T) {
	t.Run("logout returns to login", func(t *testing.T) {
		f := newTestFixture(t)
		c := f.browser(t)
		f.login(t, c)

		p := f.post(t, c, server.RouteLogout, nil)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteLogin, p.location)

		reqs := f.api.RequestsTo(apitest.RouteLogout)
		require.Len(t, reqs, 1)
		require.True(t, strings.HasPrefix(reqs[0].Authorization, "Bearer "))

		p = f.get(t, c, server.RouteHome)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteLogin, p.location)

		p = f.get(t, c, server.RouteLogin)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, `type="email"`)
	})

	t.Run("server failure still logs out", func(t *testing.T) {
		f := newTestFixture(t)
		c := f.browser(t)
		f.login(t, c)
		f.api.FailLogout(http.StatusInternalServerError)

		p := f.post(t, c, server.RouteLogout, nil)
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, http.StatusSeeOther, f.get(t, c, server.RouteHome).status)
	})
}

func TestSessionSurvivesRestart(t *testing.T) {
	f := newTestFixture(t)
	c := f.browser(t)
	f.login(t, c)

	restarted, err := server.New(context.Background(), newConfig(t, f.api.URL), f.slots)
	require.NoError(t, err)
	f.web.Config.Handler = restarted

	p := f.get(t, c, server.RouteHome)
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, "WELCOME")
}

func TestGoogleLogin(t *testing.T) {
	ctx := context.Background()
	idp := oidctest.NewProvider(t)
	provider, err := auth.NewFederatedProvider(ctx, auth.FederatedConfig{
		Issuer:       idp.URL,
		ClientID:     "portal-client",
		ClientSecret: "portal-secret",
		RedirectURL:  "http://portal.test/callback",
	})
	require.NoError(t, err)
	identity := oidctest.Identity{Subject: "google-1", Email: "fed@example.com", Name: "Fed User"}

	t.Run("button shown when configured", func(t *testing.T) {
		f := newTestFixture(t, server.WithFederatedProvider(provider))
		p := f.get(t, f.browser(t), server.RouteLogin)
		require.Contains(t, p.body, "Continue with Google")
	})

	t.Run("callback signs the browser in", func(t *testing.T) {
		f := newTestFixture(t, server.WithFederatedProvider(provider))
		c := f.browser(t)

		p := f.get(t, c, server.RouteGoogleLogin)
		require.Equal(t, http.StatusFound, p.status)
		require.True(t, strings.HasPrefix(p.location, idp.URL+"/authorize"))

		authURL, err := url.Parse(p.location)
		require.NoError(t, err)
		code := idp.Approve(t, p.location, identity)

		callback := url.Values{"state": {authURL.Query().Get("state")}, "code": {code}}
		p = f.get(t, c, server.RouteCallback+"?"+callback.Encode())
		require.Equal(t, http.StatusSeeOther, p.status)
		require.Equal(t, server.RouteHome, p.location)

		p = f.get(t, c, server.RouteHome)
		require.Equal(t, http.StatusOK, p.status)
		require.Contains(t, p.body, "Signed in as "+identity.Name)
	})

	t.Run("callback from another browser is refused", func(t *testing.T) {
		f := newTestFixture(t, server.WithFederatedProvider(provider))
		starter, other := f.browser(t), f.browser(t)

		p := f.get(t, starter, server.RouteGoogleLogin)
		authURL, err := url.Parse(p.location)
		require.NoError(t, err)
		code := idp.Approve(t, p.location, identity)

		callback := url.Values{"state": {authURL.Query().Get("state")}, "code": {code}}
		p = f.get(t, other, server.RouteCallback+"?"+callback.Encode())
		require.Equal(t, http.StatusBadRequest, p.status)
		require.Equal(t, http.StatusSeeOther, f.get(t, other, server.RouteHome).status)
	})

	t.Run("provider error", func(t *testing.T) {
		f := newTestFixture(t, server.WithFederatedProvider(provider))
		p := f.get(t, f.browser(t), server.RouteCallback+"?error=access_denied")
		require.Equal(t, http.StatusUnauthorized, p.status)
		require.Contains(t, p.body, "Google sign-in failed")
	})

	t.Run("disabled without a provider", func(t *testing.T) {
		f := newTestFixture(t)
		p := f.get(t, f.browser(t), server.RouteGoogleLogin)
		require.Equal(t, http.StatusNotFound, p.status)
	})
}

func TestIdleSessionsAreSwept(t *testing.T) {
	ctx := context.Background()
	idp := oidctest.NewProvider(t)
	provider, err := auth.NewFederatedProvider(ctx, auth.FederatedConfig{
		Issuer:       idp.URL,
		ClientID:     "portal-client",
		ClientSecret: "portal-secret",
		RedirectURL:  "http://portal.test/callback",
	})
	require.NoError(t, err)

	var skew atomic.Int64
	clock := func() time.Time { return time.Now().Add(time.Duration(skew.Load())) }
	f := newTestFixture(t, server.WithFederatedProvider(provider), server.WithNowTime(clock))

	alice := f.browser(t)
	f.login(t, alice)
	aliceSlot := "auth-storage:" + f.slotID(t, alice)

	for range 200 {
		require.Equal(t, http.StatusOK, f.get(t, f.browser(t), server.RouteLogin).status)
	}
	for range 10 {
		p := f.post(t, f.browser(t), server.RouteLogin, url.Values{"email": {testUserEmail}, "password": {"wrong-password"}})
		require.Equal(t, http.StatusUnauthorized, p.status)
	}
	for range 5 {
		require.Equal(t, http.StatusFound, f.get(t, f.browser(t), server.RouteGoogleLogin).status)
	}

	require.Equal(t, 216, f.portal.Sessions().Len())
	require.Greater(t, f.portal.CachedServices(), 10)

	flows, err := f.slots.List(ctx, "auth-flow:")
	require.NoError(t, err)
	require.Len(t, flows, 5)

	stored, err := f.slots.List(ctx, "auth-storage:")
	require.NoError(t, err)
	require.Equal(t, []string{aliceSlot}, stored, "failed anonymous logins leave no slot behind")

	skew.Store(int64(31 * time.Minute))
	require.Equal(t, http.StatusOK, f.get(t, alice, server.RouteHome).status)
	f.portal.Sweep(ctx)

	require.Equal(t, 1, f.portal.Sessions().Len())
	require.Equal(t, 1, f.portal.CachedServices())
	flows, err = f.slots.List(ctx, "auth-flow:")
	require.NoError(t, err)
	require.Empty(t, flows)

	p := f.get(t, alice, server.RouteHome)
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, "WELCOME")

	t.Run("swept browsers restore from storage", func(t *testing.T) {
		skew.Store(int64(2 * time.Hour))
		f.portal.Sweep(ctx)
		require.Zero(t, f.portal.Sessions().Len())
		require.Zero(t, f.portal.CachedServices())

		require.Equal(t, http.StatusOK, f.get(t, alice, server.RouteHome).status)
		require.Equal(t, 1, f.portal.Sessions().Len())
	})
}

func TestOperationalRoutes(t *testing.T) {
	f := newTestFixture(t)
	c := f.browser(t)

	p := f.get(t, c, server.RouteHealth)
	require.Equal(t, http.StatusOK, p.status)
	require.JSONEq(t, `{"status":"ok"}`, p.body)

	f.login(t, c)
	p = f.get(t, c, server.RouteMetrics)
	require.Equal(t, http.StatusOK, p.status)
	require.Contains(t, p.body, "login_portal_login_attempts_total")
}

func TestFrameSecurityHeaders(t *testing.T) {
	f := newTestFixture(t)
	resp, err := f.browser(t).Get(f.web.URL + server.RouteLogin)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
}

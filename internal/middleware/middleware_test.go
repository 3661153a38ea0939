package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatpdf/internal/session"
)

type nopAssistant struct{}

func (nopAssistant) Ingest(ctx context.Context, path string) error { return nil }
func (nopAssistant) Ask(ctx context.Context, q string) (string, error) { return "", nil }
func (nopAssistant) Clear(ctx context.Context) error { return nil }
func (nopAssistant) Ready() bool { return false }

func newTestAuth() (*SessionAuth, *session.Manager) {
	m := session.NewManager(time.Hour, func(string) session.Assistant { return nopAssistant{} }, zap.NewNop())
	return NewSessionAuth("test-secret", m, time.Hour, false), m
}

func sessionIDHandler(t *testing.T, seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		require.NotNil(t, sess)
		*seen = sess.ID
		w.WriteHeader(http.StatusNoContent)
	})
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookieName)
	return nil
}

func TestSessionAuth_CreatesAndReusesSession(t *testing.T) {
	auth, m := newTestAuth()
	var first, second string

	rec := httptest.NewRecorder()
	auth.Middleware(sessionIDHandler(t, &first)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	require.NotEmpty(t, first)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	auth.Middleware(sessionIDHandler(t, &second)).ServeHTTP(rec, req)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestSessionAuth_InvalidCookieStartsNewSession(t *testing.T) {
	auth, m := newTestAuth()

	other := NewSessionAuth("another-secret", m, time.Hour, false)
	forged, err := other.IssueToken("forged-id")
	require.NoError(t, err)

	for _, value := range []string{"garbage", forged} {
		var seen string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: value})
		rec := httptest.NewRecorder()

		auth.Middleware(sessionIDHandler(t, &seen)).ServeHTTP(rec, req)

		assert.NotEqual(t, "forged-id", seen)
		assert.NotEmpty(t, seen)
	}
}

func TestSessionAuth_ParseToken(t *testing.T) {
	auth, _ := newTestAuth()

	token, err := auth.IssueToken("abc")
	require.NoError(t, err)
	sid, err := auth.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", sid)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": "abc",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	expiredStr, err := expired.SignedString(auth.Secret)
	require.NoError(t, err)
	_, err = auth.ParseToken(expiredStr)
	assert.Error(t, err)

	noSid := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()})
	noSidStr, err := noSid.SignedString(auth.Secret)
	require.NoError(t, err)
	_, err = auth.ParseToken(noSidStr)
	assert.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	rl.Stop()
}

func TestRateLimiter_MiddlewareKeysBySession(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := rl.Middleware(ok)

	serve := func(sess *session.Session) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if sess != nil {
			req = req.WithContext(WithSession(req.Context(), sess))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	a := session.New("a", nopAssistant{})
	b := session.New("b", nopAssistant{})

	assert.Equal(t, http.StatusOK, serve(a))
	assert.Equal(t, http.StatusTooManyRequests, serve(a))
	assert.Equal(t, http.StatusOK, serve(b))
	assert.Equal(t, http.StatusOK, serve(nil))
	assert.Equal(t, http.StatusTooManyRequests, serve(nil))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	h := CORS("http://localhost:3000")(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	CORS("")(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

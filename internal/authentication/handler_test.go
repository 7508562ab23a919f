package authentication

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCookies = CookieSettings{Name: "refresh_token", Path: "/api/v1/auth"}

func newTestRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newGormFixture(t)
	router := gin.New()
	NewAuthHandler(router.Group("/api/v1"), f.service, testCookies, zap.NewNop())
	return router, f
}

func doJSON(router http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookies.Name {
			return c
		}
	}
	return nil
}

func login(t *testing.T, router http.Handler, email string) LoginResponse {
	t.Helper()
	rec := doJSON(router, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: email, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAuthHandler_Login(t *testing.T) {
	router, f := newTestRouter(t)
	seedPerson(t, f.db, "latte@example.com", true)
	seedPerson(t, f.db, "unconfirmed@example.com", false)

	rec := doJSON(router, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "latte@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["emailConfirmed"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "unconfirmed@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["emailConfirmed"])
	assert.NotContains(t, body, "accessToken")
	assert.NotContains(t, body, "refreshToken")

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "latte@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Refresh(t *testing.T) {
	router, f := newTestRouter(t)
	seedPerson(t, f.db, "macchiato@example.com", true)
	first := login(t, router, "macchiato@example.com")

	rec := doJSON(router, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: first.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEmpty(t, rotated.AccessToken)
	assert.NotEqual(t, first.RefreshToken, rotated.RefreshToken)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.Header.Set(RefreshTokenHeader, rotated.RefreshToken)
	hdr := httptest.NewRecorder()
	router.ServeHTTP(hdr, req)
	require.Equal(t, http.StatusOK, hdr.Code, hdr.Body.String())

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid refresh token", decodeBody(t, rec)["error"])

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid refresh token", decodeBody(t, rec)["error"])

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuthHandler_CookieFlow(t *testing.T) {
	router, f := newTestRouter(t)
	seedPerson(t, f.db, "cappuccino@example.com", true)

	rec := doJSON(router, http.MethodPost, "/api/v1/auth/login-v2", LoginRequest{Email: "cappuccino@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotContains(t, body, "refreshToken")

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
	assert.Equal(t, testCookies.Path, cookie.Path)
	assert.Positive(t, cookie.MaxAge)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh-v2", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	next := refreshCookie(rec)
	require.NotNil(t, next)
	assert.NotEqual(t, cookie.Value, next.Value)
	assert.NotContains(t, decodeBody(t, rec), "refreshToken")

	// replaying the first cookie burns the family and clears the cookie
	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh-v2", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	cleared := refreshCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh-v2", nil, next)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/refresh-v2", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	router, f := newTestRouter(t)
	seedPerson(t, f.db, "breve@example.com", true)
	pair := login(t, router, "breve@example.com")

	rec := doJSON(router, http.MethodPost, "/api/v1/auth/logout", LogoutRequest{RefreshToken: "%%%"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/logout", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/logout", LogoutRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["revoked"])
	cleared := refreshCookie(rec)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	rec = doJSON(router, http.MethodPost, "/api/v1/auth/logout", LogoutRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["revoked"])

	_, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthHandler_RefreshHeaderWithChunkedEmptyBody(t *testing.T) {
	router, f := newTestRouter(t)
	seedPerson(t, f.db, "chunked@example.com", true)
	pair := login(t, router, "chunked@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(nil))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RefreshTokenHeader, pair.RefreshToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["accessToken"])
}

func TestAuthHandler_RefreshV2ClearsCookieOnFailure(t *testing.T) {
	router, _ := newTestRouter(t)
	unknown, _, err := newTokenHasher(testRefreshSecret).newSecret()
	require.NoError(t, err)

	rec := doJSON(router, http.MethodPost, "/api/v1/auth/refresh-v2", nil, &http.Cookie{Name: testCookies.Name, Value: unknown})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid refresh token", decodeBody(t, rec)["error"])

	cleared := refreshCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
	assert.Equal(t, http.SameSiteNoneMode, cleared.SameSite)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("middleware-secret")

func signed(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func validClaims(role string) jwt.MapClaims {
	return jwt.MapClaims{"sub": "user-1", "role": role, "exp": time.Now().Add(time.Hour).Unix()}
}

func newRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/guarded", RequireRole(testSecret, roles...), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c)+"|"+UserRole(c))
	})
	return r
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		roles  []string
		header string
		cookie string
		status int
		body   string
	}{
		{name: "missing token", roles: []string{"Admin"}, status: http.StatusUnauthorized},
		{name: "malformed header", roles: []string{"Admin"}, header: "Token abc", status: http.StatusUnauthorized},
		{name: "wrong secret", roles: []string{"Admin"}, header: "Bearer " + signed(t, []byte("other"), validClaims("Admin")), status: http.StatusUnauthorized},
		{name: "expired", roles: []string{"Admin"},
			header: "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "user-1", "role": "Admin", "exp": time.Now().Add(-time.Hour).Unix()}),
			status: http.StatusUnauthorized},
		{name: "no expiry", roles: []string{"Admin"},
			header: "Bearer " + signed(t, testSecret, jwt.MapClaims{"sub": "user-1", "role": "Admin"}), status: http.StatusUnauthorized},
		{name: "wrong role", roles: []string{"Admin"}, header: "Bearer " + signed(t, testSecret, validClaims("User")), status: http.StatusForbidden},
		{name: "allowed role", roles: []string{"Admin", "User"}, header: "Bearer " + signed(t, testSecret, validClaims("User")),
			status: http.StatusOK, body: "user-1|User"},
		{name: "any authenticated", header: "Bearer " + signed(t, testSecret, validClaims("User")), status: http.StatusOK, body: "user-1|User"},
		{name: "cookie", roles: []string{"Admin"}, cookie: signed(t, testSecret, validClaims("Admin")), status: http.StatusOK, body: "user-1|Admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			newRouter(tt.roles...).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestSetTokenCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/login", nil)

	SetTokenCookie(c, "tok", CookieOptions{Secure: true, MaxAge: 60})
	cookie := w.Result().Cookies()[0]
	assert.Equal(t, "access_token", cookie.Name)
	assert.Equal(t, "tok", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBasicAcceptsCorrectCredentials(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Basic("admin", hash))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBasicRejectsWrongCredentials(t *testing.T) {
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Basic("admin", hash))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.SetBasicAuth("admin", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.True(t, ComparePassword(hash, "hunter2"))
	require.False(t, ComparePassword(hash, "wrong"))
}

func TestIssuerRoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret")
	token, err := issuer.IssueToken("operator")
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "operator", claims.Subject)
}

func TestIssuerRejectsTamperedToken(t *testing.T) {
	issuer := NewIssuer("test-secret")
	token, err := issuer.IssueToken("operator")
	require.NoError(t, err)

	_, err = NewIssuer("different-secret").ValidateToken(token)
	require.Error(t, err)
}

func TestBearerMiddleware(t *testing.T) {
	issuer := NewIssuer("test-secret")
	token, err := issuer.IssueToken("operator")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Bearer(issuer))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAnyAcceptsBearerToken(t *testing.T) {
	issuer := NewIssuer("test-secret")
	token, err := issuer.IssueToken("operator")
	require.NoError(t, err)
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Any("admin", hash, issuer))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAnyAcceptsBasicCredentials(t *testing.T) {
	issuer := NewIssuer("test-secret")
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Any("admin", hash, issuer))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAnyRejectsNeither(t *testing.T) {
	issuer := NewIssuer("test-secret")
	hash, err := HashPassword("secret")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Any("admin", hash, issuer))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

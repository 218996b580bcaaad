// Package auth implements the HTTP Basic auth required on every route,
// plus a supplemental JWT bearer flow for cmd/tsapictl so the CLI doesn't
// have to carry the operator's password in every request. JWT issuance
// and validation use a single-operator bearer token since this service
// has no user table.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Basic returns gin middleware enforcing HTTP Basic auth against a single
// configured username and bcrypt password hash (see HashPassword). The
// username check stays constant-time; the password check goes through
// bcrypt, which is constant-time internally and immune to timing leaks
// about the hash itself.
func Basic(username, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			!ComparePassword(passwordHash, pass) {
			c.Header("WWW-Authenticate", `Basic realm="tsapi"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Next()
	}
}

// HashPassword bcrypt-hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(hashed), err
}

// ComparePassword reports whether plain matches the bcrypt hash.
func ComparePassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Claims is the JWT payload issued to the CLI after a successful
// Basic-auth login at POST /cli/login.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

const tokenTTL = 24 * time.Hour

// Issuer signs and validates the CLI's bearer tokens.
type Issuer struct {
	secret []byte
}

// NewIssuer builds an Issuer from the configured JWT signing secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// IssueToken mints a bearer token for the operator, valid for tokenTTL.
func (i *Issuer) IssueToken(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken parses and verifies a bearer token, returning its Claims.
func (i *Issuer) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Bearer returns gin middleware that accepts only a valid JWT bearer
// token. SetupRoutes does not install it; the routes use Any, which
// accepts a bearer token or Basic credentials.
func Bearer(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if _, err := issuer.ValidateToken(header[len(prefix):]); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// Any accepts either a valid bearer token (the CLI's flow, after
// POST /cli/login) or the configured Basic credentials, identified by
// username and bcrypt password hash (direct API callers), so the same
// global middleware serves both the mandatory Basic-auth requirement and
// the supplemental CLI token flow.
func Any(username, passwordHash string, issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			if _, err := issuer.ValidateToken(header[len(prefix):]); err == nil {
				c.Next()
				return
			}
		}

		user, pass, ok := c.Request.BasicAuth()
		if ok && subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1 &&
			ComparePassword(passwordHash, pass) {
			c.Next()
			return
		}

		c.Header("WWW-Authenticate", `Basic realm="tsapi"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	}
}

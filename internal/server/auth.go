package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ─── JWT control-plane auth ───────────────────────────────────────────────────

const tokenIssuer = "telemetryops"

// Claims is the payload embedded in every control-plane token.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 operator tokens.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer returns nil for an empty secret, which disables auth.
func NewTokenIssuer(secret string) *TokenIssuer {
	if secret == "" {
		return nil
	}
	return &TokenIssuer{secret: []byte(secret), now: time.Now}
}

// Issue creates a signed token for operator valid for ttl.
func (ti *TokenIssuer) Issue(operator string, ttl time.Duration) (string, error) {
	if ti == nil {
		return "", errors.New("jwt_secret is not configured")
	}
	now := ti.now()
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Parse validates a token string and returns its claims.
func (ti *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return ti.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(ti.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// JWTMiddleware requires "Authorization: Bearer <jwt>" and stores the operator
// in the Gin context. A nil issuer lets every request through.
func JWTMiddleware(ti *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ti == nil {
			c.Next()
			return
		}
		raw, ok := bearer(c)
		if !ok {
			fail(c, http.StatusUnauthorized, "invalid Authorization format, expected: Bearer <token>")
			return
		}
		claims, err := ti.Parse(raw)
		if err != nil {
			fail(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set("operator", claims.Operator)
		c.Next()
	}
}

// ─── Bearer-token ingest auth ─────────────────────────────────────────────────

// IngestTokenMiddleware checks "Authorization: Bearer <token>" against a
// pre-shared key. An empty key lets every request through.
func IngestTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := bearer(c)
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			fail(c, http.StatusUnauthorized, "invalid or missing ingest token")
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

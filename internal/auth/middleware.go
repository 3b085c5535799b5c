package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const submitterKey contextKey = "authSubmitter"

var (
	errMissingHeader = errors.New("authorization header required")
	errBadHeader     = errors.New("invalid authorization header")
	errMissingToken  = errors.New("token missing")
)

// Submitter retrieves the authenticated job submitter from context.
func Submitter(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if value, ok := ctx.Value(submitterKey).(string); ok && value != "" {
		return value, true
	}
	return "", false
}

// Verifier validates HMAC-signed bearer tokens presented by job submitters.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier constructs a verifier. An empty audience disables the audience check.
func NewVerifier(secret, audience string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("missing JWT secret")
	}
	return &Verifier{secret: []byte(secret), audience: strings.TrimSpace(audience)}, nil
}

// Verify parses a token and returns its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}
	if v.audience != "" && !containsAudience(claims.Audience, v.audience) {
		return "", errors.New("invalid audience")
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// submitter in the request context.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractBearerToken(c.Request.Header.Get("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}
		subject, err := v.Verify(tokenString)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		ctx := context.WithValue(c.Request.Context(), submitterKey, subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(submitterKey), subject)

		c.Next()
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func containsAudience(claims jwt.ClaimStrings, expected string) bool {
	for _, aud := range claims {
		if aud == expected {
			return true
		}
	}
	return false
}

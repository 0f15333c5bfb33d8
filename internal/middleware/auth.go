package middleware

import (
	"net/http"
	"strings"
	"time"

	"comandapos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"
)

// JWTClaims are the custom claims embedded in every access token. The
// collaborator id is the only identity the cash and order flows use.
type JWTClaims struct {
	CollaboratorID string `json:"collaborator_id"`
	Name           string `json:"name"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthorized", "autenticação necessária"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthorized", "token inválido ou expirado"))
			return
		}
		if id, err := uuid.Parse(claims.CollaboratorID); err != nil || id == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.WithCode("unauthorized", "token sem colaborador"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// CollaboratorID returns the acting collaborator. JWTAuth guarantees it parses.
func CollaboratorID(c *gin.Context) uuid.UUID {
	id, _ := uuid.Parse(GetClaims(c).CollaboratorID)
	return id
}

// IssueToken signs an HS256 access token for a collaborator.
func IssueToken(secret string, collaboratorID uuid.UUID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		CollaboratorID: collaboratorID.String(),
		Name:           name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   collaboratorID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

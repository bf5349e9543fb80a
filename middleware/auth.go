package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"food-order-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "food-order-api"
	TokenTTL    = 24 * time.Hour

	actorKey = "actor"
)

// Claims carries the caller's identity. The user ID doubles as the JWT
// subject so tokens stay readable by generic tooling.
type Claims struct {
	UserID uint            `json:"user_id"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session token for user.
func GenerateToken(user *models.User, secret []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies signature, algorithm, issuer and expiry.
func ParseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthRequired resolves the caller from a bearer token and stores it as an
// actor on the context. Browsers cannot set headers on a websocket
// handshake, so a token query parameter is accepted as well.
func AuthRequired(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			deny(c, http.StatusUnauthorized, "Authorization header required (Bearer <token>)")
			return
		}
		claims, err := ParseToken(raw, secret)
		if err != nil {
			deny(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(actorKey, models.Actor{Role: claims.Role, ID: claims.UserID})
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// RoleRequired lets the request through only for the listed roles.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	denied := "Access denied. Required role(s): " + strings.Join(names, ", ")

	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			deny(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		deny(c, http.StatusForbidden, denied)
	}
}

func deny(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func actorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// GetActor returns the authenticated caller. Only valid behind AuthRequired.
func GetActor(c *gin.Context) models.Actor {
	actor, _ := actorFrom(c)
	return actor
}

func GetUserID(c *gin.Context) uint { return GetActor(c).ID }

func GetRole(c *gin.Context) models.UserRole { return GetActor(c).Role }

package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdminTokenTTL is the lifetime of an admin session token
const AdminTokenTTL = 24 * time.Hour

// JWTSecret should be loaded from environment via config
var JWTSecret string

// SetJWTSecret initializes the JWT secret from config
func SetJWTSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if len(secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}
	JWTSecret = secret
	return nil
}

// AdminClaims represents JWT claims for admin users
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateAdminToken creates a JWT token for admin user
func GenerateAdminToken(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(AdminTokenTTL)

	claims := AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "apikey-rotator",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAdminToken verifies JWT token and returns claims
func ValidateAdminToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return claims, nil
}

// AdminAuthMiddleware checks for valid JWT token in Cookie or Authorization header
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string

		// Try to get token from cookie first
		if cookie, err := c.Cookie("admin_token"); err == nil {
			token = cookie
		}

		// Fall back to Authorization header
		if token == "" {
			parts := strings.Split(c.GetHeader("Authorization"), " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
			c.Abort()
			return
		}

		claims, err := ValidateAdminToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

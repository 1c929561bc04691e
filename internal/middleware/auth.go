package middleware

import (
	"errors"
	"net/http"
	"strings"

	"erp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by RequireRole.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

const accessTokenCookie = "access_token"

// CookieOptions controls how the access token cookie is written.
type CookieOptions struct {
	// Secure switches to SameSite=None + Secure for cross-origin deployments.
	Secure bool
	MaxAge int
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
func SetTokenCookie(c *gin.Context, token string, opts CookieOptions) {
	sameSite := http.SameSiteLaxMode
	if opts.Secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, token, opts.MaxAge, "/", "", opts.Secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context, opts CookieOptions) {
	sameSite := http.SameSiteLaxMode
	if opts.Secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", opts.Secure, true)
}

// Claims is what a verified token says about its bearer.
type Claims struct {
	UserID string
	Role   string
}

// ParseToken verifies an HS256 token and extracts the subject and role.
func ParseToken(tokenString string, secret []byte) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	if !token.Valid {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, jwt.ErrTokenInvalidClaims
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, errors.New("token has no subject")
	}
	role, _ := claims["role"].(string)
	return Claims{UserID: sub, Role: role}, nil
}

func tokenFromRequest(c *gin.Context) (string, string) {
	if tokenString, err := c.Cookie(accessTokenCookie); err == nil && tokenString != "" {
		return tokenString, ""
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

// RequireRole validates the JWT (cookie first, then Authorization header) and
// checks the token's role against allowedRoles. With no roles given any
// authenticated user passes.
func RequireRole(secret []byte, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, problem := tokenFromRequest(c)
		if problem != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, problem))
			return
		}

		claims, err := ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}
		if claims.Role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		if len(allowedRoles) > 0 {
			roleAllowed := false
			for _, role := range allowedRoles {
				if claims.Role == role {
					roleAllowed = true
					break
				}
			}
			if !roleAllowed {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// UserID returns the authenticated subject, or "" on public routes.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// UserRole returns the authenticated role, or "" on public routes.
func UserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}

// Guard builds role-checking middleware bound to one signing secret, so route
// registration does not need to carry the secret around.
type Guard func(allowedRoles ...string) gin.HandlerFunc

func NewGuard(secret []byte) Guard {
	return func(allowedRoles ...string) gin.HandlerFunc {
		return RequireRole(secret, allowedRoles...)
	}
}

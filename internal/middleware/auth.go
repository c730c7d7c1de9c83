package middleware

import (
	"net/http"
	"strings"

	"commerce-api/pkg/jwtutil"
	"commerce-api/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token and records the caller identity so
// writes stamp the audit columns with a real user instead of the service
// identity. Mounted only when AUTH_ENABLED is set.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromEcho(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)

		identity := claims.Identity
		if identity == "" {
			identity = claims.Email
		}
		c.Set("identity", identity)

		log.Info("Request authenticated",
			zap.Uint("user_id", claims.UserID),
			zap.String("identity", identity))

		return next(c)
	}
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/securetransfer/server/internal/services"
	"github.com/securetransfer/server/pkg/logger"
	"github.com/securetransfer/server/pkg/utils"
)

const identityKey = "identity"

func CORS(frontendURL string) fiber.Handler {
	origins := "http://localhost:5173,http://127.0.0.1:5173"
	if frontendURL != "" && !strings.Contains(origins, frontendURL) {
		origins = frontendURL + "," + origins
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-Info, Apikey",
		AllowMethods: "GET,POST,OPTIONS",
	})
}

// RequireAuth verifies the bearer token and stores the caller identity.
// Token issuance happens elsewhere; this only checks signature and claims.
func RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "Missing authorization header")
	}

	identity, ok := identityFromHeader(authHeader)
	if !ok {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":          c.IP(),
			"path":        c.Path(),
			"auth_header": authHeader[:min(len(authHeader), 20)] + "...",
		})
		return utils.Error(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	setIdentity(c, identity)
	return c.Next()
}

// OptionalAuth attaches an identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(c *fiber.Ctx) error {
	if identity, ok := identityFromHeader(c.Get("Authorization")); ok {
		setIdentity(c, identity)
	}
	return c.Next()
}

func identityFromHeader(authHeader string) (services.Identity, bool) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		return services.Identity{}, false
	}

	claims, err := utils.ValidateToken(tokenString)
	if err != nil {
		return services.Identity{}, false
	}

	userID, err := claims.UserID()
	if err != nil {
		return services.Identity{}, false
	}
	return services.Identity{UserID: userID, Email: claims.Email}, true
}

func setIdentity(c *fiber.Ctx, identity services.Identity) {
	c.Locals(identityKey, identity)
	c.Locals(logger.UserIDLocal, identity.UserID.String())
}

func GetIdentity(c *fiber.Ctx) (services.Identity, bool) {
	identity, ok := c.Locals(identityKey).(services.Identity)
	if !ok || identity.IsZero() {
		return services.Identity{}, false
	}
	return identity, true
}

package authentication

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/cafe-authentication-service/internal/person"
	"github.com/mehmetcc/cafe-authentication-service/internal/utils"
)

// ContextClaimsKey holds the parsed *utils.AccessClaims of the request.
const ContextClaimsKey = "accessClaims"

var (
	errMissingBearer   = errors.New("authorization header required")
	errMalformedBearer = errors.New("authorization header format must be Bearer <token>")
)

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingBearer
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", errMalformedBearer
	}
	return token, nil
}

// AuthMiddleware admits requests carrying a valid access token whose subject
// still exists, and stores that person under person.ContextUserKey.
func AuthMiddleware(people person.PersonService, accessSecret string, logger *zap.Logger) gin.HandlerFunc {
	unauthorized := func(c *gin.Context, message string) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
	}

	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		claims, err := utils.ParseAccessToken(raw, accessSecret)
		if err != nil {
			logger.Debug("access token rejected", zap.Error(err))
			unauthorized(c, "invalid or expired access token")
			return
		}

		personID, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			logger.Warn("access token with non-numeric subject", zap.String("subject", claims.Subject))
			unauthorized(c, "invalid token subject")
			return
		}

		user, err := people.ReadPersonByID(c.Request.Context(), uint(personID))
		switch {
		case err == nil:
		case errors.Is(err, person.ErrPersonNotFound):
			unauthorized(c, "user not found")
			return
		default:
			logger.Error("failed to load person for access token", zap.Uint64("person_id", personID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not validate user"})
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(person.ContextUserKey, user)
		c.Next()
	}
}

// RoleMiddleware must run after AuthMiddleware. The role is read from the
// stored person, not the token, so a demotion applies before the token expires.
func RoleMiddleware(required person.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get(person.ContextUserKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if user, ok := raw.(*person.Person); !ok || user.Role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

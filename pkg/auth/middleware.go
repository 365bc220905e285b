package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// IdentityKey is the gin context key the middleware stores the caller's
// user id under.
const IdentityKey = "auth.user_id"

// UserId returns the authenticated caller's user id, or "" outside a
// Middleware-guarded route.
func UserId(gctx *gin.Context) string {
	return gctx.GetString(IdentityKey)
}

// Middleware rejects requests without a valid bearer token and stores the
// token's subject as the caller identity for the handlers downstream.
func Middleware(jwt JWT) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		ctx := gctx.Request.Context()

		token := bearerToken(gctx.GetHeader("Authorization"))
		if token == "" {
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})

			return
		}

		claims, err := jwt.Verify(token)
		if err != nil {
			log.Ctx(ctx).Info().Err(err).Msg("token verification failed")
			gctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})

			return
		}

		gctx.Set(IdentityKey, claims.Subject)

		gctx.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

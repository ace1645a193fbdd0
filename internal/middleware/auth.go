// File: internal/middleware/auth.go
package middleware

import (
	"authgate/internal/common"
	"authgate/internal/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthMiddleware verifies the bearer token with the identity provider and stores
// the resulting claims in the Gin context.
func AuthMiddleware(verifier shared.TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(common.AuthorizationHeader)
		if authHeader == "" {
			logger.Debug("Authorization header missing")
			common.RespondWithError(c, common.ErrUnauthenticated.WithDetails("Authorization header is required."))
			return
		}

		tokenString, ok := common.ParseBearer(authHeader)
		if !ok {
			logger.Debug("Authorization header format invalid")
			common.RespondWithError(c, common.ErrUnauthenticated.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		claims, err := verifier.VerifyIDToken(c.Request.Context(), tokenString)
		if err != nil {
			logger.Warn("Token verification failed", zap.Error(err))
			common.RespondWithError(c, common.ErrInvalidToken.WithDetails(err.Error()))
			return
		}

		c.Set(common.FirebaseUIDKey, claims.UID)
		c.Set(common.UserEmailKey, claims.Email)
		c.Set(common.UserClaimsKey, claims)

		logger.Debug("User authenticated successfully",
			zap.String("uid", claims.UID),
			zap.String("email", claims.Email),
			zap.String("signInProvider", claims.SignInProvider),
		)

		c.Next()
	}
}

// GetClaimsFromContext retrieves the verified claims from the Gin context.
func GetClaimsFromContext(c *gin.Context) *shared.Claims {
	val, exists := c.Get(common.UserClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*shared.Claims)
	if !ok {
		return nil
	}
	return claims
}

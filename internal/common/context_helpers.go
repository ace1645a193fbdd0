// File: internal/common/context_helpers.go
package common

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ParseBearer splits an Authorization header value. The scheme is case-sensitive,
// separated by one space, and the token must be non-empty with no further spaces.
func ParseBearer(header string) (string, bool) {
	token, found := strings.CutPrefix(header, AuthorizationTypeBearer+" ")
	if !found || token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// GetFirebaseUIDFromContext retrieves the Firebase UID from the Gin context.
func GetFirebaseUIDFromContext(c *gin.Context) string {
	val, exists := c.Get(FirebaseUIDKey)
	if !exists {
		return ""
	}
	uid, ok := val.(string)
	if !ok {
		return ""
	}
	return uid
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "dayledger/internal/errors"
)

const ownerIDKey = "ownerID"

// OwnerHeader carries the authenticated owner identity. The auth
// collaborator in front of this service verifies credentials and sets
// it; the core only requires that every mutating call arrives with one.
const OwnerHeader = "X-Owner-ID"

// OwnerIdentity returns a Gin middleware that extracts the owner id
// supplied by the authentication collaborator and rejects requests
// without one.
func OwnerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(OwnerHeader)
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHENTICATED",
					"message": "Missing or invalid owner identity",
				},
			})
			return
		}
		c.Set(ownerIDKey, uint(id))
		c.Next()
	}
}

// OwnerID extracts the owner id set by OwnerIdentity.
func OwnerID(c *gin.Context) (uint, error) {
	v, exists := c.Get(ownerIDKey)
	if !exists {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "missing owner identity")
	}
	return v.(uint), nil
}

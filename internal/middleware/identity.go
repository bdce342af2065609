package middleware

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/pathshala-ai/tutor-backend/internal/logger"
)

const userIDKey = "identity.user_id"

// IdentityMiddleware trusts the user id forwarded by the upstream identity
// service in the X-User-ID header. Token verification happens before traffic
// reaches this service.
type IdentityMiddleware struct {
  log *logger.Logger
}

func NewIdentityMiddleware(log *logger.Logger) *IdentityMiddleware {
  return &IdentityMiddleware{log: log.With("Middleware", "IdentityMiddleware")}
}

func (im *IdentityMiddleware) RequireIdentity() gin.HandlerFunc {
  return func(c *gin.Context) {
    header := c.GetHeader("X-User-ID")
    if header == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
      return
    }
    userID, err := uuid.Parse(header)
    if err != nil || userID == uuid.Nil {
      im.log.Debug("Rejected malformed user id", "header", header)
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
      return
    }
    c.Set(userIDKey, userID)
    c.Next()
  }
}

// UserID returns the authenticated user id set by RequireIdentity.
func UserID(c *gin.Context) uuid.UUID {
  value, ok := c.Get(userIDKey)
  if !ok {
    return uuid.Nil
  }
  userID, ok := value.(uuid.UUID)
  if !ok {
    return uuid.Nil
  }
  return userID
}

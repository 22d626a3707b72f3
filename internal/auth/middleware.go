package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"coursehub/internal/access"
)

// SessionMiddleware resolves the request token into an access.Session and
// stores it on the context. It never aborts: guards decide what a missing or
// invalid session means.
func (s *Service) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := s.Session(c.Request.Context(), s.extractToken(c))
		if err != nil {
			session = access.Session{}
		}
		access.SetSession(c, session)
		c.Next()
	}
}

// extractToken prefers an explicit bearer header over the auth cookie.
func (s *Service) extractToken(c *gin.Context) string {
	if token, ok := bearerToken(c.GetHeader(s.headerName)); ok {
		return token
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}

func bearerToken(header string) (string, bool) {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[7:]), true
}

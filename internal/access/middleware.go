package access

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"coursehub/internal/models"
)

const sessionContextKey = "access_session"

// SetSession stores the viewer session on the request context.
func SetSession(c *gin.Context, s Session) {
	c.Set(sessionContextKey, s)
}

// SessionFromContext returns the stored session, or an empty one.
func SessionFromContext(c *gin.Context) Session {
	val, ok := c.Get(sessionContextKey)
	if !ok {
		return Session{}
	}
	s, _ := val.(Session)
	return s
}

// Guard aborts the request unless the session holds requiredRole.
func (g Gate) Guard(requiredRole models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := g.Authorize(SessionFromContext(c), requiredRole)
		if decision != Allow {
			abortWithDecision(c, decision)
			return
		}
		c.Next()
	}
}

// LoginRequired aborts the request unless the session is authenticated.
func (g Gate) LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := g.RequireLogin(SessionFromContext(c))
		if decision != Allow {
			abortWithDecision(c, decision)
			return
		}
		c.Next()
	}
}

// StatusCode maps a decision to the HTTP status used when enforcing it.
func StatusCode(d Decision) int {
	switch d {
	case Allow:
		return http.StatusOK
	case RedirectToLogin:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

func abortWithDecision(c *gin.Context, d Decision) {
	msg := "authorization required"
	if d == RedirectToUnauthorized {
		msg = "insufficient role"
	}
	c.AbortWithStatusJSON(StatusCode(d), gin.H{
		"error":    msg,
		"decision": d.String(),
		"redirect": d.Redirect(),
	})
}

// Sections maps guarded section names to the role they require.
type Sections map[string]models.Role

// NewSections validates a section table loaded from configuration.
func NewSections(raw map[string]string) (Sections, error) {
	sections := make(Sections, len(raw))
	for name, role := range raw {
		r := models.Role(role)
		if r != "" && !r.Valid() {
			return nil, fmt.Errorf("section %s: unknown role %q", name, role)
		}
		sections[name] = r
	}
	return sections, nil
}

// Lookup returns the role required by the named section.
func (s Sections) Lookup(name string) (models.Role, bool) {
	role, ok := s[name]
	return role, ok
}

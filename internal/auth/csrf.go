package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CSRFMiddleware enforces double-submit CSRF protection on unsafe requests
// that ride on the auth cookie. Bearer requests and requests without the
// cookie carry no ambient credential and pass through.
func (s *Service) CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) || !s.cookieAuthenticated(c) {
			c.Next()
			return
		}
		headerToken := c.GetHeader(s.csrfHeaderName)
		cookieToken, err := c.Cookie(s.csrfCookieName)
		if err != nil || headerToken == "" || cookieToken == "" ||
			subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

func (s *Service) cookieAuthenticated(c *gin.Context) bool {
	if token, ok := bearerToken(c.GetHeader(s.headerName)); ok && token != "" {
		return false
	}
	token, err := c.Cookie(s.cookieName)
	return err == nil && token != ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

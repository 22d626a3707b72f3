// Package access decides whether a viewer may enter a guarded section.
package access

import "coursehub/internal/models"

// Decision is the outcome of a navigation attempt.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToUnauthorized
)

const (
	LoginPath        = "/auth/login"
	UnauthorizedPath = "/unauthorized"
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToUnauthorized:
		return "redirect_to_unauthorized"
	default:
		return "unknown"
	}
}

// Redirect returns where the router should send the viewer, or "" on Allow.
func (d Decision) Redirect() string {
	switch d {
	case RedirectToLogin:
		return LoginPath
	case RedirectToUnauthorized:
		return UnauthorizedPath
	default:
		return ""
	}
}

// Session is the viewer state evaluated by the gate. Token and User are
// either both set or both empty; a token without a user counts as signed out.
type Session struct {
	Token string
	User  *models.User
}

// Authenticated reports whether the session carries a token and its user.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Role returns the session user's role, or "" when signed out.
func (s Session) Role() models.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Gate evaluates sessions against required roles.
//
// AllowEmptyRole decides what an empty required role means for a signed-in
// viewer: false rejects (no user has role ""), true admits any signed-in viewer.
type Gate struct {
	AllowEmptyRole bool
}

// Authorize checks authentication first, then role equality.
func (g Gate) Authorize(s Session, requiredRole models.Role) Decision {
	if !s.Authenticated() {
		return RedirectToLogin
	}
	if requiredRole == "" {
		if g.AllowEmptyRole {
			return Allow
		}
		return RedirectToUnauthorized
	}
	if s.User.Role != requiredRole {
		return RedirectToUnauthorized
	}
	return Allow
}

// RequireLogin gates on authentication only.
func (g Gate) RequireLogin(s Session) Decision {
	if !s.Authenticated() {
		return RedirectToLogin
	}
	return Allow
}

// Authorize evaluates with the default gate, which rejects an empty required role.
func Authorize(s Session, requiredRole models.Role) Decision {
	return Gate{}.Authorize(s, requiredRole)
}

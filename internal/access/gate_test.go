package access

import (
	"testing"

	"coursehub/internal/models"
)

func sessionWithRole(role models.Role) Session {
	return Session{Token: "tok", User: &models.User{ID: "u1", Role: role}}
}

func TestAuthorizeWithoutTokenRedirectsToLogin(t *testing.T) {
	roles := []models.Role{"", models.RoleStudent, models.RoleInstructor, models.RoleAdmin, "unknown"}
	sessions := []Session{
		{},
		{User: &models.User{ID: "u1", Role: models.RoleAdmin}},
		{Token: "orphan"},
	}
	for _, s := range sessions {
		for _, role := range roles {
			if got := Authorize(s, role); got != RedirectToLogin {
				t.Fatalf("session %+v role %q: want RedirectToLogin, got %s", s, role, got)
			}
			if got := (Gate{AllowEmptyRole: true}).Authorize(s, role); got != RedirectToLogin {
				t.Fatalf("permissive gate, role %q: want RedirectToLogin, got %s", role, got)
			}
		}
	}
}

func TestAuthorizeMatchingRoleAllows(t *testing.T) {
	for _, role := range []models.Role{models.RoleStudent, models.RoleInstructor, models.RoleAdmin} {
		if got := Authorize(sessionWithRole(role), role); got != Allow {
			t.Fatalf("role %s: want Allow, got %s", role, got)
		}
	}
}

func TestAuthorizeMismatchedRoleRedirectsToUnauthorized(t *testing.T) {
	cases := []struct {
		have, want models.Role
	}{
		{models.RoleStudent, models.RoleInstructor},
		{models.RoleInstructor, models.RoleStudent},
		{models.RoleAdmin, models.RoleInstructor},
		{models.RoleStudent, models.RoleAdmin},
	}
	for _, tc := range cases {
		if got := Authorize(sessionWithRole(tc.have), tc.want); got != RedirectToUnauthorized {
			t.Fatalf("have %s want %s: got %s", tc.have, tc.want, got)
		}
	}
}

func TestEmptyRequiredRoleFollowsGateSetting(t *testing.T) {
	s := sessionWithRole(models.RoleStudent)
	if got := Authorize(s, ""); got != RedirectToUnauthorized {
		t.Fatalf("default gate: want RedirectToUnauthorized, got %s", got)
	}
	if got := (Gate{AllowEmptyRole: true}).Authorize(s, ""); got != Allow {
		t.Fatalf("permissive gate: want Allow, got %s", got)
	}
}

func TestRequireLogin(t *testing.T) {
	var g Gate
	if got := g.RequireLogin(Session{}); got != RedirectToLogin {
		t.Fatalf("want RedirectToLogin, got %s", got)
	}
	if got := g.RequireLogin(sessionWithRole(models.RoleAdmin)); got != Allow {
		t.Fatalf("want Allow, got %s", got)
	}
}

func TestDecisionRedirectTargets(t *testing.T) {
	if Allow.Redirect() != "" {
		t.Fatalf("allow should not redirect")
	}
	if RedirectToLogin.Redirect() != "/auth/login" {
		t.Fatalf("unexpected login redirect %q", RedirectToLogin.Redirect())
	}
	if RedirectToUnauthorized.Redirect() != "/unauthorized" {
		t.Fatalf("unexpected unauthorized redirect %q", RedirectToUnauthorized.Redirect())
	}
}

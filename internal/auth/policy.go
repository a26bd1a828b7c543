package auth

import (
	"net/http"
	"strings"

	"ms-vitotrips/internal/models"
)

// Access is what a route demands of the caller.
type Access struct {
	Public bool
	// Roles, when non-empty, limits the route to these roles. An empty set on a
	// non-public route means any authenticated principal.
	Roles []models.Role
}

func (a Access) Allows(role models.Role) bool {
	if len(a.Roles) == 0 {
		return true
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var (
	Public        = Access{Public: true}
	Authenticated = Access{}
)

func RequireRoles(roles ...models.Role) Access {
	return Access{Roles: roles}
}

// Rule binds a method and path pattern to an Access. Method "" matches every
// method. Pattern segments of the form {name} match exactly one segment and a
// trailing * matches the remainder (including nothing).
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	return matchPattern(r.Pattern, path)
}

func matchPattern(pattern, path string) bool {
	ps := splitPath(pattern)
	xs := splitPath(path)

	for i, seg := range ps {
		if seg == "*" && i == len(ps)-1 {
			return len(xs) >= i
		}
		if i >= len(xs) {
			return false
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != xs[i] {
			return false
		}
	}
	return len(ps) == len(xs)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Policy is an ordered rule table; the first matching rule wins and requests
// matching nothing fall back to Default.
type Policy struct {
	Rules   []Rule
	Default Access
}

func (p *Policy) AccessFor(method, path string) Access {
	for _, rule := range p.Rules {
		if rule.matches(method, path) {
			return rule.Access
		}
	}
	return p.Default
}

// DefaultPolicy is the route table of the booking API.
func DefaultPolicy() *Policy {
	staff := RequireRoles(models.RoleAdmin, models.RoleTourOperator)
	anyRole := RequireRoles(models.RoleAdmin, models.RoleTourOperator, models.RoleTraveler)
	admin := RequireRoles(models.RoleAdmin)

	return &Policy{
		Rules: []Rule{
			{Pattern: "/auth/login", Access: Public},
			{Pattern: "/auth/register", Access: Public},
			{Method: http.MethodGet, Pattern: "/health", Access: Public},
			{Method: http.MethodGet, Pattern: "/metrics", Access: Public},
			{Method: http.MethodPost, Pattern: "/api/v1/payments/webhook", Access: Public},
			{Method: http.MethodGet, Pattern: "/api/v1/tours", Access: Public},
			{Method: http.MethodGet, Pattern: "/api/v1/tours/*", Access: Public},

			{Method: http.MethodPost, Pattern: "/api/v1/users", Access: admin},
			{Method: http.MethodGet, Pattern: "/api/v1/users/role/*", Access: admin},
			{Method: http.MethodDelete, Pattern: "/api/v1/users/*", Access: admin},
			{Method: http.MethodGet, Pattern: "/api/v1/users", Access: staff},
			{Method: http.MethodGet, Pattern: "/api/v1/users/{id}", Access: anyRole},

			{Pattern: "/api/v1/analytics/*", Access: staff},
		},
		Default: Authenticated,
	}
}

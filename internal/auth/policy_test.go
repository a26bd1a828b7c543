package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-vitotrips/internal/models"
)

func TestMatchPattern(t *testing.T) {
	assert.True(t, matchPattern("/api/v1/users", "/api/v1/users"))
	assert.True(t, matchPattern("/api/v1/users", "/api/v1/users/"))
	assert.False(t, matchPattern("/api/v1/users", "/api/v1/users/42"))
	assert.True(t, matchPattern("/api/v1/users/{id}", "/api/v1/users/42"))
	assert.False(t, matchPattern("/api/v1/users/{id}", "/api/v1/users/42/bookings"))
	assert.True(t, matchPattern("/api/v1/users/role/*", "/api/v1/users/role/ADMIN"))
	assert.True(t, matchPattern("/api/v1/tours/*", "/api/v1/tours/location/Lisbon"))
	assert.False(t, matchPattern("/api/v1/tours/*", "/api/v1/bookings"))
}

func TestDefaultPolicyTable(t *testing.T) {
	p := DefaultPolicy()
	admin := []models.Role{models.RoleAdmin}
	staff := []models.Role{models.RoleAdmin, models.RoleTourOperator}
	all := []models.Role{models.RoleAdmin, models.RoleTourOperator, models.RoleTraveler}

	cases := []struct {
		method, path string
		public       bool
		allowed      []models.Role
	}{
		{http.MethodPost, "/auth/login", true, nil},
		{http.MethodPost, "/auth/register", true, nil},
		{http.MethodGet, "/metrics", true, nil},
		{http.MethodGet, "/api/v1/tours", true, nil},
		{http.MethodGet, "/api/v1/tours/t-1", true, nil},
		{http.MethodGet, "/api/v1/tours/location/Porto", true, nil},
		{http.MethodPost, "/api/v1/payments/webhook", true, nil},
		{http.MethodPost, "/api/v1/tours", false, all},
		{http.MethodPost, "/api/v1/users", false, admin},
		{http.MethodGet, "/api/v1/users/role/TRAVELER", false, admin},
		{http.MethodDelete, "/api/v1/users/u-1", false, admin},
		{http.MethodGet, "/api/v1/users", false, staff},
		{http.MethodGet, "/api/v1/users/u-1", false, all},
		{http.MethodPost, "/api/v1/payments", false, all},
		{http.MethodPost, "/api/v1/payments/p-1/refund", false, all},
		{http.MethodGet, "/api/v1/analytics/tours/t-1", false, staff},
		{http.MethodPost, "/api/v1/analytics/tours/batch", false, staff},
	}

	for _, tc := range cases {
		access := p.AccessFor(tc.method, tc.path)
		assert.Equal(t, tc.public, access.Public, "%s %s", tc.method, tc.path)
		if tc.public {
			continue
		}
		for _, role := range all {
			want := false
			for _, r := range tc.allowed {
				if r == role {
					want = true
				}
			}
			assert.Equal(t, want, access.Allows(role), "%s %s as %s", tc.method, tc.path, role)
		}
	}
}

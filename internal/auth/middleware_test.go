package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestRouter(gate *Gate) http.Handler {
	r := chi.NewRouter()
	r.Use(gate.Middleware())

	whoami := func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(p.Email + "|" + string(p.Role)))
	}
	r.Get("/api/v1/tours", whoami)
	r.Post("/api/v1/users", whoami)
	r.Get("/api/v1/users/{id}", whoami)
	r.Get("/api/v1/bookings", whoami)
	return r
}

func doRequest(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateRolePolicy(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := NewTokenService("gate-secret", time.Hour, WithClock(clock.Now))

	users := new(MockUserDirectory)
	users.On("FindByEmail", mock.Anything, "traveler@example.com").
		Return(&models.User{ID: "u-1", Email: "traveler@example.com", Role: models.RoleTraveler}, nil)
	users.On("FindByEmail", mock.Anything, "admin@example.com").
		Return(&models.User{ID: "u-2", Email: "admin@example.com", Role: models.RoleAdmin}, nil)

	router := newTestRouter(NewGate(tokens, users, DefaultPolicy(), logger.Nop()))

	travelerToken, err := tokens.Issue("traveler@example.com", models.RoleTraveler)
	require.NoError(t, err)
	adminToken, err := tokens.Issue("admin@example.com", models.RoleAdmin)
	require.NoError(t, err)

	t.Run("traveler on admin route is forbidden", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/v1/users", travelerToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin on admin route passes", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/v1/users", adminToken)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "admin@example.com|ADMIN", rec.Body.String())
	})

	t.Run("no credential is unauthorized", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/api/v1/users", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("any role may read a single user", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/users/u-9", travelerToken)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("public route skips credentials", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/api/v1/tours", "garbage")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("expired credential is unauthorized", func(t *testing.T) {
		clock.t = clock.t.Add(2 * time.Hour)
		defer func() { clock.t = clock.t.Add(-2 * time.Hour) }()

		rec := doRequest(router, http.MethodPost, "/api/v1/users", adminToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGateRejectsUnknownSubject(t *testing.T) {
	tokens := NewTokenService("gate-secret", time.Hour)
	users := new(MockUserDirectory)
	users.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

	router := newTestRouter(NewGate(tokens, users, DefaultPolicy(), logger.Nop()))

	token, err := tokens.Issue("ghost@example.com", models.RoleAdmin)
	require.NoError(t, err)

	rec := doRequest(router, http.MethodGet, "/api/v1/bookings", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	users.AssertExpectations(t)
}

func TestGateReportsDirectoryOutageAsServerError(t *testing.T) {
	tokens := NewTokenService("gate-secret", time.Hour)
	users := new(MockUserDirectory)
	users.On("FindByEmail", mock.Anything, "broken@example.com").Return(nil, errors.New("db down"))

	router := newTestRouter(NewGate(tokens, users, DefaultPolicy(), logger.Nop()))

	token, err := tokens.Issue("broken@example.com", models.RoleAdmin)
	require.NoError(t, err)

	rec := doRequest(router, http.MethodGet, "/api/v1/bookings", token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
	users.AssertExpectations(t)
}

func TestGateUsesPrincipalCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tokens := NewTokenService("gate-secret", time.Hour)
	users := new(MockUserDirectory)
	users.On("FindByEmail", mock.Anything, "op@example.com").
		Return(&models.User{ID: "u-3", Email: "op@example.com", Role: models.RoleTourOperator}, nil).Once()

	cache := NewRedisPrincipalCache(client, time.Minute)
	gate := NewGate(tokens, users, DefaultPolicy(), logger.Nop()).WithCache(cache)
	router := newTestRouter(gate)

	token, err := tokens.Issue("op@example.com", models.RoleTourOperator)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec := doRequest(router, http.MethodGet, "/api/v1/bookings", token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "op@example.com|TOUR_OPERATOR", rec.Body.String())
	}
	users.AssertNumberOfCalls(t, "FindByEmail", 1)

	require.NoError(t, cache.Evict(context.Background(), "op@example.com"))
	assert.False(t, mr.Exists("principal:op@example.com"))
}

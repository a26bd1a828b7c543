package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
	"ms-vitotrips/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// UserDirectory resolves token subjects to users. A missing user is
// (nil, nil).
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// PrincipalCache short-circuits directory lookups.
type PrincipalCache interface {
	Get(ctx context.Context, email string) (*Principal, error)
	Set(ctx context.Context, p *Principal) error
}

// Gate authenticates bearer tokens and enforces the route policy.
type Gate struct {
	tokens *TokenService
	users  UserDirectory
	policy *Policy
	cache  PrincipalCache
	log    *logger.Logger
}

func NewGate(tokens *TokenService, users UserDirectory, policy *Policy, log *logger.Logger) *Gate {
	return &Gate{tokens: tokens, users: users, policy: policy, log: log}
}

// WithCache enables principal caching; nil disables it.
func (g *Gate) WithCache(cache PrincipalCache) *Gate {
	g.cache = cache
	return g
}

func (g *Gate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access := g.policy.AccessFor(r.Method, r.URL.Path)
			if access.Public {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := g.authenticate(r)
			if err != nil {
				utils.WriteError(w, http.StatusInternalServerError, "Authentication unavailable", "could not resolve the caller, try again later")
				return
			}
			if principal == nil {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid credentials")
				return
			}
			if !access.Allows(principal.Role) {
				g.log.LogSecurity("FORBIDDEN", fmt.Sprintf("%s %s denied for %s (%s)", r.Method, r.URL.Path, principal.Email, principal.Role))
				utils.WriteError(w, http.StatusForbidden, "Forbidden", "insufficient role for this resource")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// authenticate returns a nil principal for anonymous or rejected callers. An
// error means the user directory could not be reached.
func (g *Gate) authenticate(r *http.Request) (*Principal, error) {
	token := ExtractBearerToken(r)
	if token == "" {
		return nil, nil
	}
	if !g.tokens.Validate(token) {
		g.log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s rejected", r.Method, r.URL.Path))
		return nil, nil
	}
	email := g.tokens.ExtractSubject(token)

	ctx := r.Context()
	if g.cache != nil {
		if p, err := g.cache.Get(ctx, email); err != nil {
			g.log.Warn("AUTH", fmt.Sprintf("principal cache read failed: %v", err))
		} else if p != nil {
			return p, nil
		}
	}

	user, err := g.users.FindByEmail(ctx, email)
	if err != nil {
		g.log.Error("AUTH", fmt.Sprintf("principal lookup for %s failed: %v", email, err))
		return nil, err
	}
	if user == nil {
		g.log.LogSecurity("UNKNOWN_SUBJECT", fmt.Sprintf("token subject %s has no account", email))
		return nil, nil
	}

	p := &Principal{UserID: user.ID, Email: user.Email, Role: user.Role}
	if g.cache != nil {
		if err := g.cache.Set(ctx, p); err != nil {
			g.log.Warn("AUTH", fmt.Sprintf("principal cache write failed: %v", err))
		}
	}
	return p, nil
}

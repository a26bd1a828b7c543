package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ms-vitotrips/internal/models"
)

// Claims carried by every access token. Subject holds the user's email.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and checks HS256 access tokens signed with a shared
// secret. It holds no state besides the secret and is safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) *TokenService {
	s := &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenService) Issue(email string, role models.Role) (string, error) {
	if email == "" {
		return "", errors.New("token subject is empty")
	}
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate fails closed: bad signature, foreign algorithm, malformed input or
// an expiry in the past all yield false.
func (s *TokenService) Validate(token string) bool {
	_, err := s.parse(token)
	return err == nil
}

// ExtractSubject returns the subject of a token that passed Validate, and ""
// for anything else.
func (s *TokenService) ExtractSubject(token string) string {
	claims, err := s.parse(token)
	if err != nil {
		return ""
	}
	return claims.Subject
}

func (s *TokenService) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ExtractBearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is absent or malformed.
func ExtractBearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

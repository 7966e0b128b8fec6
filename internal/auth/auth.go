// Package auth implements the login gate and the session tokens behind it.
// Credentials are two plaintext pairs sourced from configuration: the
// operator login and the administrator password. A successful login mints an
// HS256 session token; the admin password upgrades the session with an admin
// claim for reference-data management.
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"routeaudit/internal/platform/middleware"
	dErrors "routeaudit/pkg/domain-errors"
)

// Credentials holds the configured secrets.
type Credentials struct {
	LoginUser     string
	LoginPassword string
	AdminPassword string
}

// Claims is the JWT payload for a session token.
type Claims struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	Admin     bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Service verifies credentials and issues/validates session tokens.
type Service struct {
	credentials Credentials
	signingKey  []byte
	issuer      string
	sessionTTL  time.Duration
	now         func() time.Time
}

// New constructs the auth service.
func New(credentials Credentials, signingKey string, sessionTTL time.Duration) *Service {
	return &Service{
		credentials: credentials,
		signingKey:  []byte(signingKey),
		issuer:      "routeaudit",
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// VerifyLogin checks the operator credential pair in constant time.
func (s *Service) VerifyLogin(user, pass string) bool {
	if s.credentials.LoginUser == "" || s.credentials.LoginPassword == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.credentials.LoginUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.credentials.LoginPassword)) == 1
	return userOK && passOK
}

// VerifyAdmin checks the administrator password in constant time.
func (s *Service) VerifyAdmin(pass string) bool {
	if s.credentials.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(s.credentials.AdminPassword)) == 1
}

// Login verifies the operator pair and mints a session token.
func (s *Service) Login(user, pass string) (string, error) {
	if !s.VerifyLogin(user, pass) {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")
	}
	return s.mint(uuid.NewString(), user, false)
}

// Elevate verifies the admin password and re-issues the session token with
// the admin claim, keeping the same session ID so the workflow state carries
// over.
func (s *Service) Elevate(claims *middleware.SessionClaims, pass string) (string, error) {
	if claims == nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing session")
	}
	if !s.VerifyAdmin(pass) {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid admin password")
	}
	return s.mint(claims.SessionID, claims.User, true)
}

func (s *Service) mint(sessionID, user string, admin bool) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID,
		User:      user,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign session token")
	}
	return signed, nil
}

// ValidateToken implements middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*middleware.SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return &middleware.SessionClaims{
		SessionID: claims.SessionID,
		User:      claims.User,
		Admin:     claims.Admin,
	}, nil
}

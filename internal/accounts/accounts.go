// internal/accounts/accounts.go
//
// Player accounts and session tokens.
//   - Signup / Login with bcrypt password hashes.
//   - HS256 JWT issue and verification (claims: id, username, iat, exp).
//
// The resolved account ID is the player ID the turn engine works with.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/andthen/internal/game"
	"github.com/robalobadob/andthen/internal/store"
)

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// DefaultTokenTTL matches JWT_EXPIRES_DAYS=14.
const DefaultTokenTTL = 14 * 24 * time.Hour

// Claims carried in a session token.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles signup, login and token checks.
type Service struct {
	store  store.Accounts
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

type Option func(*Service)

// WithTokenTTL sets token lifetime. Non-positive values are ignored.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost (tests use bcrypt.MinCost).
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Accounts, secret string, opts ...Option) *Service {
	s := &Service{
		store:  st,
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return game.ValidationError(game.CodeInvalidField, "username must be 3-24 chars", "username")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return game.ValidationError(game.CodeInvalidField, "username: letters, numbers, underscore only", "username")
		}
	}
	if len(p) < 8 || len(p) > 72 {
		// bcrypt ignores bytes past 72
		return game.ValidationError(game.CodeInvalidField, "password must be 8-72 chars", "password")
	}
	return nil
}

// Signup creates an account. Validation failures are *game.Error values.
func (s *Service) Signup(ctx context.Context, username, password string) (store.Account, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, password); err != nil {
		return store.Account{}, err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return store.Account{}, fmt.Errorf("hash password: %w", err)
	}
	a, err := s.store.CreateAccount(ctx, store.Account{
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.Account{}, ErrUsernameTaken
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("create account: %w", err)
	}
	log.Info().Str("accountId", a.ID).Str("username", a.Username).Msg("account created")
	return a, nil
}

// Login checks credentials. Unknown user and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (store.Account, error) {
	a, err := s.store.AccountByUsername(ctx, normalizeUsername(username))
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("find account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return store.Account{}, ErrInvalidCredentials
	}
	return a, nil
}

// IssueToken signs a session token for a.
func (s *Service) IssueToken(a store.Account) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       a.ID,
		Username: a.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return ss, exp, nil
}

// Verify checks the signature and expiry and that the account still exists.
func (s *Service) Verify(ctx context.Context, tokenStr string) (store.Account, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.ID == "" {
		return store.Account{}, ErrInvalidToken
	}
	a, err := s.store.AccountByID(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Account{}, ErrInvalidToken
	}
	if err != nil {
		return store.Account{}, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

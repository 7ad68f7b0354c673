package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/watchlist/internal/domain"
	"github.com/MrSnakeDoc/watchlist/internal/logger"
)

// MinPasswordLength is the shortest password accepted at sign-up.
const MinPasswordLength = 6

// ErrInvalidInput wraps sign-up validation failures.
var ErrInvalidInput = errors.New("invalid input")

// Session is the result of a successful sign-in.
type Session struct {
	Identity  domain.Identity `json:"identity"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Provider is the authentication boundary used by the identity gate.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, username, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	Restore(ctx context.Context, token string) (domain.Identity, error)
}

// Users is the account record store. Implemented by the redis store.
type Users interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, email string) (*domain.User, error)
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Options configures a Service.
type Options struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int // 0 uses bcrypt.DefaultCost
	Now        func() time.Time
}

// Service authenticates accounts kept in Users and issues HS256 session tokens.
type Service struct {
	users  Users
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger logger.Logger
}

var _ Provider = (*Service)(nil)

// sessionClaims is the token payload. Subject is the account email, ID the token ID.
type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// NewService creates an auth service.
func NewService(users Users, opts Options, log logger.Logger) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		users:  users,
		secret: []byte(opts.Secret),
		ttl:    opts.SessionTTL,
		cost:   opts.BcryptCost,
		now:    opts.Now,
		logger: log,
	}
}

// SignIn checks the credential pair and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, &domain.FetchError{Op: "signin", Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("sign-in rejected", logger.String("email", email))
		return Session{}, domain.ErrInvalidCredentials
	}

	return s.issue(user.Identity())
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, username, email, password string) (Session, error) {
	username = strings.TrimSpace(username)
	email = domain.NormalizeEmail(email)

	if username == "" {
		return Session{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return Session{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return Session{}, err
		}
		return Session{}, &domain.FetchError{Op: "signup", Err: err}
	}

	s.logger.Info("account registered", logger.String("email", email))
	return s.issue(user.Identity())
}

// SignOut revokes token. Unparseable or expired tokens need no revocation.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.users.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return &domain.FetchError{Op: "signout", Err: err}
	}
	return nil
}

// Restore validates a stored session token and returns its account identity.
// Invalid, expired and revoked tokens return domain.ErrInvalidSession.
func (s *Service) Restore(ctx context.Context, token string) (domain.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Identity{}, domain.ErrInvalidSession
	}

	claims, err := s.parse(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}

	revoked, err := s.users.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Identity{}, &domain.FetchError{Op: "restore", Err: err}
	}
	if revoked {
		return domain.Identity{}, fmt.Errorf("%w: token revoked", domain.ErrInvalidSession)
	}

	return domain.Account(claims.Subject, claims.Name), nil
}

func (s *Service) issue(id domain.Identity) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &sessionClaims{
		Name: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return Session{Identity: id, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("token is missing subject or id")
	}
	return claims, nil
}

package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/classtrackapp/classtrack/internal/apperrors"
	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/repository"
)

const defaultSessionTTL = 24 * time.Hour

// Interface to create or compare user password hashes
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Secret key to sign session tokens
	SecretKey string

	// Session token lifetime, defaults to 24h
	SessionTTL time.Duration

	// Hasher for user passwords, defaults to BcryptHasher
	Hasher PasswordHasher
}

// Session is what a successful register or login hands back to the client
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

type sessionClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

type Service struct {
	key    string
	alg    jwt.SigningMethod
	ttl    time.Duration
	hasher PasswordHasher
	users  repository.UserRepo
}

func NewService(cfg Config, users repository.UserRepo) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must be set")
	}
	if users == nil {
		return nil, errors.New("user repo must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = defaultSessionTTL
	}

	return &Service{
		key:    cfg.SecretKey,
		alg:    jwt.SigningMethodHS256,
		ttl:    ttl,
		hasher: hasher,
		users:  users,
	}, nil
}

func (s *Service) Register(ctx context.Context, username string, password string) (Session, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Session{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.users.CreateUser(ctx, username, hash)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(user)
}

// Login authenticates by username and password.
// A wrong password maps to apperrors.ErrAccountNotFound on purpose: the
// response must not reveal whether the account exists.
func (s *Service) Login(ctx context.Context, username string, password string) (Session, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return Session{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return Session{}, apperrors.ErrAccountNotFound
	}

	return s.issueSession(user)
}

// UserFromToken validates a session token and loads its user
func (s *Service) UserFromToken(ctx context.Context, token string) (models.User, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(s.key), nil },
		jwt.WithValidMethods([]string{s.alg.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return models.User{}, fmt.Errorf("invalid session token: %w", err)
	}

	return s.users.GetUserByID(ctx, claims.UserID)
}

func (s *Service) issueSession(user models.User) (Session, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(s.alg, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.ID,
	})

	signed, err := token.SignedString([]byte(s.key))
	if err != nil {
		return Session{}, fmt.Errorf("error while signing session token. Err: %w", err)
	}

	return Session{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

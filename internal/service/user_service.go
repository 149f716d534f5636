package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartbank/internal/config"
	"smartbank/internal/model"
	"smartbank/internal/storage"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72 // bcrypt input limit
)

var ErrInvalidPassword = fmt.Errorf("password must be %d-%d characters", minPasswordLength, maxPasswordBytes)

// UserService handles registration, authentication and token verification.
type UserService struct {
	store     storage.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewUserService(store storage.Store, cfg *config.Config) *UserService {
	return &UserService{
		store:     store,
		jwtSecret: []byte(cfg.JWT.Secret),
		tokenTTL:  time.Duration(cfg.JWT.ExpireMinutes) * time.Minute,
		now:       time.Now,
	}
}

// Register creates a user with a bcrypt-hashed password. Email uniqueness is
// enforced by the store.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if len(password) < minPasswordLength || len(password) > maxPasswordBytes {
		return nil, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, storeErr(err)
	}
	return user, nil
}

// Authenticate verifies the credentials. A missing user and a wrong password
// produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// IssueToken signs a bearer token carrying the user id and admin flag.
func (s *UserService) IssueToken(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
		"exp":      s.now().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken parses a bearer token and resolves the user it names.
func (s *UserService) VerifyToken(ctx context.Context, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	user, err := s.store.UserByID(ctx, int64(rawID))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, storeErr(err)
	}
	return user, nil
}

// ListUsers returns every registered user. Admin only; enforced by the
// handler layer.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return user, nil
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/adhikramm/CertWallet/internal/models"
	"github.com/adhikramm/CertWallet/internal/store"
)

// ErrInvalidCredentials is returned for any login failure; it never says
// whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword hashes a secret using bcrypt. Used for account passwords
// and share passwords alike; the plaintext is never stored.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// VerifyPassword compares a plain secret with a bcrypt digest.
// bcrypt's comparison is constant time.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// AuthService handles account registration, login and JWT issuance.
type AuthService struct {
	users     store.UserStore
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(users store.UserStore, jwtSecret string) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  4 * time.Hour,
	}
}

// GenerateJWT generates a JWT token with user ID and role.
func (s *AuthService) GenerateJWT(userID string, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// RegisterUser registers a new user account.
func (s *AuthService) RegisterUser(ctx context.Context, email, name, password string) (models.User, error) {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Email:     email,
		Name:      name,
		Password:  hashedPassword,
		Role:      "user",
		CreatedAt: time.Now(),
	}
	if err := s.users.Insert(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// LoginUser authenticates a user and returns a JWT with role info.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.Password) {
		return "", "", ErrInvalidCredentials
	}

	token, err := s.GenerateJWT(user.ID.Hex(), user.Role)
	if err != nil {
		return "", "", err
	}

	return token, user.Role, nil
}

// GetProfile returns the account for the given user ID.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

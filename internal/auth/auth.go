package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wasabi/internal/apperr"
	"wasabi/internal/models"
)

// UserStore is the slice of the database the auth service needs.
type UserStore interface {
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	UsernameExists(username string) (bool, error)
	EmailExists(email string) (bool, error)
}

type Service struct {
	store  UserStore
	tokens *TokenManager
}

func NewService(store UserStore, tokens *TokenManager) *Service {
	return &Service{store: store, tokens: tokens}
}

// Register validates the request, checks username and email availability and
// persists the new user with a bcrypt password hash. The availability checks
// are advisory; the unique constraints in the database are the backstop and
// their violation also surfaces as USER_ALREADY_EXISTS.
func (s *Service) Register(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	var fieldErrors []string
	if username == "" {
		fieldErrors = append(fieldErrors, "username cannot be empty")
	}
	if email == "" {
		fieldErrors = append(fieldErrors, "email cannot be empty")
	}
	if strings.TrimSpace(password) == "" {
		fieldErrors = append(fieldErrors, "password cannot be empty")
	}
	if len(fieldErrors) > 0 {
		return nil, apperr.Validation("validation failed", fieldErrors)
	}

	exists, err := s.store.UsernameExists(username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.New(apperr.TypeUserAlreadyExists, "username already taken")
	}

	exists, err = s.store.EmailExists(email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.New(apperr.TypeUserAlreadyExists, "email already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies the credentials and issues a token for the user.
func (s *Service) Login(username, password string) (*models.User, string, time.Time, error) {
	user, err := s.store.GetUserByUsername(username)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", time.Time{}, apperr.New(apperr.TypeInvalidCredentials, "invalid username or password")
	}

	token, expiresAt, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	return user, token, expiresAt, nil
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Middleware verifies the bearer token, confirms the subject still exists and
// passes the identity downstream in the X-Username header.
func (s *Service) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing authorization header", apperr.TypeTokenInvalid)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			unauthorized(w, "invalid authorization header format", apperr.TypeTokenInvalid)
			return
		}

		claims, err := s.tokens.Validate(tokenString, "")
		if err != nil {
			errType := apperr.TypeTokenInvalid
			if e, ok := apperr.As(err); ok {
				errType = e.Type
			}
			unauthorized(w, "invalid or expired token", errType)
			return
		}

		exists, err := s.store.UsernameExists(claims.Subject)
		if err != nil || !exists {
			unauthorized(w, "user not found", apperr.TypeTokenInvalid)
			return
		}

		r.Header.Set("X-Username", claims.Subject)
		next(w, r)
	}
}

func unauthorized(w http.ResponseWriter, message string, errType apperr.Type) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.Response{
		Success:   false,
		Error:     message,
		ErrorType: string(errType),
	})
}

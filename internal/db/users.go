package db

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"wasabi/internal/apperr"
	"wasabi/internal/models"
)

// CreateUser inserts a new user row. Unique-constraint violations (a
// concurrent registration that raced past the advisory pre-check) are
// translated to USER_ALREADY_EXISTS.
func (s *Store) CreateUser(user *models.User) error {
	err := s.db.QueryRow(
		"INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, $4) RETURNING created_at",
		user.ID, user.Username, user.Email, user.PasswordHash,
	).Scan(&user.CreatedAt)

	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return apperr.New(apperr.TypeUserAlreadyExists, "email already taken")
			}
			return apperr.New(apperr.TypeUserAlreadyExists, "username already taken")
		}
		return err
	}

	return nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(
		"SELECT id, username, email, password_hash, profile_image, created_at FROM users WHERE username = $1",
		username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.ProfileImageID, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.TypeUserNotFound, "user not found")
	} else if err != nil {
		return nil, err
	}

	return &user, nil
}

// UsernameExists reports whether a user with the given username exists.
func (s *Store) UsernameExists(username string) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	return exists, err
}

// EmailExists reports whether a user with the given email exists.
func (s *Store) EmailExists(email string) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	return exists, err
}

// SetProfileImage points a user's profile image at an uploaded file.
func (s *Store) SetProfileImage(username string, fileID uuid.UUID) error {
	result, err := s.db.Exec(
		"UPDATE users SET profile_image = $1 WHERE username = $2",
		fileID, username,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.New(apperr.TypeUserNotFound, "user not found")
	}

	return nil
}

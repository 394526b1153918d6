package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	ProfileImageID *uuid.UUID `json:"profileImageId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type Claims struct {
	jwt.RegisteredClaims
}

// FileUpload is the metadata row for one stored file. FileName is the
// server-generated stored name; OriginalFileName is whatever the client sent.
type FileUpload struct {
	ID               uuid.UUID `json:"id"`
	OriginalFileName string    `json:"originalFileName"`
	FileName         string    `json:"fileName"`
	FilePath         string    `json:"-"`
	FileURL          string    `json:"fileUrl"`
	ContentType      string    `json:"contentType"`
	FileSize         int64     `json:"fileSize"`
	UploadedBy       string    `json:"uploadedBy"`
	UploadedAt       time.Time `json:"uploadedAt"`
	IsPublic         bool      `json:"isPublic"`
	Description      string    `json:"description,omitempty"`
}

// FileMetadata carries the optional upload form fields.
type FileMetadata struct {
	Description string
	IsPublic    bool
}

type Response struct {
	Success          bool        `json:"success"`
	Message          string      `json:"message,omitempty"`
	Error            string      `json:"error,omitempty"`
	ErrorType        string      `json:"errorType,omitempty"`
	ValidationErrors []string    `json:"validationErrors,omitempty"`
	Data             interface{} `json:"data,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
}

type ProfilePicResponse struct {
	ID               uuid.UUID `json:"id"`
	OriginalFileName string    `json:"originalFileName"`
	FileURL          string    `json:"fileUrl"`
}

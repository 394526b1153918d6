package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"wasabi/internal/apperr"
	"wasabi/internal/auth"
	"wasabi/internal/config"
	"wasabi/internal/files"
	"wasabi/internal/models"
)

// ProfileStore links an uploaded file to a user as their profile picture.
type ProfileStore interface {
	SetProfileImage(username string, fileID uuid.UUID) error
}

type Handler struct {
	auth     *auth.Service
	files    *files.Service
	profiles ProfileStore
	cfg      *config.Config
}

func New(authSvc *auth.Service, fileSvc *files.Service, profiles ProfileStore, cfg *config.Config) *Handler {
	return &Handler{
		auth:     authSvc,
		files:    fileSvc,
		profiles: profiles,
		cfg:      cfg,
	}
}

func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError maps a domain error to its status and envelope. Unexpected
// errors are logged in full and surfaced only as a generic message.
func sendError(w http.ResponseWriter, err error) {
	if e, ok := apperr.As(err); ok {
		SendJSON(w, apperr.HTTPStatus(e.Type), models.Response{
			Success:          false,
			Error:            e.Message,
			ErrorType:        string(e.Type),
			ValidationErrors: e.ValidationErrors,
		})
		return
	}

	log.Printf("Internal error: %v\n", err)
	SendJSON(w, http.StatusInternalServerError, models.Response{
		Success:   false,
		Error:     "internal server error",
		ErrorType: string(apperr.TypeInternal),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	SendJSON(w, http.StatusMethodNotAllowed, models.Response{
		Success: false,
		Message: "Method not allowed",
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSON(w, http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	user, err := h.auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		sendError(w, err)
		return
	}

	log.Printf("User registered: %s\n", user.Username)
	SendJSON(w, http.StatusCreated, models.Response{
		Success: true,
		Message: "User registered successfully",
		Data: map[string]interface{}{
			"username":  user.Username,
			"email":     user.Email,
			"createdAt": user.CreatedAt,
		},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendJSON(w, http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	user, token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: "Login successful",
		Data: models.LoginResponse{
			Token:     token,
			ExpiresAt: expiresAt,
			Username:  user.Username,
		},
	})
}

// uploadForm parses the multipart form shared by the upload endpoints.
func (h *Handler) uploadForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, models.FileMetadata, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		return nil, models.FileMetadata{}, apperr.Validation("file too large or bad request", nil)
	}

	meta := models.FileMetadata{
		Description: r.FormValue("description"),
		IsPublic:    true,
	}
	if v := r.FormValue("isPublic"); v != "" {
		isPublic, err := strconv.ParseBool(v)
		if err != nil {
			return nil, models.FileMetadata{}, apperr.Validation("isPublic must be a boolean", nil)
		}
		meta.IsPublic = isPublic
	}

	return r.MultipartForm, meta, nil
}

func (h *Handler) uploadOne(header *multipart.FileHeader, uploadedBy string, meta models.FileMetadata) (*models.FileUpload, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return h.files.Upload(src, header.Filename, header.Header.Get("Content-Type"), header.Size, uploadedBy, meta)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	username := r.Header.Get("X-Username")

	form, meta, err := h.uploadForm(w, r)
	if err != nil {
		sendError(w, err)
		return
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		sendError(w, apperr.New(apperr.TypeEmptyFile, "please select a file to upload"))
		return
	}

	record, err := h.uploadOne(headers[0], username, meta)
	if err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, models.Response{
		Success: true,
		Message: "File uploaded successfully",
		Data:    record,
	})
}

func (h *Handler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	username := r.Header.Get("X-Username")

	form, meta, err := h.uploadForm(w, r)
	if err != nil {
		sendError(w, err)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		sendError(w, apperr.New(apperr.TypeEmptyFile, "please select files to upload"))
		return
	}

	records := make([]*models.FileUpload, 0, len(headers))
	for _, header := range headers {
		record, err := h.uploadOne(header, username, meta)
		if err != nil {
			sendError(w, err)
			return
		}
		records = append(records, record)
	}

	SendJSON(w, http.StatusCreated, models.Response{
		Success: true,
		Message: fmt.Sprintf("Uploaded %d files", len(records)),
		Data:    records,
	})
}

func (h *Handler) ProfilePicUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	username := r.Header.Get("X-Username")

	form, _, err := h.uploadForm(w, r)
	if err != nil {
		sendError(w, err)
		return
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		sendError(w, apperr.New(apperr.TypeEmptyFile, "please select a file to upload"))
		return
	}

	record, err := h.uploadOne(headers[0], username, models.FileMetadata{IsPublic: true})
	if err != nil {
		sendError(w, err)
		return
	}

	if err := h.profiles.SetProfileImage(username, record.ID); err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: "Profile picture updated",
		Data: models.ProfilePicResponse{
			ID:               record.ID,
			OriginalFileName: record.OriginalFileName,
			FileURL:          record.FileURL,
		},
	})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	fileName := filepath.Base(r.URL.Path[len("/api/files/download/"):])
	if fileName == "" || fileName == "." {
		SendJSON(w, http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid filename",
		})
		return
	}

	record, f, err := h.files.Download(fileName)
	if err != nil {
		sendError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.OriginalFileName))
	w.Header().Set("Content-Type", record.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(record.FileSize, 10))

	io.Copy(w, f)
}

func (h *Handler) FileInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	fileName := filepath.Base(r.URL.Path[len("/api/files/info/"):])
	record, err := h.files.GetInfo(fileName)
	if err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, models.Response{
		Success: true,
		Data:    record,
	})
}

func (h *Handler) UserFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	username := r.Header.Get("X-Username")

	records, err := h.files.ListByUploader(username)
	if err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: fmt.Sprintf("Found %d files", len(records)),
		Data:    records,
	})
}

func (h *Handler) PublicFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	records, err := h.files.ListPublic()
	if err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: fmt.Sprintf("Found %d files", len(records)),
		Data:    records,
	})
}

func (h *Handler) FilesByType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	prefix := r.URL.Query().Get("contentType")
	if prefix == "" {
		SendJSON(w, http.StatusBadRequest, models.Response{
			Success: false,
			Message: "contentType query parameter is required",
		})
		return
	}

	records, err := h.files.ListByContentType(prefix)
	if err != nil {
		sendError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: fmt.Sprintf("Found %d files", len(records)),
		Data:    records,
	})
}

// FileByName serves GET /api/files/{name} (inline) and DELETE
// /api/files/{name} (owner only, behind auth).
func (h *Handler) FileByName(w http.ResponseWriter, r *http.Request) {
	fileName := filepath.Base(r.URL.Path[len("/api/files/"):])
	if fileName == "" || fileName == "." {
		SendJSON(w, http.StatusBadRequest, models.Response{
			Success: false,
			Message: "Invalid filename",
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		record, f, err := h.files.Download(fileName)
		if err != nil {
			sendError(w, err)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", record.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(record.FileSize, 10))
		io.Copy(w, f)

	case http.MethodDelete:
		h.auth.Middleware(func(w http.ResponseWriter, r *http.Request) {
			username := r.Header.Get("X-Username")
			if err := h.files.Delete(fileName, username); err != nil {
				sendError(w, err)
				return
			}

			SendJSON(w, http.StatusOK, models.Response{
				Success: true,
				Message: "File deleted successfully",
				Data: map[string]string{
					"fileName": fileName,
					"user":     username,
				},
			})
		})(w, r)

	default:
		methodNotAllowed(w)
	}
}

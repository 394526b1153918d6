// Package files implements the upload pipeline: validation, stored-name
// generation, disk storage and the metadata rows that describe each file.
package files

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"wasabi/internal/apperr"
	"wasabi/internal/config"
	"wasabi/internal/models"
)

// MetadataStore is the slice of the database the file service needs.
type MetadataStore interface {
	CreateFileUpload(f *models.FileUpload) error
	GetFileByName(fileName string) (*models.FileUpload, error)
	ListFilesByUploader(uploadedBy string) ([]*models.FileUpload, error)
	ListPublicFiles() ([]*models.FileUpload, error)
	ListFilesByContentType(prefix string) ([]*models.FileUpload, error)
	DeleteFileByName(fileName string) error
}

type Service struct {
	store MetadataStore
	cfg   *config.Config
}

func NewService(store MetadataStore, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// Upload validates the file, writes its bytes under a generated stored name
// and persists the metadata row. The stored name is never derived from the
// original name, so collisions and path injection are impossible. The disk
// write and the row insert are not atomic; a crash in between leaves an
// orphaned file.
func (s *Service) Upload(src io.Reader, originalName, contentType string, size int64, uploadedBy string, meta models.FileMetadata) (*models.FileUpload, error) {
	if size == 0 {
		return nil, apperr.New(apperr.TypeEmptyFile, "please select a file to upload")
	}

	cleanName := filepath.Clean(filepath.ToSlash(originalName))
	if strings.Contains(cleanName, "..") {
		return nil, apperr.New(apperr.TypeInvalidFileName, "filename contains invalid path sequence: "+originalName)
	}

	ext := Extension(cleanName)
	if !s.cfg.ExtensionAllowed(ext) {
		return nil, apperr.New(apperr.TypeExtensionNotAllowed, "file extension not allowed: "+ext)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0755); err != nil {
		return nil, err
	}

	storedName := StoredName(ext)
	storedPath := filepath.Join(s.cfg.UploadDir, storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, err
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	record := &models.FileUpload{
		ID:               uuid.New(),
		OriginalFileName: filepath.Base(cleanName),
		FileName:         storedName,
		FilePath:         storedPath,
		FileURL:          s.cfg.URLPrefix + "/" + storedName,
		ContentType:      contentType,
		FileSize:         written,
		UploadedBy:       uploadedBy,
		IsPublic:         meta.IsPublic,
		Description:      meta.Description,
	}

	if err := s.store.CreateFileUpload(record); err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	log.Printf("File uploaded: %s (%d bytes) by %s\n", storedName, written, uploadedBy)
	return record, nil
}

// Download resolves a stored filename to its metadata and an open reader.
// The caller owns closing the reader.
func (s *Service) Download(fileName string) (*models.FileUpload, *os.File, error) {
	record, err := s.store.GetFileByName(fileName)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(record.FilePath)
	if err != nil {
		log.Printf("Stored file missing or unreadable: %s: %v\n", record.FilePath, err)
		return nil, nil, apperr.New(apperr.TypeNotFound, "file not found or not readable: "+fileName)
	}

	return record, f, nil
}

// GetInfo returns the metadata row for a stored filename.
func (s *Service) GetInfo(fileName string) (*models.FileUpload, error) {
	return s.store.GetFileByName(fileName)
}

// ListByUploader returns the files a user has uploaded.
func (s *Service) ListByUploader(uploadedBy string) ([]*models.FileUpload, error) {
	return s.store.ListFilesByUploader(uploadedBy)
}

// ListPublic returns all public files.
func (s *Service) ListPublic() ([]*models.FileUpload, error) {
	return s.store.ListPublicFiles()
}

// ListByContentType returns files whose content type starts with prefix.
func (s *Service) ListByContentType(prefix string) ([]*models.FileUpload, error) {
	return s.store.ListFilesByContentType(prefix)
}

// Delete removes a file and its metadata. Only the uploader may delete.
// A missing physical file is not an error; the row is removed regardless.
func (s *Service) Delete(fileName, requester string) error {
	record, err := s.store.GetFileByName(fileName)
	if err != nil {
		return err
	}

	if record.UploadedBy != requester {
		return apperr.New(apperr.TypePermissionDenied, "you don't have permission to delete this file")
	}

	if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := s.store.DeleteFileByName(fileName); err != nil {
		return err
	}

	log.Printf("File deleted: %s by %s\n", fileName, requester)
	return nil
}

// Extension returns the lowercased extension of name without the dot, or ""
// when the name has none.
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// StoredName generates a globally unique stored filename for an extension.
func StoredName(ext string) string {
	return uuid.New().String() + "." + ext
}

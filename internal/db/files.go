package db

import (
	"database/sql"

	"wasabi/internal/apperr"
	"wasabi/internal/models"
)

const fileColumns = "id, original_file_name, file_name, file_path, file_url, content_type, file_size, uploaded_by, uploaded_at, is_public, COALESCE(description, '')"

func scanFile(row interface{ Scan(...any) error }) (*models.FileUpload, error) {
	var f models.FileUpload
	err := row.Scan(&f.ID, &f.OriginalFileName, &f.FileName, &f.FilePath, &f.FileURL,
		&f.ContentType, &f.FileSize, &f.UploadedBy, &f.UploadedAt, &f.IsPublic, &f.Description)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFileUpload inserts a metadata row for a stored file.
func (s *Store) CreateFileUpload(f *models.FileUpload) error {
	return s.db.QueryRow(
		`INSERT INTO file_uploads
			(id, original_file_name, file_name, file_path, file_url, content_type, file_size, uploaded_by, is_public, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		 RETURNING uploaded_at`,
		f.ID, f.OriginalFileName, f.FileName, f.FilePath, f.FileURL,
		f.ContentType, f.FileSize, f.UploadedBy, f.IsPublic, f.Description,
	).Scan(&f.UploadedAt)
}

// GetFileByName retrieves a file record by its stored filename.
func (s *Store) GetFileByName(fileName string) (*models.FileUpload, error) {
	f, err := scanFile(s.db.QueryRow(
		"SELECT "+fileColumns+" FROM file_uploads WHERE file_name = $1",
		fileName,
	))
	if err == sql.ErrNoRows {
		return nil, apperr.New(apperr.TypeNotFound, "file not found: "+fileName)
	} else if err != nil {
		return nil, err
	}
	return f, nil
}

// ListFilesByUploader retrieves all files uploaded by a user, newest first.
func (s *Store) ListFilesByUploader(uploadedBy string) ([]*models.FileUpload, error) {
	return s.listFiles(
		"SELECT "+fileColumns+" FROM file_uploads WHERE uploaded_by = $1 ORDER BY uploaded_at DESC",
		uploadedBy,
	)
}

// ListPublicFiles retrieves all public files, newest first.
func (s *Store) ListPublicFiles() ([]*models.FileUpload, error) {
	return s.listFiles("SELECT " + fileColumns + " FROM file_uploads WHERE is_public ORDER BY uploaded_at DESC")
}

// ListFilesByContentType retrieves files whose content type starts with the
// given prefix, e.g. "image/".
func (s *Store) ListFilesByContentType(prefix string) ([]*models.FileUpload, error) {
	return s.listFiles(
		"SELECT "+fileColumns+" FROM file_uploads WHERE content_type LIKE $1 || '%' ORDER BY uploaded_at DESC",
		prefix,
	)
}

func (s *Store) listFiles(query string, args ...any) ([]*models.FileUpload, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]*models.FileUpload, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// DeleteFileByName deletes a file record by its stored filename.
func (s *Store) DeleteFileByName(fileName string) error {
	result, err := s.db.Exec("DELETE FROM file_uploads WHERE file_name = $1", fileName)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.New(apperr.TypeNotFound, "file not found: "+fileName)
	}

	return nil
}

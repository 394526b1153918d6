package db

import (
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps the postgres connection and owns all SQL in the application.
type Store struct {
	db *sql.DB
}

func Open(connString string) (*Store, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			log.Println("Connected to database")
			return &Store{db: db}, nil
		}
		log.Printf("Waiting for database... (%d/30)\n", i+1)
		time.Sleep(1 * time.Second)
	}

	return nil, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables if they do not exist. Uniqueness of
// username, email and stored filename is enforced here; the application
// pre-checks are advisory only.
func (s *Store) InitSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS file_uploads (
			id UUID PRIMARY KEY,
			original_file_name TEXT NOT NULL,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_url TEXT NOT NULL,
			content_type TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			uploaded_by TEXT,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			is_public BOOLEAN NOT NULL DEFAULT TRUE,
			description TEXT,
			CONSTRAINT file_uploads_file_name_key UNIQUE (file_name)
		);

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			profile_image UUID REFERENCES file_uploads(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT users_username_key UNIQUE (username),
			CONSTRAINT users_email_key UNIQUE (email)
		);
	`)
	return err
}

// uniqueViolation reports whether err is a unique-constraint violation and,
// if so, which constraint was hit.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

package sftpserver

import (
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"

	"wasabi/internal/config"
	"wasabi/internal/files"
	"wasabi/internal/models"
)

// UserFileSystem presents a user's uploads as a flat virtual directory keyed
// by stored filename. It implements the sftp request handlers.
type UserFileSystem struct {
	username string
	cfg      *config.Config
	svc      *files.Service
	store    files.MetadataStore
}

// NewUserFileSystem creates a new user-specific filesystem handler
func NewUserFileSystem(username string, cfg *config.Config, svc *files.Service, store files.MetadataStore) *UserFileSystem {
	return &UserFileSystem{
		username: username,
		cfg:      cfg,
		svc:      svc,
		store:    store,
	}
}

// owned looks up a stored filename and checks the caller uploaded it.
func (fs *UserFileSystem) owned(fileName string) (*models.FileUpload, error) {
	record, err := fs.store.GetFileByName(fileName)
	if err != nil {
		return nil, os.ErrNotExist
	}
	if record.UploadedBy != fs.username {
		return nil, os.ErrPermission
	}
	return record, nil
}

// Fileread implements sftp.FileReader interface
func (fs *UserFileSystem) Fileread(r *sftp.Request) (io.ReaderAt, error) {
	fileName := filepath.Base(r.Filepath)

	record, err := fs.owned(fileName)
	if err != nil {
		log.Printf("SFTP read denied for %s: %s", fs.username, fileName)
		return nil, err
	}

	f, err := os.Open(record.FilePath)
	if err != nil {
		log.Printf("Failed to open file %s: %v", record.FilePath, err)
		return nil, err
	}

	return f, nil
}

// Filewrite implements sftp.FileWriter interface. The incoming name passes
// the same validation as HTTP uploads and the bytes land under a generated
// stored name; the metadata row is created when the write completes.
func (fs *UserFileSystem) Filewrite(r *sftp.Request) (io.WriterAt, error) {
	clientName := filepath.Base(r.Filepath)

	if strings.Contains(clientName, "..") {
		return nil, os.ErrPermission
	}

	ext := files.Extension(clientName)
	if !fs.cfg.ExtensionAllowed(ext) {
		log.Printf("SFTP write rejected for %s: extension %q not allowed", fs.username, ext)
		return nil, os.ErrPermission
	}

	if err := os.MkdirAll(fs.cfg.UploadDir, 0755); err != nil {
		log.Printf("Failed to create upload directory: %v", err)
		return nil, err
	}

	storedName := files.StoredName(ext)
	storedPath := filepath.Join(fs.cfg.UploadDir, storedName)

	f, err := os.Create(storedPath)
	if err != nil {
		log.Printf("Failed to create file: %v", err)
		return nil, err
	}

	return &fileWriter{
		File:       f,
		fs:         fs,
		clientName: clientName,
		storedName: storedName,
		storedPath: storedPath,
		ext:        ext,
	}, nil
}

// Filecmd implements sftp.FileCmder interface
func (fs *UserFileSystem) Filecmd(r *sftp.Request) error {
	switch r.Method {
	case "Remove":
		fileName := filepath.Base(r.Filepath)
		if err := fs.svc.Delete(fileName, fs.username); err != nil {
			return os.ErrNotExist
		}
		return nil

	case "Rename":
		// stored names are server-generated, renaming makes no sense
		return sftp.ErrSSHFxOpUnsupported

	case "Mkdir":
		log.Printf("Mkdir requested but not supported: %s", r.Filepath)
		return nil

	case "Rmdir":
		log.Printf("Rmdir requested but not supported: %s", r.Filepath)
		return nil

	case "Setstat":
		return nil

	default:
		return sftp.ErrSSHFxOpUnsupported
	}
}

func (fs *UserFileSystem) Filestat(r *sftp.Request) (os.FileInfo, error) {
	if r.Filepath == "/" {
		return &virtualFileInfo{
			name:    "/",
			size:    0,
			modTime: time.Now(),
			isDir:   true,
		}, nil
	}

	fileName := filepath.Base(r.Filepath)
	record, err := fs.owned(fileName)
	if err != nil {
		return nil, err
	}

	return &virtualFileInfo{
		name:    record.FileName,
		size:    record.FileSize,
		modTime: record.UploadedAt,
		isDir:   false,
	}, nil
}

func (fs *UserFileSystem) Lstat(r *sftp.Request) (os.FileInfo, error) {
	return fs.Filestat(r)
}

func (fs *UserFileSystem) Filelist(r *sftp.Request) (sftp.ListerAt, error) {
	records, err := fs.store.ListFilesByUploader(fs.username)
	if err != nil {
		log.Printf("Failed to list files: %v", err)
		return nil, err
	}

	var fileInfos []os.FileInfo
	for _, record := range records {
		fileInfos = append(fileInfos, &virtualFileInfo{
			name:    record.FileName,
			size:    record.FileSize,
			modTime: record.UploadedAt,
			isDir:   false,
		})
	}

	return listerat(fileInfos), nil
}

// fileWriter wraps os.File to register the metadata row on close
type fileWriter struct {
	*os.File
	fs         *UserFileSystem
	clientName string
	storedName string
	storedPath string
	ext        string
	closed     bool
}

func (fw *fileWriter) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true

	if err := fw.File.Close(); err != nil {
		return err
	}

	stat, err := os.Stat(fw.storedPath)
	if err != nil {
		log.Printf("Failed to stat uploaded file: %v", err)
		return err
	}

	if stat.Size() == 0 {
		os.Remove(fw.storedPath)
		return os.ErrInvalid
	}

	contentType := mime.TypeByExtension("." + fw.ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	record := &models.FileUpload{
		ID:               uuid.New(),
		OriginalFileName: fw.clientName,
		FileName:         fw.storedName,
		FilePath:         fw.storedPath,
		FileURL:          fw.fs.cfg.URLPrefix + "/" + fw.storedName,
		ContentType:      contentType,
		FileSize:         stat.Size(),
		UploadedBy:       fw.fs.username,
		IsPublic:         true,
	}

	if err := fw.fs.store.CreateFileUpload(record); err != nil {
		log.Printf("Failed to save file to database: %v", err)
		os.Remove(fw.storedPath)
		return err
	}

	log.Printf("File uploaded via SFTP: %s (%d bytes) by %s", fw.storedName, stat.Size(), fw.fs.username)
	return nil
}

// virtualFileInfo implements os.FileInfo interface
type virtualFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (fi *virtualFileInfo) Name() string { return fi.name }
func (fi *virtualFileInfo) Size() int64  { return fi.size }
func (fi *virtualFileInfo) Mode() os.FileMode {
	if fi.isDir {
		return 0755 | os.ModeDir
	}
	return 0644
}
func (fi *virtualFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *virtualFileInfo) IsDir() bool        { return fi.isDir }
func (fi *virtualFileInfo) Sys() interface{}   { return nil }

// listerat implements sftp.ListerAt interface
type listerat []os.FileInfo

func (l listerat) ListAt(f []os.FileInfo, offset int64) (int, error) {
	if offset >= int64(len(l)) {
		return 0, io.EOF
	}

	n := copy(f, l[offset:])
	if n < len(f) {
		return n, io.EOF
	}
	return n, nil
}

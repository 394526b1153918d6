package sftpserver

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasabi/internal/apperr"
	"wasabi/internal/config"
	"wasabi/internal/files"
	"wasabi/internal/models"
)

type fakeMetadataStore struct {
	records map[string]*models.FileUpload
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{records: make(map[string]*models.FileUpload)}
}

func (s *fakeMetadataStore) CreateFileUpload(f *models.FileUpload) error {
	if _, ok := s.records[f.FileName]; ok {
		return apperr.New(apperr.TypeInternal, "duplicate stored name")
	}
	f.UploadedAt = time.Now()
	s.records[f.FileName] = f
	return nil
}

func (s *fakeMetadataStore) GetFileByName(fileName string) (*models.FileUpload, error) {
	f, ok := s.records[fileName]
	if !ok {
		return nil, apperr.New(apperr.TypeNotFound, "file not found: "+fileName)
	}
	return f, nil
}

func (s *fakeMetadataStore) ListFilesByUploader(uploadedBy string) ([]*models.FileUpload, error) {
	var out []*models.FileUpload
	for _, f := range s.records {
		if f.UploadedBy == uploadedBy {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeMetadataStore) ListPublicFiles() ([]*models.FileUpload, error) {
	var out []*models.FileUpload
	for _, f := range s.records {
		if f.IsPublic {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeMetadataStore) ListFilesByContentType(prefix string) ([]*models.FileUpload, error) {
	var out []*models.FileUpload
	for _, f := range s.records {
		if strings.HasPrefix(f.ContentType, prefix) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeMetadataStore) DeleteFileByName(fileName string) error {
	if _, ok := s.records[fileName]; !ok {
		return apperr.New(apperr.TypeNotFound, "file not found: "+fileName)
	}
	delete(s.records, fileName)
	return nil
}

func newTestFS(t *testing.T, username string) (*UserFileSystem, *fakeMetadataStore, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		UploadDir:         dir,
		URLPrefix:         "/api/files",
		AllowedExtensions: []string{"png", "jpg", "txt"},
	}
	store := newFakeMetadataStore()
	svc := files.NewService(store, cfg)
	return NewUserFileSystem(username, cfg, svc, store), store, dir
}

// seedFile plants a stored file on disk plus its metadata row.
func seedFile(t *testing.T, store *fakeMetadataStore, dir, owner, content string) *models.FileUpload {
	t.Helper()
	storedName := files.StoredName("txt")
	storedPath := filepath.Join(dir, storedName)
	require.NoError(t, os.WriteFile(storedPath, []byte(content), 0644))
	record := &models.FileUpload{
		ID:               uuid.New(),
		OriginalFileName: "notes.txt",
		FileName:         storedName,
		FilePath:         storedPath,
		ContentType:      "text/plain",
		FileSize:         int64(len(content)),
		UploadedBy:       owner,
		IsPublic:         true,
	}
	require.NoError(t, store.CreateFileUpload(record))
	return record
}

func sftpWrite(t *testing.T, fs *UserFileSystem, name, content string) error {
	t.Helper()
	w, err := fs.Filewrite(&sftp.Request{Filepath: "/" + name, Method: "Put"})
	require.NoError(t, err)
	if content != "" {
		_, err = w.WriteAt([]byte(content), 0)
		require.NoError(t, err)
	}
	return w.(io.Closer).Close()
}

func TestFilewriteCreatesRecordOnClose(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")

	require.NoError(t, sftpWrite(t, fs, "report.txt", "quarterly numbers"))

	records, err := store.ListFilesByUploader("alice")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "report.txt", record.OriginalFileName)
	assert.True(t, strings.HasSuffix(record.FileName, ".txt"))
	assert.NotContains(t, record.FileName, "report")
	assert.Equal(t, "text/plain; charset=utf-8", record.ContentType)
	assert.Equal(t, int64(len("quarterly numbers")), record.FileSize)
	assert.Equal(t, "alice", record.UploadedBy)
	assert.True(t, record.IsPublic)
	assert.Equal(t, "/api/files/"+record.FileName, record.FileURL)

	data, err := os.ReadFile(filepath.Join(dir, record.FileName))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(data))
}

func TestFilewriteRejectsBadNames(t *testing.T) {
	fs, store, _ := newTestFS(t, "alice")

	_, err := fs.Filewrite(&sftp.Request{Filepath: "/malware.exe", Method: "Put"})
	assert.ErrorIs(t, err, os.ErrPermission)

	_, err = fs.Filewrite(&sftp.Request{Filepath: "/..secret.txt", Method: "Put"})
	assert.ErrorIs(t, err, os.ErrPermission)

	records, err := store.ListFilesByUploader("alice")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFilewriteDiscardsEmptyUpload(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")

	err := sftpWrite(t, fs, "empty.txt", "")
	assert.ErrorIs(t, err, os.ErrInvalid)

	records, err := store.ListFilesByUploader("alice")
	require.NoError(t, err)
	assert.Empty(t, records)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFilereadOwnerOnly(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")
	record := seedFile(t, store, dir, "alice", "hello over sftp")

	r, err := fs.Fileread(&sftp.Request{Filepath: "/" + record.FileName, Method: "Get"})
	require.NoError(t, err)
	buf := make([]byte, record.FileSize)
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello over sftp", string(buf))
	require.NoError(t, r.(io.Closer).Close())

	bobFS := NewUserFileSystem("bob", fs.cfg, fs.svc, store)
	_, err = bobFS.Fileread(&sftp.Request{Filepath: "/" + record.FileName, Method: "Get"})
	assert.ErrorIs(t, err, os.ErrPermission)

	_, err = fs.Fileread(&sftp.Request{Filepath: "/nope.txt", Method: "Get"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFilecmdRemove(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")
	record := seedFile(t, store, dir, "alice", "deletable")

	bobFS := NewUserFileSystem("bob", fs.cfg, fs.svc, store)
	err := bobFS.Filecmd(&sftp.Request{Filepath: "/" + record.FileName, Method: "Remove"})
	assert.Error(t, err)
	_, err = store.GetFileByName(record.FileName)
	require.NoError(t, err)

	err = fs.Filecmd(&sftp.Request{Filepath: "/" + record.FileName, Method: "Remove"})
	require.NoError(t, err)
	_, err = store.GetFileByName(record.FileName)
	assert.Error(t, err)
	_, err = os.Stat(record.FilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestFilecmdRenameUnsupported(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")
	record := seedFile(t, store, dir, "alice", "keep my name")

	err := fs.Filecmd(&sftp.Request{
		Filepath: "/" + record.FileName,
		Target:   "/renamed.txt",
		Method:   "Rename",
	})
	assert.ErrorIs(t, err, sftp.ErrSSHFxOpUnsupported)
}

func TestFilelistOnlyOwnFiles(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")
	mine := seedFile(t, store, dir, "alice", "mine")
	seedFile(t, store, dir, "bob", "not mine")

	lister, err := fs.Filelist(&sftp.Request{Filepath: "/", Method: "List"})
	require.NoError(t, err)

	infos := make([]os.FileInfo, 4)
	n, err := lister.ListAt(infos, 0)
	assert.ErrorIs(t, err, io.EOF)
	require.Equal(t, 1, n)
	assert.Equal(t, mine.FileName, infos[0].Name())
	assert.Equal(t, int64(len("mine")), infos[0].Size())
}

func TestFilestat(t *testing.T) {
	fs, store, dir := newTestFS(t, "alice")
	record := seedFile(t, store, dir, "alice", "stat me")

	info, err := fs.Filestat(&sftp.Request{Filepath: "/", Method: "Stat"})
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = fs.Filestat(&sftp.Request{Filepath: "/" + record.FileName, Method: "Stat"})
	require.NoError(t, err)
	assert.Equal(t, record.FileName, info.Name())
	assert.Equal(t, record.FileSize, info.Size())
	assert.False(t, info.IsDir())
}

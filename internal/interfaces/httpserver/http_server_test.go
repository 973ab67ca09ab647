package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postora/postora-server/internal/config"
	domain "github.com/postora/postora-server/internal/domain/upload"
	"github.com/postora/postora-server/internal/infrastructure/imageopt"
	"github.com/postora/postora-server/internal/infrastructure/storage"
	"github.com/postora/postora-server/internal/interfaces/httpserver"
	"github.com/postora/postora-server/internal/interfaces/httpserver/responses"
	"github.com/postora/postora-server/internal/utils/platformerrors"
)

type memoryRepo struct {
	mu        sync.Mutex
	files     map[string]*domain.StoredFile
	createErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{files: map[string]*domain.StoredFile{}}
}

func (r *memoryRepo) Create(ctx context.Context, file *domain.StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *file
	r.files[file.ID] = &copied
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*domain.StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	file, ok := r.files[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "file not found", nil, "")
	}
	copied := *file
	return &copied, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "file not found", nil, "")
	}
	delete(r.files, id)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter domain.ListFilter) ([]*domain.StoredFile, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.StoredFile, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f)
	}
	return out, int64(len(out)), nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

type testServer struct {
	cfg     *config.Config
	repo    *memoryRepo
	handler http.Handler
}

func newTestServer(t *testing.T, checks httpserver.ReadinessChecks) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServiceName:        "upload-api",
		Environment:        "test",
		StorageRoot:        t.TempDir(),
		ImageDir:           "uploads/images",
		VideoDir:           "uploads/videos",
		DocumentDir:        "uploads/documents",
		FallbackDir:        "uploads/others",
		TempDir:            "uploads/temp",
		PublicPrefix:       "/uploads",
		MaxConcurrency:     4,
		MaxMultipartMemory: 1 << 20,
		MultiFields:        map[string]int{"images": 10, "videos": 3, "documents": 5},
	}
	policies, err := config.NewPolicyTable(map[string]config.CategoryPolicy{
		config.CategoryImage: {
			MaxBytes:     1 << 20,
			AllowedTypes: []string{"image/png", "image/jpeg"},
			MaxWidth:     64,
			MaxHeight:    64,
			Compress:     true,
			Quality:      80,
		},
		config.CategoryDocument: {MaxBytes: 32, AllowedTypes: []string{"text/plain"}},
	})
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(cfg, zerolog.Nop())
	require.NoError(t, err)
	repo := newMemoryRepo()
	service := domain.NewService(cfg, policies, repo, store, imageopt.NewOptimizer(zerolog.Nop()), zerolog.Nop())

	srv := httpserver.New(cfg, zerolog.Nop(), service, nil, checks)
	return &testServer{cfg: cfg, repo: repo, handler: srv.Handler()}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(s.cfg.StoragePath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type part struct {
	field       string
	name        string
	contentType string
	body        []byte
}

func multipartRequest(t *testing.T, target string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		header.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadSingleImage_OptimizedAndServed(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})

	w := s.do(multipartRequest(t, "/v1/uploads/single", part{"file", "Holiday Photo.PNG", "image/png", pngBytes(t, 200, 100)}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var resp responses.UploadSingleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Holiday Photo.PNG", resp.File.OriginalName)
	assert.Equal(t, "image", resp.File.FileType)
	assert.Equal(t, ".jpg", filepath.Ext(resp.File.FileName))
	assert.Equal(t, "/uploads/image/"+resp.File.FileName, resp.File.URL)
	assert.Equal(t, []string{resp.File.FileName}, s.storedFiles(t, s.cfg.ImageDir))
	assert.Empty(t, s.storedFiles(t, s.cfg.TempDir))

	served := s.do(httptest.NewRequest(http.MethodGet, resp.File.URL, nil))
	require.Equal(t, http.StatusOK, served.Code)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(served.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)

	record := s.do(httptest.NewRequest(http.MethodGet, "/v1/uploads/"+resp.File.ID, nil))
	require.Equal(t, http.StatusOK, record.Code)
	var desc responses.FileDescriptor
	require.NoError(t, json.Unmarshal(record.Body.Bytes(), &desc))
	assert.Equal(t, resp.File.FileName, desc.FileName)
}

func TestUploadSingle_TooLargeLeavesNothing(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})

	w := s.do(multipartRequest(t, "/v1/uploads/single", part{"file", "big.txt", "text/plain", bytes.Repeat([]byte("a"), 33)}))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StageValidation), resp.Stage)
	assert.Equal(t, string(domain.KindTooLarge), resp.Kind)
	assert.NotEmpty(t, resp.RequestID)
	assert.Zero(t, s.repo.count())
	assert.Empty(t, s.storedFiles(t, s.cfg.DocumentDir))
}

func TestUploadSingle_NoFile(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})

	w := s.do(multipartRequest(t, "/v1/uploads/single"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadSingle_RecordFailureRollsBack(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})
	s.repo.createErr = errors.New("connection refused")

	w := s.do(multipartRequest(t, "/v1/uploads/single", part{"file", "photo.png", "image/png", pngBytes(t, 10, 10)}))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StageRecord), resp.Stage)
	assert.Equal(t, string(domain.KindRecordWriteFailed), resp.Kind)
	assert.Empty(t, s.storedFiles(t, s.cfg.ImageDir))
}

func TestUploadMultiple(t *testing.T) {
	t.Run("all files stored", func(t *testing.T) {
		s := newTestServer(t, httpserver.ReadinessChecks{})

		w := s.do(multipartRequest(t, "/v1/uploads/multiple",
			part{"images", "a.png", "image/png", pngBytes(t, 8, 8)},
			part{"images", "b.png", "image/png", pngBytes(t, 8, 8)},
			part{"documents", "c.txt", "text/plain", []byte("notes")},
		))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp responses.UploadMultipleResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Count)
		assert.Len(t, resp.Files, 3)
		assert.Equal(t, 3, s.repo.count())
		assert.Len(t, s.storedFiles(t, s.cfg.ImageDir), 2)
		assert.Len(t, s.storedFiles(t, s.cfg.DocumentDir), 1)
	})

	t.Run("one invalid file rolls back the request", func(t *testing.T) {
		s := newTestServer(t, httpserver.ReadinessChecks{})

		w := s.do(multipartRequest(t, "/v1/uploads/multiple",
			part{"images", "a.png", "image/png", pngBytes(t, 8, 8)},
			part{"documents", "evil.exe", "application/x-msdownload", []byte("MZ")},
		))
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp responses.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Failures)
		assert.Equal(t, "evil.exe", resp.Failures[0].File)
		assert.Equal(t, string(domain.KindDisallowedType), resp.Failures[0].Kind)
		assert.Zero(t, s.repo.count())
		assert.Empty(t, s.storedFiles(t, s.cfg.ImageDir))
		assert.Empty(t, s.storedFiles(t, s.cfg.DocumentDir))
	})

	t.Run("unexpected field", func(t *testing.T) {
		s := newTestServer(t, httpserver.ReadinessChecks{})

		w := s.do(multipartRequest(t, "/v1/uploads/multiple", part{"avatars", "a.png", "image/png", pngBytes(t, 8, 8)}))
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp responses.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.KindUnexpectedField), resp.Kind)
	})
}

func TestDeleteUpload(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})

	w := s.do(multipartRequest(t, "/v1/uploads/single", part{"file", "notes.txt", "text/plain", []byte("hello")}))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp responses.UploadSingleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	del := s.do(httptest.NewRequest(http.MethodDelete, "/v1/uploads/"+resp.File.ID, nil))
	require.Equal(t, http.StatusOK, del.Code)
	assert.Zero(t, s.repo.count())
	assert.Empty(t, s.storedFiles(t, s.cfg.DocumentDir))

	again := s.do(httptest.NewRequest(http.MethodDelete, "/v1/uploads/"+resp.File.ID, nil))
	assert.Equal(t, http.StatusNotFound, again.Code)

	bogus := s.do(httptest.NewRequest(http.MethodDelete, "/v1/uploads/not-an-id", nil))
	assert.Equal(t, http.StatusNotFound, bogus.Code)
}

func TestListUploads(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})

	for _, name := range []string{"a.txt", "b.txt"} {
		w := s.do(multipartRequest(t, "/v1/uploads/single", part{"file", name, "text/plain", []byte(name)}))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/v1/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp responses.FileListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	assert.Len(t, resp.Data, 2)
}

func TestCoreRoutes(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{
		Database: func() error { return nil },
		Storage:  func() error { return nil },
	})

	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/v1/uploads/policies", nil)).Code)

	s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	metricsResp := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metricsResp.Code)
	assert.Contains(t, metricsResp.Body.String(), "postora_upload_api_requests_total")
}

func TestReadinessFailure(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{
		Database: func() error { return errors.New("dial tcp: connection refused") },
	})

	w := s.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, checks, "database")
	assert.NotContains(t, checks, "storage")
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t, httpserver.ReadinessChecks{})

	req := httptest.NewRequest(http.MethodGet, "/v1/uploads/file_nope", nil)
	req.Header.Set("X-Request-Id", "req-123")
	w := s.do(req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))
	var resp responses.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-123", resp.RequestID)
}

package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tsapi/internal/config"
	"tsapi/internal/core"
)

// HTTPAPITestSuite exercises the router end to end against a real Core
// backed by a temp-dir Store.
type HTTPAPITestSuite struct {
	suite.Suite
	router *gin.Engine
	core   *core.Core
	dir    string
}

func (s *HTTPAPITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	s.dir = s.T().TempDir()
	cfg := &config.Config{
		DataDir:           s.dir,
		DatabasePath:      filepath.Join(s.dir, "tsapi.db"),
		ModelsDir:         filepath.Join(s.dir, "models"),
		AudioInputDir:     filepath.Join(s.dir, "audioInput"),
		DropzoneDir:       filepath.Join(s.dir, "dropzone"),
		ParallelWorkers:   1,
		WhisperCPUThreads: 1,
		WhisperModel:      "tiny",
		JWTSecret:         "test-secret",
	}
	require.NoError(s.T(), os.MkdirAll(cfg.AudioInputDir, 0o755))

	c, err := core.New(cfg)
	require.NoError(s.T(), err)
	s.core = c
	s.router = SetupRoutes(c)
}

func (s *HTTPAPITestSuite) TestGetRoot() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "Listening to API calls")
}

func (s *HTTPAPITestSuite) TestPostTranscribeRejectsMissingFileAndLink() {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("priority", "1")
	require.NoError(s.T(), writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusUnsupportedMediaType, rec.Code)
}

func (s *HTTPAPITestSuite) TestPostTranscribeUploadsFile() {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("priority", "5")
	part, err := writer.CreateFormFile("file", "clip.wav")
	require.NoError(s.T(), err)
	_, _ = part.Write([]byte("fake audio bytes"))
	require.NoError(s.T(), writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusCreated, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "jobId")
}

func (s *HTTPAPITestSuite) TestGetStatusNotFound() {
	req := httptest.NewRequest(http.MethodGet, "/status?id=does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HTTPAPITestSuite) TestGetSystemStatus() {
	req := httptest.NewRequest(http.MethodGet, "/status/system", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "queue_length")
}

func TestHTTPAPISuite(t *testing.T) {
	suite.Run(t, new(HTTPAPITestSuite))
}

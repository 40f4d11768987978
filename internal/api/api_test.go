package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/filestore"
	"github.com/koustreak/bucketlens/internal/listing"
	"github.com/koustreak/bucketlens/internal/logger"
	"github.com/koustreak/bucketlens/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore implements filestore.Store for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListObjects(ctx context.Context, bucket, prefix string) ([]filestore.ObjectInfo, error) {
	args := m.Called(ctx, bucket, prefix)
	objects, _ := args.Get(0).([]filestore.ObjectInfo)
	return objects, args.Error(1)
}

func (m *MockStore) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, ttl)
	return args.String(0), args.Error(1)
}

type harness struct {
	router   http.Handler
	store    *MockStore
	provider *settings.EnvProvider
	envPath  string

	mu    sync.Mutex
	built []filestore.Config
}

func (h *harness) builds() []filestore.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]filestore.Config(nil), h.built...)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		settings.KeyAccessKey, settings.KeySecretKey, settings.KeyEndpoint,
		settings.KeyRegion, settings.KeyBucket, settings.KeyPrefix, settings.KeyPort,
	} {
		t.Setenv(k, "")
	}
}

func newHarness(t *testing.T, envContent string) *harness {
	t.Helper()
	clearEnv(t)

	envPath := filepath.Join(t.TempDir(), ".env")
	if envContent != "" {
		require.NoError(t, os.WriteFile(envPath, []byte(envContent), 0o600))
	}
	return newHarnessAt(t, envPath)
}

func newHarnessAt(t *testing.T, envPath string) *harness {
	t.Helper()
	h := &harness{store: new(MockStore), envPath: envPath}

	provider, err := settings.Load(envPath, nil)
	require.NoError(t, err)
	h.provider = provider

	factory := func(cfg filestore.Config) (filestore.Store, error) {
		if strings.Contains(cfg.Endpoint, "reject") {
			return nil, errs.New(errs.ErrKindInvalidInput, "invalid storage endpoint")
		}
		h.mu.Lock()
		h.built = append(h.built, cfg)
		h.mu.Unlock()
		return h.store, nil
	}
	gw, err := filestore.NewGateway(factory, provider.Get(), nil)
	require.NoError(t, err)
	provider.Subscribe(gw.Reconfigure)

	svc := listing.New(gw)
	h.router = NewRouter(NewHandler(svc, provider), logger.Nop(), "")
	return h
}

func (h *harness) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListFiles_EndToEnd(t *testing.T) {
	h := newHarness(t, "")
	t1 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	h.store.On("ListObjects", mock.Anything, "media", "pics/").Return([]filestore.ObjectInfo{
		{Key: "pics/a.jpg", Size: 10, LastModified: t1},
		{Key: "pics/", Size: 0, LastModified: t2},
		{Key: "pics/b.mp4", Size: 20, LastModified: t3},
	}, nil)

	rec := h.do(t, http.MethodGet, "/api/files?bucket=media&prefix=pics/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Files []struct {
			Key          string    `json:"key"`
			Name         string    `json:"name"`
			Size         int64     `json:"size"`
			LastModified time.Time `json:"lastModified"`
			Type         string    `json:"type"`
		} `json:"files"`
		Bucket string `json:"bucket"`
		Error  string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "media", body.Bucket)
	assert.Empty(t, body.Error)
	require.Len(t, body.Files, 2)
	assert.Equal(t, "b.mp4", body.Files[0].Name)
	assert.Equal(t, "video", body.Files[0].Type)
	assert.Equal(t, int64(20), body.Files[0].Size)
	assert.True(t, t3.Equal(body.Files[0].LastModified))
	assert.Equal(t, "a.jpg", body.Files[1].Name)
	assert.Equal(t, "image", body.Files[1].Type)
}

func TestListFiles_NoBucket(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files": [], "error": "Bucket not specified"}`, rec.Body.String())
	h.store.AssertNotCalled(t, "ListObjects", mock.Anything, mock.Anything, mock.Anything)
}

func TestListFiles_DefaultsFromEnvFile(t *testing.T) {
	h := newHarness(t, "S3_BUCKET=media\nS3_PREFIX=docs/\n")
	h.store.On("ListObjects", mock.Anything, "media", "docs/").Return([]filestore.ObjectInfo{}, nil)

	rec := h.do(t, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files": [], "bucket": "media"}`, rec.Body.String())
}

func TestListFiles_RemoteError(t *testing.T) {
	h := newHarness(t, "")
	remote := errs.Wrap(errs.ErrKindRemoteList, "failed to list objects: bucket does not exist",
		errors.New("The specified bucket does not exist"))
	h.store.On("ListObjects", mock.Anything, "gone", "").Return(nil, remote)

	rec := h.do(t, http.MethodGet, "/api/files?bucket=gone", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "The specified bucket does not exist")
}

func TestGetFile_DecodesKeyOnce(t *testing.T) {
	tests := []struct {
		name   string
		target string
		key    string
	}{
		{"encoded slashes", "/api/file/photos%2F2024%2Fa.png?bucket=media", "photos/2024/a.png"},
		{"plain slashes", "/api/file/photos/2024/a.png?bucket=media", "photos/2024/a.png"},
		{"encoded space", "/api/file/pics/a%20b.jpg?bucket=media", "pics/a b.jpg"},
		{"encoded percent", "/api/file/100%2525.jpg?bucket=media", "100%25.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			h.store.On("PresignGetURL", mock.Anything, "media", tt.key, listing.GrantTTL).
				Return("https://s3.example.com/media/signed", nil)

			rec := h.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			assert.Equal(t, tt.key, body["key"])
			assert.Equal(t, "image", body["type"])
			assert.Equal(t, "https://s3.example.com/media/signed", body["url"])
			assert.Equal(t, "media", body["bucket"])
			assert.NotContains(t, body, "ExpiresAt")
			h.store.AssertExpectations(t)
		})
	}
}

func TestGetFile_Response(t *testing.T) {
	h := newHarness(t, "S3_BUCKET=media\n")
	h.store.On("PresignGetURL", mock.Anything, "media", "models/ship.glb", listing.GrantTTL).Return("u", nil)

	rec := h.do(t, http.MethodGet, "/api/file/models%2Fship.glb", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"models/ship.glb","name":"ship.glb","type":"model3d","url":"u","bucket":"media"}`, rec.Body.String())
}

func TestGetFile_Errors(t *testing.T) {
	t.Run("bucket unresolved", func(t *testing.T) {
		h := newHarness(t, "")
		rec := h.do(t, http.MethodGet, "/api/file/a.png", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Bucket not specified"}`, rec.Body.String())
	})

	t.Run("signing failure", func(t *testing.T) {
		h := newHarness(t, "")
		h.store.On("PresignGetURL", mock.Anything, "media", "a.png", listing.GrantTTL).
			Return("", errs.New(errs.ErrKindSigning, "no storage credentials configured"))

		rec := h.do(t, http.MethodGet, "/api/file/a.png?bucket=media", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"no storage credentials configured"}`, rec.Body.String())
	})

	t.Run("missing key", func(t *testing.T) {
		h := newHarness(t, "")
		rec := h.do(t, http.MethodGet, "/api/file/?bucket=media", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetConfig(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"configured": false, "endpoint": "", "region": "us-east-1"}`, rec.Body.String())

	h = newHarness(t, "AWS_ACCESS_KEY_ID=key\nAWS_SECRET_ACCESS_KEY=secret\nAWS_ENDPOINT=http://localhost:9000\nAWS_REGION=eu-west-1\n")
	rec = h.do(t, http.MethodGet, "/api/config", "")
	assert.JSONEq(t, `{"configured": true, "endpoint": "http://localhost:9000", "region": "eu-west-1"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestSaveEnv_PersistsAndReconfigures(t *testing.T) {
	h := newHarness(t, "")
	require.Len(t, h.builds(), 1)

	rec := h.do(t, http.MethodPost, "/api/save-env", `{
		"bucket": "media",
		"endpoint": "https://storage.example.com",
		"region": "",
		"accessKey": "AKIA",
		"secretKey": "s3cr3t",
		"prefix": "pics/"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success": true}`, rec.Body.String())

	builds := h.builds()
	require.Len(t, builds, 2)
	assert.Equal(t, filestore.Config{
		Region:    "us-east-1",
		AccessKey: "AKIA",
		SecretKey: "s3cr3t",
		Endpoint:  "https://storage.example.com",
		Bucket:    "media",
		Prefix:    "pics/",
	}, builds[1])

	onDisk, err := godotenv.Read(h.envPath)
	require.NoError(t, err)
	assert.Equal(t, "AKIA", onDisk[settings.KeyAccessKey])
	assert.Equal(t, "s3cr3t", onDisk[settings.KeySecretKey])
	assert.Equal(t, "media", onDisk[settings.KeyBucket])
	assert.Equal(t, "pics/", onDisk[settings.KeyPrefix])
	assert.Equal(t, "https://storage.example.com", onDisk[settings.KeyEndpoint])
	assert.Equal(t, "us-east-1", onDisk[settings.KeyRegion])
	assert.Equal(t, "3000", onDisk[settings.KeyPort])

	h.store.On("ListObjects", mock.Anything, "media", "pics/").Return([]filestore.ObjectInfo{}, nil)
	rec = h.do(t, http.MethodGet, "/api/files", "")
	assert.JSONEq(t, `{"files": [], "bucket": "media"}`, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/config", "")
	assert.JSONEq(t, `{"configured": true, "endpoint": "https://storage.example.com", "region": "us-east-1"}`, rec.Body.String())
}

func TestSaveEnv_Errors(t *testing.T) {
	t.Run("malformed json", func(t *testing.T) {
		h := newHarness(t, "")
		rec := h.do(t, http.MethodPost, "/api/save-env", `{"bucket":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		h := newHarness(t, "")
		rec := h.do(t, http.MethodPost, "/api/save-env", `{"endpoint": "not an endpoint"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "endpoint")
		_, err := os.Stat(h.envPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("persistence failure", func(t *testing.T) {
		clearEnv(t)
		h := newHarnessAt(t, filepath.Join(t.TempDir(), "missing", ".env"))

		rec := h.do(t, http.MethodPost, "/api/save-env", `{"bucket": "media"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error": "Failed to save configuration"}`, rec.Body.String())
		assert.Len(t, h.builds(), 1)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		h := newHarness(t, "")
		rec := h.do(t, http.MethodPost, "/api/save-env", `{"endpoint": "ftp://minio.local:9000"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		_, err := os.Stat(h.envPath)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("client rejected", func(t *testing.T) {
		const original = "S3_BUCKET=old\n"
		h := newHarness(t, original)
		rec := h.do(t, http.MethodPost, "/api/save-env", `{"bucket": "new", "endpoint": "https://reject.example.com"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "", h.provider.Get().Endpoint)
		assert.Equal(t, "old", h.provider.Get().Bucket)

		raw, err := os.ReadFile(h.envPath)
		require.NoError(t, err)
		assert.Equal(t, original, string(raw))

		reloaded, err := settings.Load(h.envPath, nil)
		require.NoError(t, err)
		assert.Equal(t, "old", reloaded.Get().Bucket)
		assert.Empty(t, reloaded.Get().Endpoint)
	})
}

func TestSaveEnv_AcceptedEndpoints(t *testing.T) {
	for _, endpoint := range []string{
		"nyc3.digitaloceanspaces.com",
		"localhost:9000",
		"http://minio:9000",
		"https://storage.example.com",
	} {
		t.Run(endpoint, func(t *testing.T) {
			h := newHarness(t, "")
			rec := h.do(t, http.MethodPost, "/api/save-env", `{"endpoint": "`+endpoint+`"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			onDisk, err := godotenv.Read(h.envPath)
			require.NoError(t, err)
			assert.Equal(t, endpoint, onDisk[settings.KeyEndpoint])
		})
	}
}

func TestSetBucket(t *testing.T) {
	h := newHarness(t, "AWS_ACCESS_KEY_ID=key\nAWS_SECRET_ACCESS_KEY=secret\nS3_BUCKET=old\n")

	rec := h.do(t, http.MethodPost, "/api/set-bucket", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Bucket required"}`, rec.Body.String())

	rec = h.do(t, http.MethodPost, "/api/set-bucket", `{"bucket": "fresh"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": true, "bucket": "fresh"}`, rec.Body.String())

	// Same credentials: the client is kept, only the defaults move.
	assert.Len(t, h.builds(), 1)

	h.store.On("ListObjects", mock.Anything, "fresh", "").Return([]filestore.ObjectInfo{}, nil)
	rec = h.do(t, http.MethodGet, "/api/files", "")
	assert.JSONEq(t, `{"files": [], "bucket": "fresh"}`, rec.Body.String())

	onDisk, err := godotenv.Read(h.envPath)
	require.NoError(t, err)
	assert.Equal(t, "old", onDisk[settings.KeyBucket])
}

func TestTypesAndHealth(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodGet, "/api/types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Types []struct {
			Type       string   `json:"type"`
			Extensions []string `json:"extensions"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Types, 5)
	assert.Equal(t, "image", body.Types[0].Type)
	assert.Contains(t, body.Types[1].Extensions, "ogg")

	rec = h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	for _, bad := range []string{
		strings.Repeat("a", maxRequestIDLen+1),
		"abc\x1b[31mred",
		"abc def",
	} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(HeaderRequestID, bad)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)

		got := rec.Header().Get(HeaderRequestID)
		assert.NotEqual(t, bad, got)
		assert.Len(t, got, 36)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>viewer</h1>"), 0o644))

	h := newHarness(t, "")
	router := NewRouter(NewHandler(listing.New(stubSessions{}), h.provider), logger.Nop(), dir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "viewer")
}

type stubSessions struct{}

func (stubSessions) Acquire() *filestore.Session { return &filestore.Session{} }

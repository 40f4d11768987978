package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/filestore"
	"github.com/koustreak/bucketlens/internal/listing"
	"github.com/koustreak/bucketlens/internal/logger"
	"github.com/koustreak/bucketlens/internal/media"
	"github.com/koustreak/bucketlens/internal/settings"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// fileRoute is where single-object grants are served; the rest of the path
// is the percent-encoded key.
const fileRoute = "/api/file/"

// Browser is what the handlers need from the listing service.
type Browser interface {
	List(ctx context.Context, bucket, prefix string) (*listing.Listing, error)
	Grant(ctx context.Context, bucket, rawKey string) (*listing.Grant, error)
}

// Handler serves the JSON API.
type Handler struct {
	browser  Browser
	provider settings.Provider
}

// NewHandler creates a Handler.
func NewHandler(browser Browser, provider settings.Provider) *Handler {
	return &Handler{browser: browser, provider: provider}
}

type filesResponse struct {
	Files  []listing.Entry `json:"files"`
	Bucket string          `json:"bucket,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ListFiles handles GET /api/files?bucket=&prefix=.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.browser.List(r.Context(), q.Get("bucket"), q.Get("prefix"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Notice != "" {
		writeJSON(w, http.StatusOK, filesResponse{Files: result.Entries, Error: result.Notice})
		return
	}
	writeJSON(w, http.StatusOK, filesResponse{Files: result.Entries, Bucket: result.Bucket})
}

// GetFile handles GET /api/file/{key}?bucket=. The key is taken from the
// escaped path so that it is decoded exactly once, by the listing service.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	rawKey := strings.TrimPrefix(r.URL.EscapedPath(), fileRoute)

	grant, err := h.browser.Grant(r.Context(), r.URL.Query().Get("bucket"), rawKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

type configResponse struct {
	Configured bool   `json:"configured"`
	Endpoint   string `json:"endpoint"`
	Region     string `json:"region"`
}

// GetConfig handles GET /api/config. Secrets are never returned.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.provider.Get()
	writeJSON(w, http.StatusOK, configResponse{
		Configured: cfg.HasCredentials(),
		Endpoint:   cfg.Endpoint,
		Region:     cfg.RegionOrDefault(),
	})
}

type saveEnvRequest struct {
	Bucket    string `json:"bucket" validate:"max=255"`
	Endpoint  string `json:"endpoint" validate:"omitempty,endpoint"`
	Region    string `json:"region" validate:"max=64"`
	AccessKey string `json:"accessKey" validate:"max=256"`
	SecretKey string `json:"secretKey" validate:"max=256"`
	Prefix    string `json:"prefix" validate:"max=1024"`
}

// SaveEnv handles POST /api/save-env: persists the full configuration and
// reconfigures the storage client.
func (h *Handler) SaveEnv(w http.ResponseWriter, r *http.Request) {
	var req saveEnvRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateRequest(&req, ""); err != nil {
		writeError(w, r, err)
		return
	}

	cfg := filestore.Config{
		Region:    req.Region,
		AccessKey: req.AccessKey,
		SecretKey: req.SecretKey,
		Endpoint:  req.Endpoint,
		Bucket:    req.Bucket,
		Prefix:    req.Prefix,
	}
	if cfg.Region == "" {
		cfg.Region = filestore.DefaultRegion
	}

	if err := h.provider.Persist(cfg); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type setBucketRequest struct {
	Bucket string `json:"bucket" validate:"required,max=255"`
}

// SetBucket handles POST /api/set-bucket: switches the default bucket in
// memory only.
func (h *Handler) SetBucket(w http.ResponseWriter, r *http.Request) {
	var req setBucketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateRequest(&req, "Bucket required"); err != nil {
		writeError(w, r, err)
		return
	}

	cfg, err := h.provider.Set(settings.Update{Bucket: &req.Bucket})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "bucket": cfg.Bucket})
}

// Types handles GET /api/types: the extension table in lookup order.
func (h *Handler) Types(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"types": media.Table()})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid JSON body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers {"error": msg}. Persistence failures hide the OS
// detail; everything else carries the full chain, including the remote's
// own message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	msg := err.Error()

	var e *errs.Error
	if errs.IsIO(err) && errors.As(err, &e) {
		msg = e.Message
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request error", err, map[string]interface{}{
			"kind":    errs.KindOf(err).String(),
			"timeout": errs.IsTimeout(err),
		})
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

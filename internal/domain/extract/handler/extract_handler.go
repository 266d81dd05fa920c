// Package handler exposes the extraction pipeline over HTTP: presigned
// uploads, batch processing, and signed download links for the generated
// spreadsheets.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/fundsheet/fundsheet/internal/domain/extract/service"
	"github.com/fundsheet/fundsheet/pkg/config"
	"github.com/fundsheet/fundsheet/pkg/metrics"
	"github.com/fundsheet/fundsheet/pkg/storage"
)

// maxUploadBytes caps a single PDF upload.
const maxUploadBytes = 50 << 20

// maxRequestBytes caps JSON request bodies.
const maxRequestBytes = 1 << 20

// ExtractHandler serves the extraction API.
type ExtractHandler struct {
	svc            *service.Service
	store          storage.Storage
	logger         *slog.Logger
	limiter        *rate.Limiter
	allowedOrigins []string
	metricsEnabled bool
}

// NewExtractHandler constructs a new handler.
func NewExtractHandler(svc *service.Service, store storage.Storage, cfg *config.Config, logger *slog.Logger) *ExtractHandler {
	return &ExtractHandler{
		svc:            svc,
		store:          store,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSecond), cfg.Server.RateLimitBurst),
		allowedOrigins: cfg.Server.AllowedOrigins,
		metricsEnabled: cfg.Observability.MetricsEnabled,
	}
}

// Routes wires up the HTTP surface behind CORS and rate limiting.
func (h *ExtractHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /presign", h.handlePresignUpload)
	mux.HandleFunc("POST /process", h.handleProcess)
	mux.HandleFunc("POST /download", h.handleDownload)
	mux.HandleFunc("PUT /files/{key...}", h.handleFilePut)
	mux.HandleFunc("GET /files/{key...}", h.handleFileGet)
	if h.metricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	c := cors.New(cors.Options{
		AllowedOrigins: h.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	})
	return h.rateLimit(c.Handler(mux))
}

func (h *ExtractHandler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ExtractHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type presignUploadResponse struct {
	PDFKey    string `json:"pdf_key"`
	UploadURL string `json:"upload_url"`
}

func (h *ExtractHandler) handlePresignUpload(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only .pdf uploads are accepted")
		return
	}

	key, url, err := h.svc.PresignUpload(filename)
	if err != nil {
		h.logger.Error("presign upload failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create upload link")
		return
	}
	writeJSON(w, http.StatusOK, presignUploadResponse{PDFKey: key, UploadURL: url})
}

func (h *ExtractHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req service.ProcessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Process(r.Context(), req)
	if err != nil {
		h.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ExtractHandler) writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoDocuments):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnknownFamily),
		errors.Is(err, service.ErrFamilyMismatch),
		errors.Is(err, service.ErrMixedFamilies):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "uploaded document not found")
	default:
		h.logger.Error("processing failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "processing failed")
	}
}

type downloadRequest struct {
	ExcelKey string `json:"excel_key"`
}

type downloadResponse struct {
	DownloadURL string `json:"download_url"`
}

func (h *ExtractHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	url, err := h.svc.PresignDownload(req.ExcelKey)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusBadRequest, "invalid excel_key")
			return
		}
		h.logger.Error("presign download failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not create download link")
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{DownloadURL: url})
}

// handleFilePut accepts the upload side of a presigned link.
func (h *ExtractHandler) handleFilePut(w http.ResponseWriter, r *http.Request) {
	key, ok := h.verifySigned(w, r)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	defer body.Close()
	if err := h.store.Put(r.Context(), key, body); err != nil {
		h.logger.Error("upload failed", slog.String("key", key), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFileGet serves the download side of a presigned link.
func (h *ExtractHandler) handleFileGet(w http.ResponseWriter, r *http.Request) {
	key, ok := h.verifySigned(w, r)
	if !ok {
		return
	}

	rc, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("download failed", slog.String("key", key), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "download failed")
		return
	}
	defer rc.Close()

	if strings.HasSuffix(key, ".xlsx") {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", slog.String("key", key), slog.Any("error", err))
	}
}

func (h *ExtractHandler) verifySigned(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.PathValue("key")
	q := r.URL.Query()
	err := h.store.Verify(r.Method, key, q.Get("expires"), q.Get("signature"))
	if err != nil {
		if errors.Is(err, storage.ErrBadSignature) || errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusForbidden, "bad or expired link")
			return "", false
		}
		writeError(w, http.StatusInternalServerError, "verification failed")
		return "", false
	}
	return key, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

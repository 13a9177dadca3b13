// Package filehost serves stored chat files to other instances over HTTP,
// in the shape the sync client expects.
package filehost

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/remote"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
)

// Source lists the files to publish. *store.Store satisfies it.
type Source interface {
	Files(ctx context.Context) ([]*store.ChatFile, error)
}

type handler struct {
	src Source
	log *slog.Logger
	m   *Metrics
}

// NewRouter mounts GET /files and GET /files/{file} behind the password
// check, plus an open GET /metrics.
func NewRouter(src Source, password string, reg *prometheus.Registry, log *slog.Logger) chi.Router {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{src: src, log: log, m: NewMetrics(reg)}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.m.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(PasswordMiddleware(password))
		r.Get("/files", h.listFiles)
		r.Get("/files/{file}", h.getFile)
	})
	return r
}

// PasswordMiddleware requires ?password= to match. An empty configured
// password rejects everything.
func PasswordMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("password")
			if password == "" || subtle.ConstantTimeCompare([]byte(got), []byte(password)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.src.Files(r.Context())
	if err != nil {
		h.log.Error("list files", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]remote.FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, describe(f))
	}
	writeJSON(w, http.StatusOK, out)
}

// describe splits a stored name into the listing's name and extension.
func describe(f *store.ChatFile) remote.FileInfo {
	ext := filepath.Ext(f.Name)
	return remote.FileInfo{
		Name:      strings.TrimSuffix(f.Name, ext),
		Extension: strings.TrimPrefix(ext, "."),
		Updated:   f.LastUpdated,
	}
}

func (h *handler) getFile(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "file"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad file name"))
		return
	}

	files, err := h.src.Files(r.Context())
	if err != nil {
		h.log.Error("load files", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	for _, f := range files {
		if f.Name != name {
			continue
		}
		body, err := chat.MarshalExport(f.Messages)
		if err != nil {
			h.log.Error("encode file", slog.String("file", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		h.m.served.Inc()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	writeJSON(w, http.StatusNotFound, errorBody("not found"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

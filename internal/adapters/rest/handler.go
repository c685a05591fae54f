// Package rest is the HTTP surface of the orchestrator: upload, convert,
// poll, download, cleanup. All conversion logic stays behind it.
package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/altolabs/clefshift/internal/core/services"
	"github.com/altolabs/clefshift/internal/worker"
)

// DefaultMaxUploadBytes caps uploads at 100 MB.
const DefaultMaxUploadBytes = 100 << 20

// Handler manages the HTTP interface for the conversion service.
type Handler struct {
	svc       *services.Orchestrator
	pool      *worker.Pool
	router    http.Handler
	maxUpload int64
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, pool *worker.Pool, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	h := &Handler{svc: svc, pool: pool, maxUpload: maxUpload}

	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/formats", h.Formats).Methods(http.MethodGet)
	r.HandleFunc("/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/convert/{task_id}", h.Convert).Methods(http.MethodPost)
	r.HandleFunc("/retry/{task_id}", h.Retry).Methods(http.MethodPost)
	r.HandleFunc("/status/{task_id}", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/download/{task_id}/{format}", h.Download).Methods(http.MethodGet)
	r.HandleFunc("/cleanup/{task_id}", h.Cleanup).Methods(http.MethodDelete)

	h.router = cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}).Handler(r)
	return h
}

// ServeHTTP satisfies http.Handler by delegating to the router.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

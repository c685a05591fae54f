package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/altolabs/clefshift/internal/core/domain"
)

type convertRequest struct {
	HighQuality *bool    `json:"high_quality"`
	Formats     []string `json:"formats"`
}

type statusResponse struct {
	TaskID         string   `json:"task_id"`
	Status         string   `json:"status"`
	Progress       int      `json:"progress"`
	Message        string   `json:"message"`
	NotesCount     int      `json:"notes_count"`
	ProcessingTime float64  `json:"processing_time"`
	OutputFiles    []string `json:"output_files"`
	Error          string   `json:"error,omitempty"`
}

// Convert handles POST /convert/{task_id}: start the pipeline for an
// uploaded task. An optional JSON body overrides the upload-time options.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]

	task, err := h.svc.Status(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if task.State.Terminal() {
		writeError(w, http.StatusConflict, "task "+id+" already finished as "+string(task.State))
		return
	}

	if body, ok := decodeConvertBody(w, r); ok && body != nil {
		options := task.Options
		if body.HighQuality != nil {
			options.HighQuality = *body.HighQuality
		}
		if body.Formats != nil {
			options.Formats = body.Formats
		}
		if err := h.svc.Configure(r.Context(), id, options); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	} else if !ok {
		return
	}

	if err := h.pool.Submit(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id, "status": string(domain.TaskPreprocessing)})
}

// decodeConvertBody reads the optional JSON body. The second return is
// false when the response has already been written.
func decodeConvertBody(w http.ResponseWriter, r *http.Request) (*convertRequest, bool) {
	if r.ContentLength == 0 {
		return nil, true
	}
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "expected application/json")
		return nil, false
	}
	var body convertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return nil, false
	}
	return &body, true
}

// Retry handles POST /retry/{task_id}: a new task from the same upload.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	task, err := h.svc.Retry(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{TaskID: task.ID, Filename: task.Filename})
}

// Status handles GET /status/{task_id}: the polling endpoint.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	task, err := h.svc.Status(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	formats := make([]string, 0, len(task.OutputFiles))
	for f := range task.OutputFiles {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	writeJSON(w, http.StatusOK, statusResponse{
		TaskID:         task.ID,
		Status:         string(task.State),
		Progress:       task.Progress,
		Message:        task.Message,
		NotesCount:     task.NotesCount,
		ProcessingTime: task.ProcessingTime,
		OutputFiles:    formats,
		Error:          task.Error,
	})
}

// Download handles GET /download/{task_id}/{format}: stream one artifact of
// a completed task. Anything not produced is a 404, same as unknown tasks.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, format := vars["task_id"], vars["format"]

	task, err := h.svc.Status(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if task.State != domain.TaskCompleted {
		writeError(w, http.StatusNotFound, "task "+id+" has no downloadable output")
		return
	}
	path, ok := task.OutputFiles[format]
	if !ok {
		writeError(w, http.StatusNotFound, "format "+format+" was not produced for task "+id)
		return
	}

	stem := strings.TrimSuffix(task.Filename, filepath.Ext(task.Filename))
	w.Header().Set("Content-Disposition", `attachment; filename="`+stem+"_converted."+format+`"`)
	http.ServeFile(w, r, path)
}

// Cleanup handles DELETE /cleanup/{task_id}: release a terminal task's
// artifacts. Unknown ids succeed, matching the service's idempotency.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["task_id"]
	if err := h.svc.Cleanup(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": "cleaned"})
}

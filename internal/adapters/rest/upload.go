package rest

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/altolabs/clefshift/internal/core/domain"
)

// allowedUploads are the accepted score image extensions.
var allowedUploads = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true,
	".bmp": true, ".tiff": true, ".tif": true, ".gif": true,
}

type uploadResponse struct {
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
}

// Upload handles POST /upload: a multipart image plus form options. On
// success the task is UPLOADED and waiting for a convert call.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploads[ext] {
		writeError(w, http.StatusBadRequest, "unsupported image type "+ext)
		return
	}

	options := domain.ConvertOptions{
		HighQuality: r.FormValue("high_quality") == "true",
		Formats:     splitFormats(r.FormValue("formats")),
	}
	if len(options.Formats) == 0 {
		options.Formats = []string{"png"}
	}

	task, err := h.svc.Submit(r.Context(), header.Filename, file, options)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{TaskID: task.ID, Filename: task.Filename})
}

func splitFormats(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package rest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/altolabs/clefshift/internal/core/domain"
)

// Health handles GET /health for load balancers and probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Formats handles GET /formats: the accepted input image types and the
// producible output formats, so clients need not hardcode either list.
func (h *Handler) Formats(w http.ResponseWriter, r *http.Request) {
	inputs := make([]string, 0, len(allowedUploads))
	for ext := range allowedUploads {
		inputs = append(inputs, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(inputs)

	outputs := make([]string, 0, len(domain.OutputFormats))
	for f := range domain.OutputFormats {
		outputs = append(outputs, f)
	}
	sort.Strings(outputs)

	writeJSON(w, http.StatusOK, map[string][]string{
		"input_formats":  inputs,
		"output_formats": outputs,
	})
}

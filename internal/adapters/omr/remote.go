// Package omr provides the recognizer collaborators: a client for a remote
// optical-music-recognition service and a basic local fallback.
package omr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// Remote is an HTTP client for an external OMR service. When credentials
// are configured, requests carry a client-credentials bearer token.
type Remote struct {
	httpClient *http.Client
	baseURL    string

	maxRetries int
	backoff    time.Duration
}

var _ ports.Recognizer = (*Remote)(nil)

// NewRemote constructs a Remote client. creds may be nil for services that
// do not require auth.
func NewRemote(baseURL string, creds *clientcredentials.Config) *Remote {
	httpClient := &http.Client{Timeout: 120 * time.Second}
	if creds != nil {
		httpClient = creds.Client(context.Background())
		httpClient.Timeout = 120 * time.Second
	}
	return &Remote{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
}

// Recognize posts the enhanced image to the service's /recognize endpoint
// and maps the response into a domain RecognitionResult. Transient failures
// (network errors, 5xx) are retried with linear backoff; OMR itself is
// deterministic, so a 4xx is returned immediately.
func (r *Remote) Recognize(ctx context.Context, imagePath string) (domain.RecognitionResult, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return domain.RecognitionResult{}, fmt.Errorf("omr: read image: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("WARN omr: retrying recognition (attempt %d): %v", attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return domain.RecognitionResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * r.backoff):
			}
		}

		result, retryable, err := r.post(ctx, data)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return domain.RecognitionResult{}, err
		}
		lastErr = err
	}
	return domain.RecognitionResult{}, fmt.Errorf("omr: recognition failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *Remote) post(ctx context.Context, image []byte) (domain.RecognitionResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/recognize", bytes.NewReader(image))
	if err != nil {
		return domain.RecognitionResult{}, false, fmt.Errorf("omr: build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.RecognitionResult{}, true, fmt.Errorf("omr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domain.RecognitionResult{}, true, fmt.Errorf("omr: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.RecognitionResult{}, false, fmt.Errorf("omr: status %d", resp.StatusCode)
	}

	var result domain.RecognitionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.RecognitionResult{}, false, fmt.Errorf("omr: decode response: %w", err)
	}
	return result, false, nil
}

// Package metadata persists analysis results where downstream consumers can
// find them: on the pipeline API when the run carries credentials, otherwise
// in a metadata file the pipeline picks up from the output directory.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
	"github.com/cerebralab/siena-gear/internal/logging"
)

// FileName is the pickup file the file backend maintains in the output
// directory.
const FileName = ".metadata.json"

// Backend persists analysis info and answers container ancestry lookups.
// Every failure is recoverable at the call site; no run aborts on a backend
// error.
type Backend interface {
	WriteMetadata(ctx context.Context, runID string, info map[string]any) error
	ResolveSubjectCode(ctx context.Context, containerID string) (string, error)
}

// FileBackend persists info to a metadata file in the output directory.
type FileBackend struct {
	OutputDir string
}

// NewFileBackend creates a backend writing into outputDir.
func NewFileBackend(outputDir string) *FileBackend {
	return &FileBackend{OutputDir: outputDir}
}

// WriteMetadata merges info into the analysis.info object of the metadata
// file, creating the file on first write. The merge is shallow: top-level
// info keys overwrite, everything else in the file is preserved.
func (b *FileBackend) WriteMetadata(_ context.Context, runID string, info map[string]any) error {
	path := filepath.Join(b.OutputDir, FileName)

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &doc); jerr != nil {
			return gearerrors.NewBackend("read metadata file", jerr)
		}
	case os.IsNotExist(err):
	default:
		return gearerrors.NewBackend("read metadata file", err)
	}

	analysis, _ := doc["analysis"].(map[string]any)
	if analysis == nil {
		analysis = map[string]any{}
	}
	existing, _ := analysis["info"].(map[string]any)
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range info {
		existing[k] = v
	}
	analysis["info"] = existing
	doc["analysis"] = analysis

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return gearerrors.NewBackend("encode metadata file", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return gearerrors.NewBackend("write metadata file", err)
	}
	logging.BackendWrite(runID, "analysis.info", nil, "backend", "file")
	return nil
}

// ResolveSubjectCode always fails: the file backend has no container
// ancestry to consult.
func (b *FileBackend) ResolveSubjectCode(context.Context, string) (string, error) {
	return "", gearerrors.ErrSubjectUnknown
}

// APIBackend talks to the pipeline REST API.
type APIBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// NewAPIBackend creates a client for the pipeline API at baseURL.
func NewAPIBackend(baseURL, apiKey string) *APIBackend {
	return &APIBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent: "siena-gear/1.0",
	}
}

// WriteMetadata posts info to the analysis container's info endpoint.
func (b *APIBackend) WriteMetadata(ctx context.Context, runID string, info map[string]any) error {
	payload, err := json.Marshal(map[string]any{"set": info})
	if err != nil {
		return gearerrors.NewBackend("encode info", err)
	}
	if _, err := b.do(ctx, http.MethodPost, "/analyses/"+runID+"/info", payload); err != nil {
		return gearerrors.NewBackend("write info", err)
	}
	logging.BackendWrite(runID, "analysis.info", nil, "backend", "api")
	return nil
}

// ResolveSubjectCode follows the analysis container's parent pointer to its
// subject and returns the subject's code.
func (b *APIBackend) ResolveSubjectCode(ctx context.Context, containerID string) (string, error) {
	data, err := b.do(ctx, http.MethodGet, "/analyses/"+containerID, nil)
	if err != nil {
		return "", gearerrors.NewBackend("load analysis", err)
	}
	var analysis struct {
		Parents struct {
			Subject string `json:"subject"`
		} `json:"parents"`
	}
	if err := json.Unmarshal(data, &analysis); err != nil {
		return "", gearerrors.NewBackend("decode analysis", err)
	}
	if analysis.Parents.Subject == "" {
		return "", gearerrors.ErrSubjectUnknown
	}

	data, err = b.do(ctx, http.MethodGet, "/subjects/"+analysis.Parents.Subject, nil)
	if err != nil {
		return "", gearerrors.NewBackend("load subject", err)
	}
	var subject struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(data, &subject); err != nil {
		return "", gearerrors.NewBackend("decode subject", err)
	}
	if subject.Code == "" {
		return "", gearerrors.ErrSubjectUnknown
	}
	return subject.Code, nil
}

// do issues one API request and returns the response body.
func (b *APIBackend) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Authorization", "scitran-user "+b.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	logging.HTTPRequest(method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

// HTTPError represents an HTTP error response from the pipeline API.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// IsNotFound returns true if this is a 404 error.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

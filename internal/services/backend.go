package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// Job statuses reported by GET /status/{id}.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// JobStatus is the body of GET /status/{id}.
type JobStatus struct {
	JobID        string       `json:"job_id"`
	Status       string       `json:"status"`
	Progress     float64      `json:"progress"`
	Results      []FileResult `json:"results"`
	ErrorMessage string       `json:"error_message"`
}

// Terminal reports whether the job has finished, successfully or not.
func (s *JobStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// FileResult is one per-file outcome inside a completed job.
type FileResult struct {
	OriginalFilename  string `json:"original_filename"`
	ConvertedFilename string `json:"converted_filename"`
	DownloadURL       string `json:"download_url"`
	Size              int64  `json:"size"`
	Success           bool   `json:"success"`
	Error             string `json:"error"`
}

// ConvertResult is the body of a successful POST /convert.
type ConvertResult struct {
	OriginalFilename  string `json:"original_filename"`
	ConvertedFilename string `json:"converted_filename"`
	DownloadURL       string `json:"download_url"`
	Size              int64  `json:"size"`
}

// File is a named payload sent to the backend.
type File struct {
	Name string
	Data []byte
}

// BackendService is the client for the remote conversion API.
type BackendService struct {
	api    *APIService
	origin string
}

// NewBackendService creates a backend client rooted at baseURL (e.g. http://host:5000/api).
func NewBackendService(baseURL string, client *http.Client) *BackendService {
	api := NewAPIService(baseURL, client)
	return &BackendService{api: api, origin: originOf(api.BaseURL())}
}

// API exposes the underlying raw client.
func (b *BackendService) API() *APIService {
	return b.api
}

// CheckHealth succeeds when GET /health answers 2xx.
func (b *BackendService) CheckHealth(ctx context.Context) error {
	resp, err := b.api.Get(ctx, "/health")
	if err != nil {
		return &ConnectivityError{Op: "health", Err: err}
	}
	if !resp.OK() {
		return &ConnectivityError{Op: "health", StatusCode: resp.StatusCode}
	}
	return nil
}

// Formats fetches the backend-declared catalog keyed by converter group (image, document, media, archive).
func (b *BackendService) Formats(ctx context.Context) (map[string]catalog.RemoteFormats, error) {
	resp, err := b.api.Get(ctx, "/formats")
	if err != nil {
		return nil, &ConnectivityError{Op: "formats", Err: err}
	}
	if !resp.OK() {
		return nil, &ConnectivityError{Op: "formats", StatusCode: resp.StatusCode}
	}

	var body struct {
		Formats map[string]catalog.RemoteFormats `json:"formats"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return body.Formats, nil
}

// StartConversion uploads a batch and returns the job id.
//
// A 4xx answer yields a [RejectedError]; any other failure to reach or use the backend yields a
// [ConnectivityError].
func (b *BackendService) StartConversion(ctx context.Context, files []File, source, target string) (string, error) {
	uploads := make([]Upload, len(files))
	for i, f := range files {
		uploads[i] = Upload{Field: "files", Name: f.Name, Data: f.Data}
	}

	resp, err := b.api.PostMultipart(ctx, "/upload", formatFields(source, target), uploads)
	if err != nil {
		return "", &ConnectivityError{Op: "upload", Err: err}
	}
	if err := checkSubmission("upload", resp); err != nil {
		return "", err
	}

	var body struct {
		JobID string `json:"job_id"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if body.JobID == "" {
		return "", fmt.Errorf("%w: upload response has no job id", shared.ErrAPIRequest)
	}
	return body.JobID, nil
}

// PollStatus fetches the current state of a job.
//
// A job that failed on the server is a status value, not an error.
func (b *BackendService) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	resp, err := b.api.Get(ctx, "/status/"+url.PathEscape(jobID))
	if err != nil {
		return nil, &ConnectivityError{Op: "status", Err: err}
	}
	if !resp.OK() {
		return nil, &ConnectivityError{Op: "status", StatusCode: resp.StatusCode}
	}

	var status JobStatus
	if err := resp.Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if status.JobID == "" {
		status.JobID = jobID
	}
	return &status, nil
}

// ConvertFile converts a single file synchronously through POST /convert.
func (b *BackendService) ConvertFile(ctx context.Context, file File, source, target string) (*ConvertResult, error) {
	uploads := []Upload{{Field: "file", Name: file.Name, Data: file.Data}}

	resp, err := b.api.PostMultipart(ctx, "/convert", formatFields(source, target), uploads)
	if err != nil {
		return nil, &ConnectivityError{Op: "convert", Err: err}
	}
	if failed := conversionFailure("convert", resp); failed != nil {
		return nil, failed
	}
	if err := checkSubmission("convert", resp); err != nil {
		return nil, err
	}

	var result ConvertResult
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return &result, nil
}

// DownloadURL resolves a backend-relative download path into an absolute URL.
//
// Absolute URLs are returned unchanged. Relative paths resolve against the API origin, which is the
// base URL with its /api segment removed.
func (b *BackendService) DownloadURL(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return b.origin + "/" + strings.TrimLeft(path, "/")
}

// Download opens the converted file at rawURL. Relative paths are resolved with [BackendService.DownloadURL].
func (b *BackendService) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := b.api.Stream(ctx, b.DownloadURL(rawURL))
	if err != nil {
		return nil, &ConnectivityError{Op: "download", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, rawURL)
		}
		return nil, &ConnectivityError{Op: "download", StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func formatFields(source, target string) map[string]string {
	return map[string]string{
		"source_format": strings.ToUpper(source),
		"target_format": strings.ToUpper(target),
	}
}

func checkSubmission(op string, resp *APIResponse) error {
	switch {
	case resp.OK():
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RejectedError{Op: op, StatusCode: resp.StatusCode, Message: resp.ErrorMessage()}
	default:
		return &ConnectivityError{Op: op, StatusCode: resp.StatusCode}
	}
}

// conversionFailure reports a 5xx whose JSON body carries success=false and an error message.
// Other 5xx answers stay connectivity errors.
func conversionFailure(op string, resp *APIResponse) *JobFailedError {
	if resp.StatusCode < 500 {
		return nil
	}
	body, ok := resp.JSONData.(map[string]any)
	if !ok {
		return nil
	}
	success, _ := body["success"].(bool)
	msg, _ := body["error"].(string)
	if success || msg == "" {
		return nil
	}
	return &JobFailedError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// originOf strips any /api path segment from base, leaving the rest of the path intact.
func originOf(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.TrimRight(base, "/"), "/api")
	}

	var kept []string
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg != "" && seg != "api" {
			kept = append(kept, seg)
		}
	}

	u.Path = ""
	if len(kept) > 0 {
		u.Path = "/" + strings.Join(kept, "/")
	}
	u.RawQuery, u.Fragment = "", ""
	return strings.TrimRight(u.String(), "/")
}

package tasks

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/filealchemy/internal/services"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// MaxFileSize is the largest file accepted for upload (100 MB).
const MaxFileSize int64 = 100 * 1024 * 1024

// FileEntry is one file in the working batch.
//
// Data holds the content when it is already in memory; otherwise it is read from Path on demand.
type FileEntry struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MediaType string `json:"media_type"`
	Path      string `json:"path,omitempty"`
	Data      []byte `json:"-"`
}

// NewFileEntry wraps in-memory content, detecting its media type.
func NewFileEntry(name string, data []byte) FileEntry {
	return FileEntry{Name: filepath.Base(name), Size: int64(len(data)), Data: data}.withMediaType()
}

// LoadFile stats path and returns an entry that reads its content lazily.
func LoadFile(path string) (FileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileEntry{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return FileEntry{}, fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, path)
	}

	entry := FileEntry{Name: filepath.Base(path), Size: info.Size(), Path: path}
	if entry.MediaType = mime.TypeByExtension(filepath.Ext(path)); entry.MediaType == "" {
		head, err := readHead(path)
		if err != nil {
			return FileEntry{}, err
		}
		entry.MediaType = http.DetectContentType(head)
	}
	return entry, nil
}

// Bytes returns the file content, reading it from Path when not held in memory.
func (f FileEntry) Bytes() ([]byte, error) {
	if f.Data != nil || f.Path == "" {
		return f.Data, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

// IsImage reports whether the entry has an image media type.
func (f FileEntry) IsImage() bool {
	return strings.HasPrefix(f.MediaType, "image/")
}

// Extension returns the upper-case extension without the dot.
func (f FileEntry) Extension() string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(f.Name), "."))
}

func (f FileEntry) withMediaType() FileEntry {
	if f.MediaType != "" {
		return f
	}
	if f.MediaType = mime.TypeByExtension(filepath.Ext(f.Name)); f.MediaType == "" && len(f.Data) > 0 {
		f.MediaType = http.DetectContentType(f.Data)
	}
	if f.MediaType == "" {
		f.MediaType = "application/octet-stream"
	}
	return f
}

func readHead(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fh.Close()

	head := make([]byte, 512)
	n, _ := fh.Read(head)
	return head[:n], nil
}

func toServiceFiles(files []FileEntry) ([]services.File, error) {
	out := make([]services.File, len(files))
	for i, f := range files {
		data, err := f.Bytes()
		if err != nil {
			return nil, err
		}
		out[i] = services.File{Name: f.Name, Data: data}
	}
	return out, nil
}

// Selection is the chosen category and format pair. Empty strings mean unset.
type Selection struct {
	Category     string `json:"category"`
	SourceFormat string `json:"source_format"`
	TargetFormat string `json:"target_format"`
}

// Ready reports whether both formats are chosen.
func (s Selection) Ready() bool {
	return s.SourceFormat != "" && s.TargetFormat != ""
}

// Empty reports whether nothing is chosen.
func (s Selection) Empty() bool {
	return s == Selection{}
}

// JobStatus is the lifecycle stage of a conversion job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job tracks one batch.
type Job struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Engine   string    `json:"engine,omitempty"`
	Results  []Result  `json:"results"`
}

// Result is the outcome for one file.
//
// Success implies ConvertedFileName and DownloadURL are set and Error is empty; a failure always
// carries Error.
type Result struct {
	OriginalFile      FileEntry `json:"original_file"`
	ConvertedFileName string    `json:"converted_file_name"`
	DownloadURL       string    `json:"download_url"`
	Size              int64     `json:"size"`
	Success           bool      `json:"success"`
	Error             string    `json:"error,omitempty"`
}

// Outcome is the uniform answer of a conversion, whichever engine produced it.
type Outcome struct {
	Success bool
	Results []Result
	Message string
	Engine  string
}

// Counts returns the number of successful and failed results.
func (o *Outcome) Counts() (ok, failed int) {
	return CountResults(o.Results)
}

// CountResults returns how many results succeeded and failed.
func CountResults(results []Result) (ok, failed int) {
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// summarize builds the aggregate message for a batch.
func summarize(results []Result) (bool, string) {
	ok, failed := CountResults(results)
	switch {
	case len(results) == 0:
		return false, "No files were converted"
	case failed == 0:
		return true, fmt.Sprintf("Successfully converted %d %s", ok, plural(ok, "file"))
	case ok == 0:
		return false, fmt.Sprintf("All %d %s failed to convert", failed, plural(failed, "file"))
	default:
		return true, fmt.Sprintf("Converted %d of %d files (%d failed)", ok, ok+failed, failed)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// ValidationError is a local precondition failure raised before any conversion work starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return shared.ErrInvalidInput }

// PreviewHandle is a display-only resource derived from an image entry.
type PreviewHandle struct {
	ID   string
	Path string
}

// PreviewProvider creates and releases preview handles.
type PreviewProvider interface {
	Create(file FileEntry) (*PreviewHandle, error)
	Release(handle *PreviewHandle) error
}

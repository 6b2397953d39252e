package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/formatter"
	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/notifications"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/desertthunder/filealchemy/internal/tasks"
)

// DefaultMaxUploadBytes bounds one multipart upload request.
const DefaultMaxUploadBytes int64 = 1 << 30

const multipartMemory = 32 << 20

// AvailabilityReporter exposes the memoized backend reachability.
type AvailabilityReporter interface {
	Availability() tasks.Availability
}

// HistoryLister returns the most recent conversions.
type HistoryLister interface {
	Recent(limit int) ([]*models.HistoryEntry, error)
}

// APIOpts wires the collaborators of an [API].
type APIOpts struct {
	Orchestrator   *tasks.Orchestrator
	Notifications  *notifications.Sink
	History        HistoryLister
	Backend        AvailabilityReporter
	Events         *Broadcaster
	Logger         *log.Logger
	MaxUploadBytes int64
}

// API serves one conversion session as JSON.
type API struct {
	ctx       context.Context
	orch      *tasks.Orchestrator
	sink      *notifications.Sink
	history   HistoryLister
	backend   AvailabilityReporter
	events    *Broadcaster
	logger    *log.Logger
	maxUpload int64
}

// NewAPI creates the session API. Background conversions started through it live as long as ctx.
func NewAPI(ctx context.Context, opts APIOpts) *API {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Events == nil {
		opts.Events = NewBroadcaster()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	return &API{
		ctx:       ctx,
		orch:      opts.Orchestrator,
		sink:      opts.Notifications,
		history:   opts.History,
		backend:   opts.Backend,
		events:    opts.Events,
		logger:    shared.WithLogger(opts.Logger, "component", "api"),
		maxUpload: opts.MaxUploadBytes,
	}
}

// NewHandler builds a router with logging and recovery middleware serving every API route.
func NewHandler(ctx context.Context, opts APIOpts) http.Handler {
	api := NewAPI(ctx, opts)

	router := NewBasicRouter()
	router.Use(Recoverer(api.logger), RequestLogger(api.logger))
	api.Register(router)
	return router
}

// Register adds the API routes to r.
func (a *API) Register(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/health", a.health)
	r.HandleFunc(http.MethodGet, "/formats", a.formats)

	r.HandleFunc(http.MethodGet, "/session", a.session)
	r.HandleFunc(http.MethodPost, "/session/selection", a.setSelection)
	r.HandleFunc(http.MethodPost, "/session/files", a.addFiles)
	r.HandleFunc(http.MethodDelete, "/session/files/{index}", a.removeFile)
	r.HandleFunc(http.MethodPost, "/session/convert", a.convert)
	r.HandleFunc(http.MethodPost, "/session/reset", a.reset)
	r.HandleFunc(http.MethodGet, "/session/results", a.results)
	r.HandleFunc(http.MethodGet, "/session/results/{index}/download", a.download)
	r.HandleFunc(http.MethodGet, "/session/events", a.streamEvents)

	r.HandleFunc(http.MethodGet, "/notifications", a.listNotifications)
	r.HandleFunc(http.MethodDelete, "/notifications/{id}", a.dismiss)
	r.HandleFunc(http.MethodGet, "/history", a.listHistory)
}

type fileView struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MediaType  string `json:"media_type"`
	HasPreview bool   `json:"has_preview"`
}

type resultView struct {
	OriginalFilename  string `json:"original_filename"`
	ConvertedFilename string `json:"converted_filename"`
	Success           bool   `json:"success"`
	Size              int64  `json:"size"`
	DownloadURL       string `json:"download_url,omitempty"`
	Error             string `json:"error,omitempty"`
}

type jobView struct {
	JobID    string       `json:"job_id"`
	Status   string       `json:"status"`
	Progress float64      `json:"progress"`
	Engine   string       `json:"engine,omitempty"`
	Results  []resultView `json:"results"`
}

type sessionView struct {
	State     string          `json:"state"`
	Selection tasks.Selection `json:"selection"`
	Files     []fileView      `json:"files"`
	Progress  float64         `json:"progress"`
	Job       *jobView        `json:"job,omitempty"`
}

type sourceView struct {
	Format  string   `json:"format"`
	Targets []string `json:"targets"`
}

type categoryView struct {
	Name    string       `json:"name"`
	Title   string       `json:"title"`
	Sources []sourceView `json:"sources"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	backend := tasks.AvailabilityUnknown
	if a.backend != nil {
		backend = a.backend.Availability()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": backend.String(),
		"session": a.orch.State().String(),
	})
}

func (a *API) formats(w http.ResponseWriter, r *http.Request) {
	cat := a.orch.Catalog()

	categories := []categoryView{}
	for _, name := range cat.Categories() {
		view := categoryView{Name: name, Title: catalog.Title(name), Sources: []sourceView{}}
		for _, source := range cat.SourceFormats(name) {
			view.Sources = append(view.Sources, sourceView{Format: source, Targets: cat.TargetFormats(source)})
		}
		categories = append(categories, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *API) setSelection(w http.ResponseWriter, r *http.Request) {
	var sel tasks.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := a.orch.SetConversion(sel.Category, sel.SourceFormat, sel.TargetFormat); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *API) addFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	entries := make([]tasks.FileEntry, 0, len(headers))
	for _, fh := range headers {
		if fh.Filename == "" {
			writeError(w, http.StatusBadRequest, "No files selected")
			return
		}

		f, err := fh.Open()
		if err != nil {
			a.fail(w, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			a.fail(w, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err))
			return
		}

		entry := tasks.NewFileEntry(fh.Filename, data)
		if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
			entry.MediaType = ct
		}
		entries = append(entries, entry)
	}

	if err := a.orch.AddFiles(entries...); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.snapshot())
}

func (a *API) removeFile(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file index")
		return
	}

	if err := a.orch.RemoveFile(index); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *API) convert(w http.ResponseWriter, r *http.Request) {
	done, err := a.orch.Start(a.ctx)
	if err != nil {
		a.fail(w, err)
		return
	}

	go func() {
		if err := <-done; err != nil && !errors.Is(err, tasks.ErrCancelled) {
			a.logger.Warn("background conversion ended with error", "error", err)
		}
	}()

	job, _ := a.orch.Job()
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": job.ID})
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	a.orch.Reset()
	writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	job, ok := a.orch.Job()
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

func (a *API) download(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid result index")
		return
	}

	result, body, err := a.orch.OpenResult(r.Context(), index)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(result.ConvertedFileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.ConvertedFileName}))

	if _, err := io.Copy(w, body); err != nil {
		a.logger.Warn("download interrupted", "file", result.ConvertedFileName, "error", err)
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	active := []notifications.Notification{}
	if a.sink != nil {
		active = append(active, a.sink.Active()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": active})
}

func (a *API) dismiss(w http.ResponseWriter, r *http.Request) {
	if a.sink == nil || !a.sink.Dismiss(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		a.fail(w, fmt.Errorf("%w: history is not configured", shared.ErrMissingConfig))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := a.history.Recent(limit)
	if err != nil {
		a.fail(w, err)
		return
	}

	data, ext, err := formatter.Export(entries, r.URL.Query().Get("format"))
	if err != nil {
		a.fail(w, err)
		return
	}

	contentType := mime.TypeByExtension(ext)
	switch ext {
	case ".json":
		contentType = "application/json"
	case ".md":
		contentType = "text/markdown; charset=utf-8"
	}
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (a *API) snapshot() sessionView {
	view := sessionView{
		State:     a.orch.State().String(),
		Selection: a.orch.Selection(),
		Files:     []fileView{},
		Progress:  a.orch.Progress(),
	}

	previews := a.orch.Previews()
	for i, f := range a.orch.Files() {
		view.Files = append(view.Files, fileView{
			Name:       f.Name,
			Size:       f.Size,
			MediaType:  f.MediaType,
			HasPreview: i < len(previews) && previews[i] != nil,
		})
	}

	if job, ok := a.orch.Job(); ok {
		jv := toJobView(job)
		view.Job = &jv
	}
	return view
}

func toJobView(job tasks.Job) jobView {
	view := jobView{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Engine:   job.Engine,
		Results:  make([]resultView, len(job.Results)),
	}
	for i, r := range job.Results {
		rv := resultView{
			OriginalFilename:  r.OriginalFile.Name,
			ConvertedFilename: r.ConvertedFileName,
			Success:           r.Success,
			Size:              r.Size,
			Error:             r.Error,
		}
		if r.Success {
			rv.DownloadURL = fmt.Sprintf("/session/results/%d/download", i)
		}
		view.Results[i] = rv
	}
	return view
}

// fail maps err onto a status code and writes the error body.
func (a *API) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var verr *tasks.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrConversionInProgress):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrMissingConfig), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

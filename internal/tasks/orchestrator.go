package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/notifications"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// ErrCancelled is returned by [Orchestrator.Convert] when a reset discarded the batch.
var ErrCancelled = errors.New("conversion cancelled by reset")

// State is the orchestrator lifecycle stage.
type State int

const (
	Idle State = iota
	Selecting
	FilesReady
	Converting
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case FilesReady:
		return "files_ready"
	case Converting:
		return "converting"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// HistoryRecorder persists a summary of every completed batch.
type HistoryRecorder interface {
	RecordConversion(ctx context.Context, entry *models.HistoryEntry) error
}

// OrchestratorOpts wires the collaborators of an [Orchestrator].
type OrchestratorOpts struct {
	Catalog     *catalog.Catalog
	Converter   Converter
	Notifier    notifications.Notifier
	Previews    PreviewProvider
	History     HistoryRecorder
	Downloader  *Downloader
	Blobs       *BlobStore
	Progress    chan<- ProgressUpdate
	Logger      *log.Logger
	MaxFileSize int64
}

// Orchestrator owns one conversion session: the selection, the file batch, and the job.
//
// All mutations are serialized. Each conversion attempt carries a generation number; progress and
// completion from an attempt whose generation no longer matches (because of a reset) are discarded.
type Orchestrator struct {
	catalog    *catalog.Catalog
	converter  Converter
	notifier   notifications.Notifier
	previews   PreviewProvider
	history    HistoryRecorder
	downloader *Downloader
	blobs      *BlobStore
	progress   chan<- ProgressUpdate
	logger     *log.Logger
	maxSize    int64

	mu         sync.Mutex
	state      State
	selection  Selection
	files      []FileEntry
	handles    []*PreviewHandle
	job        *Job
	generation uint64
	cancel     context.CancelFunc
}

// NewOrchestrator creates an idle session.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.Noop{}
	}
	if opts.Previews == nil {
		opts.Previews = noPreviews{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = MaxFileSize
	}

	return &Orchestrator{
		catalog:    opts.Catalog,
		converter:  opts.Converter,
		notifier:   opts.Notifier,
		previews:   opts.Previews,
		history:    opts.History,
		downloader: opts.Downloader,
		blobs:      opts.Blobs,
		progress:   opts.Progress,
		logger:     shared.WithLogger(opts.Logger, "component", "orchestrator"),
		maxSize:    opts.MaxFileSize,
	}
}

// Catalog returns the format catalog used for selection.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// State returns the current lifecycle stage.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Selection returns the current selection.
func (o *Orchestrator) Selection() Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selection
}

// Files returns a copy of the working batch.
func (o *Orchestrator) Files() []FileEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.files)
}

// Previews returns the preview handle of each file (nil for non-images), aligned with [Orchestrator.Files].
func (o *Orchestrator) Previews() []*PreviewHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.handles)
}

// Progress returns the current job progress, or 0 without a job.
func (o *Orchestrator) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return 0
	}
	return o.job.Progress
}

// Job returns a snapshot of the current job.
func (o *Orchestrator) Job() (Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return Job{}, false
	}
	job := *o.job
	job.Results = slices.Clone(o.job.Results)
	return job, true
}

// Results returns the per-file results of the last completed batch.
func (o *Orchestrator) Results() []Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job == nil {
		return nil
	}
	return slices.Clone(o.job.Results)
}

// SetConversion sets the selection.
//
// A source outside the category is cleared, and a target that is not a valid conversion of the
// source is cleared; neither is an error. A blank category is inferred from the source.
func (o *Orchestrator) SetConversion(category, source, target string) error {
	category = catalogKey(category)
	source, target = normalizeFormat(source), normalizeFormat(target)

	if category == "" && source != "" {
		category = o.catalog.CategoryOf(source)
	}
	if source != "" && category != "" && !o.catalog.HasSource(category, source) {
		source = ""
	}
	if target != "" && !o.catalog.IsValidTarget(source, target) {
		target = ""
	}

	o.mu.Lock()
	if o.state == Converting {
		o.mu.Unlock()
		o.notify(notifications.Warning, "Conversion in progress", "Wait for the current conversion to finish before changing formats")
		return shared.ErrConversionInProgress
	}

	o.selection = Selection{Category: category, SourceFormat: source, TargetFormat: target}
	o.settle()
	o.mu.Unlock()
	return nil
}

// AddFiles appends files to the batch, creating previews for images.
func (o *Orchestrator) AddFiles(files ...FileEntry) error {
	return o.putFiles(false, files)
}

// SetFiles replaces the batch, releasing the previews of the previous files.
func (o *Orchestrator) SetFiles(files ...FileEntry) error {
	return o.putFiles(true, files)
}

func (o *Orchestrator) putFiles(replace bool, files []FileEntry) error {
	o.mu.Lock()
	if o.state == Converting {
		o.mu.Unlock()
		o.notify(notifications.Warning, "Conversion in progress", "Files cannot be changed while a conversion is running")
		return shared.ErrConversionInProgress
	}
	o.mu.Unlock()

	entries := make([]FileEntry, len(files))
	handles := make([]*PreviewHandle, len(files))
	for i, f := range files {
		entries[i] = f.withMediaType()
		if entries[i].IsImage() {
			h, err := o.previews.Create(entries[i])
			if err != nil {
				o.logger.Warn("preview unavailable", "file", f.Name, "error", err)
			}
			handles[i] = h
		}
	}

	o.mu.Lock()
	if o.state == Converting {
		o.mu.Unlock()
		o.releaseHandles(handles)
		o.notify(notifications.Warning, "Conversion in progress", "Files cannot be changed while a conversion is running")
		return shared.ErrConversionInProgress
	}

	var released []*PreviewHandle
	if replace {
		released = o.handles
		o.files, o.handles = nil, nil
	}
	o.files = append(o.files, entries...)
	o.handles = append(o.handles, handles...)
	o.settle()
	o.mu.Unlock()

	o.releaseHandles(released)
	return nil
}

// RemoveFile drops the file at index and releases its preview.
func (o *Orchestrator) RemoveFile(index int) error {
	o.mu.Lock()
	if o.state == Converting {
		o.mu.Unlock()
		o.notify(notifications.Warning, "Conversion in progress", "Files cannot be changed while a conversion is running")
		return shared.ErrConversionInProgress
	}
	if index < 0 || index >= len(o.files) {
		n := len(o.files)
		o.mu.Unlock()
		return fmt.Errorf("%w: file index %d out of range [0,%d)", shared.ErrInvalidArgument, index, n)
	}

	handle := o.handles[index]
	o.files = slices.Delete(o.files, index, index+1)
	o.handles = slices.Delete(o.handles, index, index+1)
	o.settle()
	o.mu.Unlock()

	o.releaseHandles([]*PreviewHandle{handle})
	return nil
}

// Convert runs the batch and blocks until it finishes.
//
// Missing files or formats, or an oversized file, return a [*ValidationError] without changing state.
// A second call while converting returns [shared.ErrConversionInProgress]. Failures of the conversion
// itself never escape: they complete the batch with an error notification. A concurrent
// [Orchestrator.Reset] makes Convert return [ErrCancelled].
func (o *Orchestrator) Convert(ctx context.Context) error {
	a, err := o.begin(ctx)
	if err != nil {
		return err
	}
	return o.run(ctx, a)
}

// Start validates like [Orchestrator.Convert] and then runs the batch in the background.
//
// The returned channel receives the result of the run and is closed.
func (o *Orchestrator) Start(ctx context.Context) (<-chan error, error) {
	a, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- o.run(ctx, a)
	}()
	return done, nil
}

type attempt struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	files  []FileEntry
	sel    Selection
}

func (o *Orchestrator) begin(ctx context.Context) (*attempt, error) {
	o.mu.Lock()
	if o.state == Converting {
		o.mu.Unlock()
		return nil, shared.ErrConversionInProgress
	}
	if err := o.validate(); err != nil {
		o.mu.Unlock()
		o.notify(notifications.Error, "Cannot start conversion", err.Message)
		return nil, err
	}
	if o.converter == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: no converter configured", shared.ErrMissingConfig)
	}

	o.generation++
	a := &attempt{gen: o.generation, files: slices.Clone(o.files), sel: o.selection}
	a.ctx, a.cancel = context.WithCancel(ctx)
	o.cancel = a.cancel

	previous := o.job
	o.job = &Job{ID: shared.GenerateID(), Status: JobPending}
	o.state = Converting
	o.mu.Unlock()

	o.releaseResults(previous)
	return a, nil
}

func (o *Orchestrator) run(ctx context.Context, a *attempt) error {
	gen, files, sel := a.gen, a.files, a.sel

	started := startedUpdate(len(files), sel)
	o.notify(notifications.Info, "Conversion started", started.Message)
	sendProgress(o.progress, started)

	outcome, err := o.converter.ConvertFiles(a.ctx, files, sel.SourceFormat, sel.TargetFormat, func(p float64) {
		o.applyProgress(gen, p, len(files))
	})
	a.cancel()
	if err == nil && outcome == nil {
		err = fmt.Errorf("%w: converter returned no outcome", shared.ErrJobFailed)
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		if outcome != nil {
			o.releaseResults(&Job{Results: outcome.Results})
		}
		o.logger.Info("discarded cancelled conversion", "files", len(files))
		return ErrCancelled
	}

	o.cancel = nil
	o.state = Completed
	o.job.Progress = 100

	var (
		kind    notifications.Type
		title   string
		message string
	)
	switch {
	case err != nil:
		o.job.Status = JobFailed
		o.job.Results = nil
		kind, title, message = notifications.Error, "Conversion failed", err.Error()
		o.logger.Error("conversion failed", "error", err)
	case outcome.Success:
		o.job.Status = JobCompleted
		o.job.Results = outcome.Results
		o.job.Engine = outcome.Engine
		kind, title, message = notifications.Success, "Conversion complete", outcome.Message
	default:
		o.job.Status = JobCompleted
		if len(outcome.Results) == 0 {
			o.job.Status = JobFailed
		}
		o.job.Results = outcome.Results
		o.job.Engine = outcome.Engine
		kind, title, message = notifications.Error, "Conversion failed", outcome.Message
	}
	job := *o.job
	job.Results = slices.Clone(o.job.Results)
	o.mu.Unlock()

	o.notify(kind, title, message)
	sendProgress(o.progress, completedUpdate(job, message))
	o.record(ctx, sel, len(files), job, message)
	return nil
}

// Reset clears the session and returns to Idle.
//
// An in-flight conversion is cancelled and its late progress and results are discarded. Every preview
// handle is released.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.generation++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}

	handles := o.handles
	job := o.job
	o.files, o.handles, o.job = nil, nil, nil
	o.selection = Selection{}
	o.state = Idle
	o.mu.Unlock()

	o.releaseHandles(handles)
	o.releaseResults(job)
}

// OpenResult returns the content of the result at index of the current job.
func (o *Orchestrator) OpenResult(ctx context.Context, index int) (Result, io.ReadCloser, error) {
	if o.downloader == nil {
		return Result{}, nil, fmt.Errorf("%w: no downloader configured", shared.ErrMissingConfig)
	}

	results := o.Results()
	if index < 0 || index >= len(results) {
		return Result{}, nil, fmt.Errorf("%w: result %d", shared.ErrNotFound, index)
	}

	result := results[index]
	if !result.Success {
		return result, nil, fmt.Errorf("%w: %s was not converted", shared.ErrNotFound, result.OriginalFile.Name)
	}

	body, err := o.downloader.Open(ctx, result.DownloadURL)
	if err != nil {
		return result, nil, err
	}
	return result, body, nil
}

// DownloadResult saves one result into dir and returns the written path.
func (o *Orchestrator) DownloadResult(ctx context.Context, result Result, dir string) (string, error) {
	if o.downloader == nil {
		return "", fmt.Errorf("%w: no downloader configured", shared.ErrMissingConfig)
	}
	return o.downloader.Save(ctx, result, dir)
}

// DownloadAll saves every successful result into dir, staggered, without touching job state.
func (o *Orchestrator) DownloadAll(ctx context.Context, dir string) (*DownloadSummary, error) {
	if o.downloader == nil {
		return nil, fmt.Errorf("%w: no downloader configured", shared.ErrMissingConfig)
	}
	return o.downloader.SaveAll(ctx, o.Results(), dir, o.progress)
}

func (o *Orchestrator) applyProgress(gen uint64, percent float64, files int) {
	o.mu.Lock()
	if gen != o.generation || o.state != Converting || o.job == nil {
		o.mu.Unlock()
		return
	}

	percent = min(max(percent, 0), 100)
	if percent < o.job.Progress {
		percent = o.job.Progress
	}
	o.job.Progress = percent
	o.job.Status = JobProcessing
	o.mu.Unlock()

	sendProgress(o.progress, convertingUpdate(percent, files))
}

// validate checks the preconditions of Convert. Callers hold o.mu.
func (o *Orchestrator) validate() *ValidationError {
	switch {
	case len(o.files) == 0:
		return &ValidationError{Field: "files", Message: "Please select at least one file to convert"}
	case o.selection.SourceFormat == "":
		return &ValidationError{Field: "source_format", Message: "Please select a source format"}
	case o.selection.TargetFormat == "":
		return &ValidationError{Field: "target_format", Message: "Please select a target format"}
	}

	for _, f := range o.files {
		if f.Size > o.maxSize {
			return &ValidationError{
				Field:   "files",
				Message: fmt.Sprintf("File %s is too large (max %dMB)", f.Name, o.maxSize/(1024*1024)),
			}
		}
	}
	return nil
}

// settle derives the state from selection and files. Callers hold o.mu.
func (o *Orchestrator) settle() {
	switch {
	case o.state == Converting:
	case len(o.files) > 0 && o.selection.Ready():
		o.state = FilesReady
	case len(o.files) > 0 || !o.selection.Empty():
		o.state = Selecting
	default:
		o.state = Idle
	}
}

func (o *Orchestrator) notify(kind notifications.Type, title, message string) {
	o.notifier.Notify(kind, title, message)
}

func (o *Orchestrator) releaseHandles(handles []*PreviewHandle) {
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := o.previews.Release(h); err != nil {
			o.logger.Warn("failed to release preview", "preview", h.ID, "error", err)
		}
	}
}

func (o *Orchestrator) releaseResults(job *Job) {
	if job == nil || o.blobs == nil {
		return
	}
	for _, r := range job.Results {
		if IsBlobURL(r.DownloadURL) {
			o.blobs.Release(r.DownloadURL)
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, sel Selection, files int, job Job, message string) {
	if o.history == nil {
		return
	}

	entry := models.NewHistoryEntry(sel.Category, sel.SourceFormat, sel.TargetFormat)
	entry.FileCount = files
	entry.SuccessCount, entry.FailedCount = CountResults(job.Results)
	entry.Engine = job.Engine
	entry.Message = message

	if err := o.history.RecordConversion(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Warn("failed to record history", "error", err)
	}
}

func catalogKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func normalizeFormat(format string) string {
	if strings.TrimSpace(format) == "" {
		return ""
	}
	return catalog.Normalize(format)
}

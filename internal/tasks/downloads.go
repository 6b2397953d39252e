package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/formatter"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/gofrs/flock"
	"golang.org/x/time/rate"
)

// ManifestName is the summary file written by [Downloader.SaveAll].
const ManifestName = "download_manifest.json"

const lockName = ".filealchemy.lock"

// Fetcher opens remote download URLs.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// DownloadOpts configures a [Downloader].
type DownloadOpts struct {
	Blobs   *BlobStore
	Remote  Fetcher
	Stagger time.Duration // minimum spacing between download starts, 0 disables
	Workers int           // concurrent writers (default: 3)
	Logger  *log.Logger
}

// Downloader saves conversion results to disk from either the blob store or the backend.
type Downloader struct {
	blobs   *BlobStore
	remote  Fetcher
	stagger time.Duration
	workers int
	logger  *log.Logger
}

// DownloadItem is the outcome of saving one result.
type DownloadItem struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Source  string `json:"source"`
	Size    int64  `json:"size"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DownloadSummary describes a bulk download.
type DownloadSummary struct {
	Directory    string         `json:"directory"`
	Total        int            `json:"total"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Items        []DownloadItem `json:"items"`
	ManifestPath string         `json:"-"`
}

type downloadJob struct {
	index  int
	result Result
	name   string
}

type downloadDone struct {
	index int
	item  DownloadItem
}

// NewDownloader creates a Downloader.
func NewDownloader(opts DownloadOpts) *Downloader {
	if opts.Stagger < 0 {
		opts.Stagger = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.Workers > 10 {
		opts.Workers = 10
	}
	if opts.Blobs == nil {
		opts.Blobs = NewBlobStore()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Downloader{
		blobs:   opts.Blobs,
		remote:  opts.Remote,
		stagger: opts.Stagger,
		workers: opts.Workers,
		logger:  shared.WithLogger(opts.Logger, "component", "downloads"),
	}
}

// Open returns the content behind a result URL.
func (d *Downloader) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("%w: result has no download url", shared.ErrInvalidArgument)
	case IsBlobURL(url):
		return d.blobs.Open(url)
	case d.remote == nil:
		return nil, fmt.Errorf("%w: no backend configured for %s", shared.ErrServiceUnavailable, url)
	default:
		return d.remote.Download(ctx, url)
	}
}

// Save writes one result into dir under its converted name and returns the path.
func (d *Downloader) Save(ctx context.Context, result Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	item := d.save(ctx, result, dir, result.ConvertedFileName)
	if !item.Success {
		return "", errors.New(item.Error)
	}
	return item.Path, nil
}

// SaveAll writes every successful result into dir.
//
// Download starts are spaced by the stagger interval and written by a small worker pool. The directory
// is locked for the duration, and a manifest summarizing the run is written at the end.
func (d *Downloader) SaveAll(ctx context.Context, results []Result, dir string, prog chan<- ProgressUpdate) (*DownloadSummary, error) {
	var wanted []Result
	for _, r := range results {
		if r.Success {
			wanted = append(wanted, r)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", shared.ErrDirectoryLocked, dir)
	}
	defer func() {
		lock.Unlock()
		os.Remove(lock.Path())
	}()

	summary := &DownloadSummary{
		Directory: dir,
		Total:     len(wanted),
		Items:     make([]DownloadItem, len(wanted)),
	}

	limit := rate.Inf
	if d.stagger > 0 {
		limit = rate.Every(d.stagger)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobs := make(chan downloadJob, len(wanted))
	done := make(chan downloadDone, len(wanted))

	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go d.worker(ctx, &wg, dir, jobs, done)
	}

	sendProgress(prog, downloadStartedUpdate(len(wanted), dir))

	dispatched := make([]bool, len(wanted))
	go func() {
		defer close(jobs)
		names := uniqueNames(wanted)
		for i, r := range wanted {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			dispatched[i] = true
			jobs <- downloadJob{index: i, result: r, name: names[i]}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for res := range done {
		completed++
		summary.Items[res.index] = res.item

		if res.item.Success {
			summary.Succeeded++
			sendProgress(prog, downloadCompletedUpdate(completed, len(wanted), res.item.Name))
		} else {
			summary.Failed++
			sendProgress(prog, downloadFailedUpdate(completed, len(wanted), res.item.Name, errors.New(res.item.Error)))
		}
	}

	for i, ok := range dispatched {
		if !ok {
			summary.Failed++
			summary.Items[i] = DownloadItem{Name: wanted[i].ConvertedFileName, Source: wanted[i].DownloadURL, Error: "download cancelled"}
		}
	}

	manifestPath := filepath.Join(dir, ManifestName)
	if err := formatter.WriteJSON(summary, manifestPath); err != nil {
		return summary, fmt.Errorf("downloads completed but failed to write manifest: %w", err)
	}
	summary.ManifestPath = manifestPath

	d.logger.Info("downloads finished", "dir", dir, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, ctx.Err()
}

func (d *Downloader) worker(ctx context.Context, wg *sync.WaitGroup, dir string, jobs <-chan downloadJob, done chan<- downloadDone) {
	defer wg.Done()

	for job := range jobs {
		done <- downloadDone{index: job.index, item: d.save(ctx, job.result, dir, job.name)}
	}
}

func (d *Downloader) save(ctx context.Context, r Result, dir, name string) DownloadItem {
	item := DownloadItem{Name: name, Source: r.DownloadURL}
	if name == "" {
		item.Error = "result has no file name"
		return item
	}

	body, err := d.Open(ctx, r.DownloadURL)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	defer body.Close()

	path := filepath.Join(dir, filepath.Base(name))
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		item.Error = fmt.Sprintf("failed to create file: %v", err)
		return item
	}

	n, err := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		item.Error = fmt.Sprintf("failed to write %s: %v", name, err)
		return item
	}

	item.Path, item.Size, item.Success = path, n, true
	return item
}

// uniqueNames suffixes repeated converted names within one batch: a.jpg, a (1).jpg, ...
func uniqueNames(results []Result) []string {
	seen := make(map[string]int, len(results))
	names := make([]string, len(results))
	for i, r := range results {
		name := filepath.Base(r.ConvertedFileName)
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
		}
		seen[key]++
		names[i] = name
	}
	return names
}

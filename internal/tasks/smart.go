package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/services"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// ErrPollTimeout means a backend job did not reach a terminal state within the poll budget.
var ErrPollTimeout = fmt.Errorf("%w: conversion job did not finish", shared.ErrTimeout)

// Availability is the memoized backend reachability.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	Available
	Unavailable
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Backend is the remote conversion contract consumed by [SmartService].
type Backend interface {
	CheckHealth(ctx context.Context) error
	StartConversion(ctx context.Context, files []services.File, source, target string) (string, error)
	PollStatus(ctx context.Context, jobID string) (*services.JobStatus, error)
	DownloadURL(path string) string
}

// Converter turns a batch of files into an [Outcome].
type Converter interface {
	ConvertFiles(ctx context.Context, files []FileEntry, source, target string, onProgress ProgressFunc) (*Outcome, error)
}

// SmartOpts configures a [SmartService].
type SmartOpts struct {
	Backend      Backend // nil means always mock
	Mock         *MockEngine
	Clock        Clock
	PollInterval time.Duration
	MaxPolls     int // 0 polls until ctx is done
	Logger       *log.Logger
}

// SmartService routes conversions to the backend when reachable and to the mock engine otherwise.
//
// Availability is probed once and memoized. A connectivity failure anywhere in the backend flow marks
// the backend unavailable and retries the same request on the mock engine, at most once per call.
type SmartService struct {
	backend  Backend
	mock     *MockEngine
	clock    Clock
	interval time.Duration
	maxPolls int
	logger   *log.Logger

	mu           sync.Mutex
	availability Availability
}

// NewSmartService creates a SmartService.
func NewSmartService(opts SmartOpts) *SmartService {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Mock == nil {
		opts.Mock = NewMockEngine(DefaultMockOptions(), opts.Clock, nil, opts.Logger)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}

	s := &SmartService{
		backend:  opts.Backend,
		mock:     opts.Mock,
		clock:    opts.Clock,
		interval: opts.PollInterval,
		maxPolls: opts.MaxPolls,
		logger:   shared.WithLogger(opts.Logger, "component", "smart"),
	}
	if s.backend == nil {
		s.availability = Unavailable
	}
	return s
}

// Availability returns the memoized backend state.
func (s *SmartService) Availability() Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availability
}

// ResetAvailability forgets the memoized state so the next call probes again.
func (s *SmartService) ResetAvailability() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		s.availability = AvailabilityUnknown
	}
}

// ForceMock pins the service to the mock engine.
func (s *SmartService) ForceMock() {
	s.setAvailability(Unavailable)
}

func (s *SmartService) setAvailability(a Availability) {
	s.mu.Lock()
	s.availability = a
	s.mu.Unlock()
}

// Probe runs the health check when availability is unknown and returns the resulting state.
func (s *SmartService) Probe(ctx context.Context) Availability {
	if a := s.Availability(); a != AvailabilityUnknown {
		return a
	}

	if err := s.backend.CheckHealth(ctx); err != nil {
		if ctx.Err() != nil {
			return AvailabilityUnknown
		}
		s.logger.Warn("backend unavailable, using local conversion", "error", err)
		s.setAvailability(Unavailable)
		return Unavailable
	}

	s.setAvailability(Available)
	return Available
}

// ConvertFiles converts files through whichever engine is usable.
func (s *SmartService) ConvertFiles(ctx context.Context, files []FileEntry, source, target string, onProgress ProgressFunc) (*Outcome, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	if s.Probe(ctx) == Available {
		outcome, err := s.convertRemote(ctx, files, source, target, onProgress)
		switch {
		case err == nil:
			return outcome, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case !services.IsConnectivity(err):
			return nil, err
		}

		s.logger.Warn("backend failed mid-conversion, falling back to local conversion", "error", err)
		s.setAvailability(Unavailable)
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.mock.ConvertFiles(ctx, files, source, target, onProgress)
}

func (s *SmartService) convertRemote(ctx context.Context, files []FileEntry, source, target string, onProgress ProgressFunc) (*Outcome, error) {
	payload, err := toServiceFiles(files)
	if err != nil {
		return nil, err
	}

	jobID, err := s.backend.StartConversion(ctx, payload, source, target)
	if err != nil {
		return nil, err
	}

	logger := shared.WithLogger(s.logger, "job", jobID)
	logger.Debug("job started", "files", len(files))

	for polls := 1; ; polls++ {
		status, err := s.backend.PollStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		onProgress(status.Progress)

		switch status.Status {
		case services.StatusCompleted:
			return s.completed(files, status), nil
		case services.StatusFailed:
			msg := status.ErrorMessage
			if msg == "" {
				msg = "Conversion failed on the server"
			}
			logger.Warn("job failed", "error", msg)
			return &Outcome{Success: false, Message: msg, Engine: models.EngineBackend}, nil
		}

		if s.maxPolls > 0 && polls >= s.maxPolls {
			return nil, fmt.Errorf("%w: job %s after %d polls", ErrPollTimeout, jobID, polls)
		}
		if err := s.clock.Sleep(ctx, s.interval); err != nil {
			return nil, err
		}
	}
}

func (s *SmartService) completed(files []FileEntry, status *services.JobStatus) *Outcome {
	results := make([]Result, len(status.Results))
	for i, r := range status.Results {
		result := Result{
			OriginalFile:      matchOriginal(files, i, r.OriginalFilename),
			ConvertedFileName: r.ConvertedFilename,
			Size:              r.Size,
			Success:           r.Success,
			Error:             r.Error,
		}
		if r.Success {
			result.DownloadURL = s.backend.DownloadURL(r.DownloadURL)
		} else if result.Error == "" {
			result.Error = fmt.Sprintf("Failed to convert %s", r.OriginalFilename)
		}
		results[i] = result
	}

	ok, message := summarize(results)
	return &Outcome{Success: ok, Results: results, Message: message, Engine: models.EngineBackend}
}

// matchOriginal pairs a backend result with the uploaded entry.
//
// The backend sanitizes names, so a result that matches no upload by name falls back to its position.
func matchOriginal(files []FileEntry, i int, name string) FileEntry {
	if i < len(files) && sameName(files[i].Name, name) {
		return files[i]
	}
	for _, f := range files {
		if sameName(f.Name, name) {
			return f
		}
	}
	if i < len(files) {
		return files[i]
	}
	return FileEntry{Name: name}
}

func sameName(a, b string) bool {
	return filepath.Base(a) == filepath.Base(b)
}

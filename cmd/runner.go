package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/notifications"
	"github.com/desertthunder/filealchemy/internal/repositories"
	"github.com/desertthunder/filealchemy/internal/services"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/desertthunder/filealchemy/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	backend    *services.BackendService
	tts        *services.TTSService
	httpClient *http.Client
	clock      tasks.Clock
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Backend    *services.BackendService
	HTTPClient *http.Client
	Clock      tasks.Clock
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = services.NewHTTPClient(opts.Config.Backend.Timeout(), opts.Config.Backend.APIToken)
	}
	if opts.Backend == nil {
		opts.Backend = services.NewBackendService(opts.Config.Backend.URL, opts.HTTPClient)
	}
	if opts.Clock == nil {
		opts.Clock = tasks.RealClock()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		backend:    opts.Backend,
		tts:        services.NewTTSService(opts.Backend),
		httpClient: opts.HTTPClient,
		clock:      opts.Clock,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// sessionOpts controls how [Runner.newSession] wires the conversion stack.
type sessionOpts struct {
	mock     bool // never contact the backend
	remote   bool // merge the backend's format catalog when reachable
	previews bool
}

// session is one orchestrator with its collaborators.
type session struct {
	orch     *tasks.Orchestrator
	smart    *tasks.SmartService
	sink     *notifications.Sink
	history  *repositories.HistoryRepository
	progress chan tasks.ProgressUpdate
	db       *sql.DB
}

func (s *session) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newSession builds the orchestrator, smart service, and history store from the config.
//
// A database that cannot be opened disables history with a warning rather than failing the command.
func (r *Runner) newSession(ctx context.Context, opts sessionOpts) *session {
	s := &session{
		sink:     notifications.NewSink(notifications.SinkOpts{Logger: r.logger}),
		progress: make(chan tasks.ProgressUpdate, 128),
	}

	var history tasks.HistoryRecorder
	if db, err := r.openDatabase(); err != nil {
		r.logger.Warn("conversion history disabled", "error", err)
	} else {
		s.db = db
		s.history = repositories.NewHistoryRepository(db, r.config.History.Limit)
		history = s.history
	}

	blobs := tasks.NewBlobStore()

	var backend tasks.Backend
	if !opts.mock {
		backend = r.backend
	}
	s.smart = tasks.NewSmartService(tasks.SmartOpts{
		Backend:      backend,
		Mock:         tasks.NewMockEngine(tasks.MockOptionsFromConfig(r.config.Mock), r.clock, blobs, r.logger),
		Clock:        r.clock,
		PollInterval: r.config.Backend.PollInterval(),
		MaxPolls:     r.config.Backend.MaxPolls,
		Logger:       r.logger,
	})

	cat := catalog.Default()
	if opts.remote && !opts.mock {
		cat = r.remoteCatalog(ctx, cat)
	}

	var previews tasks.PreviewProvider
	if opts.previews {
		previews = tasks.NewTempPreviews("")
	}

	s.orch = tasks.NewOrchestrator(tasks.OrchestratorOpts{
		Catalog:   cat,
		Converter: s.smart,
		Notifier:  s.sink,
		Previews:  previews,
		History:   history,
		Blobs:     blobs,
		Downloader: tasks.NewDownloader(tasks.DownloadOpts{
			Blobs:   blobs,
			Remote:  r.backend,
			Stagger: r.config.Downloads.Stagger(),
			Workers: r.config.Downloads.Workers,
			Logger:  r.logger,
		}),
		Progress: s.progress,
		Logger:   r.logger,
	})
	return s
}

// remoteCatalog merges the backend's declared formats into base, keeping base when the backend is unreachable.
func (r *Runner) remoteCatalog(ctx context.Context, base *catalog.Catalog) *catalog.Catalog {
	ctx, cancel := context.WithTimeout(ctx, r.config.Backend.Timeout())
	defer cancel()

	remote, err := r.backend.Formats(ctx)
	if err != nil {
		r.logger.Warn("using bundled format catalog", "error", err)
		return base
	}
	return base.Merge(remote)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

package tasks

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/jung-kurt/gofpdf"
)

// MockOptions tunes the simulated conversion.
type MockOptions struct {
	Steps         int
	StepDelay     time.Duration
	SuccessRate   float64
	MinSizeFactor float64
	MaxSizeFactor float64
	Seed          uint64 // 0 seeds from the clock
}

// DefaultMockOptions mirrors the bundled configuration.
func DefaultMockOptions() MockOptions {
	return MockOptions{
		Steps:         20,
		StepDelay:     100 * time.Millisecond,
		SuccessRate:   0.95,
		MinSizeFactor: 0.7,
		MaxSizeFactor: 1.3,
	}
}

// MockOptionsFromConfig converts the [mock] config section.
func MockOptionsFromConfig(cfg shared.MockConfig) MockOptions {
	return MockOptions{
		Steps:         cfg.Steps,
		StepDelay:     cfg.StepDelay(),
		SuccessRate:   cfg.SuccessRate,
		MinSizeFactor: cfg.MinSizeFactor,
		MaxSizeFactor: cfg.MaxSizeFactor,
		Seed:          cfg.Seed,
	}
}

// MockEngine simulates the backend entirely in-process.
//
// Files are processed sequentially. File i of n reports progress inside (i/n*100, (i+1)/n*100], so its
// last step lands on the upper bound and the final report is exactly 100. Outputs are placeholders held in a [BlobStore].
type MockEngine struct {
	opts   MockOptions
	clock  Clock
	blobs  *BlobStore
	logger *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockEngine creates a mock engine. A nil clock uses the wall clock; nil blobs gets a private store.
func NewMockEngine(opts MockOptions, clock Clock, blobs *BlobStore, logger *log.Logger) *MockEngine {
	defaults := DefaultMockOptions()
	if opts.Steps <= 0 {
		opts.Steps = defaults.Steps
	}
	if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	if opts.MaxSizeFactor <= 0 || opts.MaxSizeFactor < opts.MinSizeFactor {
		opts.MinSizeFactor, opts.MaxSizeFactor = defaults.MinSizeFactor, defaults.MaxSizeFactor
	}
	if clock == nil {
		clock = RealClock()
	}
	if blobs == nil {
		blobs = NewBlobStore()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(clock.Now().UnixNano())
	}

	return &MockEngine{
		opts:   opts,
		clock:  clock,
		blobs:  blobs,
		logger: shared.WithLogger(logger, "engine", models.EngineMock),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// ConvertFiles simulates converting files from source to target.
func (m *MockEngine) ConvertFiles(ctx context.Context, files []FileEntry, source, target string, onProgress ProgressFunc) (*Outcome, error) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	n := len(files)
	total := n * m.opts.Steps
	results := make([]Result, 0, n)

	m.logger.Debug("simulating conversion", "files", n, "source", source, "target", target)

	for i, file := range files {
		for s := 1; s <= m.opts.Steps; s++ {
			if err := m.clock.Sleep(ctx, m.opts.StepDelay); err != nil {
				m.releaseAll(results)
				return nil, err
			}
			onProgress(float64(i*m.opts.Steps+s) / float64(total) * 100)
		}
		results = append(results, m.convertOne(file, source, target))
	}

	if n == 0 {
		onProgress(100)
	}

	ok, message := summarize(results)
	return &Outcome{Success: ok, Results: results, Message: message, Engine: models.EngineMock}, nil
}

func (m *MockEngine) convertOne(file FileEntry, source, target string) Result {
	m.mu.Lock()
	succeeded := m.rng.Float64() < m.opts.SuccessRate
	factor := m.opts.MinSizeFactor + m.rng.Float64()*(m.opts.MaxSizeFactor-m.opts.MinSizeFactor)
	m.mu.Unlock()

	name := shared.ReplaceExtension(file.Name, target)
	result := Result{OriginalFile: file, ConvertedFileName: name}

	if !succeeded {
		result.Error = fmt.Sprintf("Failed to convert %s", file.Name)
		return result
	}

	data, mediaType := placeholder(file.Name, name, source, target)
	result.Success = true
	result.Size = int64(float64(file.Size) * factor)
	result.DownloadURL = m.blobs.Put(name, mediaType, data)
	return result
}

func (m *MockEngine) releaseAll(results []Result) {
	for _, r := range results {
		if IsBlobURL(r.DownloadURL) {
			m.blobs.Release(r.DownloadURL)
		}
	}
}

// placeholder builds the stand-in content for a simulated output.
func placeholder(original, converted, source, target string) ([]byte, string) {
	source, target = catalog.Normalize(source), catalog.Normalize(target)
	text := fmt.Sprintf("FileAlchemy simulated conversion\n\nOriginal: %s\nConverted: %s\nConversion: %s -> %s\n",
		original, converted, source, target)

	if target == "PDF" {
		if data, err := placeholderPDF(text); err == nil {
			return data, "application/pdf"
		}
	}

	mediaType := mime.TypeByExtension("." + catalog.Extension(target))
	if mediaType == "" || !strings.HasPrefix(mediaType, "text/") {
		mediaType = "text/plain; charset=utf-8"
	}
	return []byte(text), mediaType
}

func placeholderPDF(text string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("FileAlchemy simulated conversion", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 6, text, "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

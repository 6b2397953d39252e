package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/shared"
)

func newMock(t *testing.T, opts MockOptions) (*MockEngine, *FakeClock, *BlobStore) {
	t.Helper()
	clock := NewFakeClock(epoch)
	blobs := NewBlobStore()
	return NewMockEngine(opts, clock, blobs, quietLogger()), clock, blobs
}

func TestMockEngine(t *testing.T) {
	opts := DefaultMockOptions()
	opts.Seed = 42

	t.Run("Progress Is Monotonic And Ends At 100", func(t *testing.T) {
		mock, clock, _ := newMock(t, opts)

		var seen []float64
		outcome, err := mock.ConvertFiles(context.Background(), sampleFiles("a.png", "b.png", "c.png"), "PNG", "JPG", func(p float64) {
			seen = append(seen, p)
		})
		if err != nil {
			t.Fatalf("ConvertFiles failed: %v", err)
		}

		if len(outcome.Results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(outcome.Results))
		}
		if len(seen) != 3*opts.Steps || clock.Sleeps() != 3*opts.Steps {
			t.Errorf("expected %d reports and sleeps, got %d and %d", 3*opts.Steps, len(seen), clock.Sleeps())
		}
		for i := 1; i < len(seen); i++ {
			if seen[i] < seen[i-1] {
				t.Fatalf("progress went backwards at %d: %v -> %v", i, seen[i-1], seen[i])
			}
		}
		if last := seen[len(seen)-1]; last != 100 {
			t.Errorf("expected final progress 100, got %v", last)
		}
		if outcome.Engine != models.EngineMock {
			t.Errorf("expected mock engine, got %q", outcome.Engine)
		}
	})

	t.Run("File Progress Stays In Its Slice", func(t *testing.T) {
		mock, _, _ := newMock(t, opts)

		var seen []float64
		mock.ConvertFiles(context.Background(), sampleFiles("a.png", "b.png"), "PNG", "JPG", func(p float64) {
			seen = append(seen, p)
		})

		for i, p := range seen[:opts.Steps-1] {
			if p >= 50 {
				t.Errorf("report %d of first file reached %v", i, p)
			}
		}
		if seen[opts.Steps-1] != 50 {
			t.Errorf("expected first file to finish at 50, got %v", seen[opts.Steps-1])
		}
		if seen[opts.Steps] <= 50 {
			t.Errorf("expected second file to start above 50, got %v", seen[opts.Steps])
		}
	})

	t.Run("Fixed Seed Is Deterministic", func(t *testing.T) {
		files := sampleFiles("a.png", "b.png", "c.png", "d.png", "e.png", "f.png", "g.png", "h.png")
		first, _, _ := newMock(t, opts)
		second, _, _ := newMock(t, opts)

		a, err := first.ConvertFiles(context.Background(), files, "PNG", "WEBP", nil)
		if err != nil {
			t.Fatal(err)
		}
		b, err := second.ConvertFiles(context.Background(), files, "PNG", "WEBP", nil)
		if err != nil {
			t.Fatal(err)
		}

		if len(a.Results) != len(files) || len(b.Results) != len(files) {
			t.Fatalf("expected %d results each", len(files))
		}
		for i := range a.Results {
			if a.Results[i].Success != b.Results[i].Success || a.Results[i].Size != b.Results[i].Size {
				t.Errorf("result %d differs between runs: %+v vs %+v", i, a.Results[i], b.Results[i])
			}
		}
		okA, _ := a.Counts()
		okB, _ := b.Counts()
		if okA != okB {
			t.Errorf("success counts differ: %d vs %d", okA, okB)
		}
	})

	t.Run("Default Rates Over A Large Batch", func(t *testing.T) {
		files := make([]FileEntry, 2000)
		for i := range files {
			files[i] = NewFileEntry(fmt.Sprintf("photo-%04d.png", i), bytes.Repeat([]byte("x"), 1000))
		}
		mock, _, _ := newMock(t, opts)

		outcome, err := mock.ConvertFiles(context.Background(), files, "PNG", "JPG", nil)
		if err != nil {
			t.Fatal(err)
		}

		ok, failed := outcome.Counts()
		if ok != 1901 || failed != 99 {
			t.Errorf("expected 1901 successes and 99 failures for seed 42, got %d and %d", ok, failed)
		}
		for i, r := range outcome.Results {
			if !r.Success {
				continue
			}
			if r.Size < 700 || r.Size > 1300 {
				t.Errorf("result %d: size %d outside [700, 1300]", i, r.Size)
			}
		}
	})

	t.Run("Successful Results", func(t *testing.T) {
		o := opts
		o.SuccessRate, o.MinSizeFactor, o.MaxSizeFactor = 1, 1, 1
		mock, _, blobs := newMock(t, o)

		files := sampleFiles("holiday.png", "scan.png")
		outcome, err := mock.ConvertFiles(context.Background(), files, "PNG", "JPG", nil)
		if err != nil {
			t.Fatal(err)
		}

		if !outcome.Success || outcome.Message != "Successfully converted 2 files" {
			t.Errorf("unexpected outcome %+v", outcome)
		}
		for i, r := range outcome.Results {
			if !r.Success || r.Error != "" || !IsBlobURL(r.DownloadURL) {
				t.Errorf("result %d: unexpected %+v", i, r)
			}
			if r.Size != files[i].Size {
				t.Errorf("result %d: expected size %d, got %d", i, files[i].Size, r.Size)
			}
			if r.OriginalFile.Name != files[i].Name {
				t.Errorf("result %d: original %q", i, r.OriginalFile.Name)
			}
		}
		if outcome.Results[0].ConvertedFileName != "holiday.jpg" {
			t.Errorf("expected holiday.jpg, got %q", outcome.Results[0].ConvertedFileName)
		}
		if blobs.Len() != 2 {
			t.Errorf("expected 2 blobs, got %d", blobs.Len())
		}
	})

	t.Run("Failed Results", func(t *testing.T) {
		o := opts
		o.SuccessRate = 0
		mock, _, blobs := newMock(t, o)

		outcome, err := mock.ConvertFiles(context.Background(), sampleFiles("a.png", "b.png"), "PNG", "JPG", nil)
		if err != nil {
			t.Fatal(err)
		}

		if outcome.Success || outcome.Message != "All 2 files failed to convert" {
			t.Errorf("unexpected outcome %+v", outcome)
		}
		if r := outcome.Results[0]; r.Success || r.Error != "Failed to convert a.png" || r.DownloadURL != "" {
			t.Errorf("unexpected failed result %+v", r)
		}
		if blobs.Len() != 0 {
			t.Errorf("expected no blobs, got %d", blobs.Len())
		}
	})

	t.Run("PDF Placeholder", func(t *testing.T) {
		o := opts
		o.SuccessRate = 1
		mock, _, blobs := newMock(t, o)

		outcome, err := mock.ConvertFiles(context.Background(), sampleFiles("notes.txt"), "TXT", "PDF", nil)
		if err != nil {
			t.Fatal(err)
		}

		blob, ok := blobs.Get(outcome.Results[0].DownloadURL)
		if !ok {
			t.Fatal("expected blob for result")
		}
		if blob.MediaType != "application/pdf" || !bytes.HasPrefix(blob.Data, []byte("%PDF")) {
			t.Errorf("expected PDF placeholder, got %q (%d bytes)", blob.MediaType, len(blob.Data))
		}
	})

	t.Run("Zero Files", func(t *testing.T) {
		mock, _, _ := newMock(t, opts)

		var last float64
		outcome, err := mock.ConvertFiles(context.Background(), nil, "PNG", "JPG", func(p float64) { last = p })
		if err != nil {
			t.Fatal(err)
		}
		if last != 100 || outcome.Success || outcome.Message != "No files were converted" {
			t.Errorf("unexpected zero-file outcome %+v (progress %v)", outcome, last)
		}
	})

	t.Run("Cancellation Releases Outputs", func(t *testing.T) {
		o := opts
		o.SuccessRate = 1
		mock, clock, blobs := newMock(t, o)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		clock.OnSleep = func(n int, _ time.Time) {
			if n == o.Steps+5 {
				cancel()
			}
		}

		outcome, err := mock.ConvertFiles(ctx, sampleFiles("a.png", "b.png"), "PNG", "JPG", nil)
		if !errors.Is(err, context.Canceled) || outcome != nil {
			t.Fatalf("expected cancellation, got %v, %+v", err, outcome)
		}
		if blobs.Len() != 0 {
			t.Errorf("expected blobs released, got %d", blobs.Len())
		}
	})
}

func TestMockOptionsFromConfig(t *testing.T) {
	cfg := shared.DefaultConfig().Mock
	opts := MockOptionsFromConfig(cfg)

	if opts.Steps != cfg.Steps || opts.StepDelay != cfg.StepDelay() || opts.SuccessRate != cfg.SuccessRate {
		t.Errorf("unexpected options %+v from %+v", opts, cfg)
	}
}

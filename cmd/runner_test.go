package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/desertthunder/filealchemy/internal/tasks"
	tu "github.com/desertthunder/filealchemy/internal/testing"
	"github.com/urfave/cli/v3"
)

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := shared.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "filealchemy.db")
	cfg.Downloads.OutputDir = filepath.Join(dir, "converted")
	cfg.Downloads.StaggerMS = 0
	cfg.Mock.SuccessRate = 1
	cfg.Mock.Seed = 1
	return cfg
}

func newTestRunner(t *testing.T, cfg *shared.Config, client *http.Client) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{
		Config:     cfg,
		HTTPClient: client,
		Clock:      tasks.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Logger:     shared.NewLogger(io.Discard),
		Output:     output,
	})
	return r, output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "filealchemy", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"filealchemy"}, args...))
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// fakeBackend serves the subset of the backend API exercised by the commands.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("POST /api/convert", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			http.Error(w, `{"error":"no file"}`, http.StatusBadRequest)
			return
		}
		file.Close()
		w.Write([]byte(`{"original_filename":"` + header.Filename + `","converted_filename":"note.pdf","download_url":"/api/download/note.pdf","size":8}`))
	})
	mux.HandleFunc("GET /api/download/{name}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("name") {
		case "note.pdf":
			w.Write([]byte("%PDF-1.4"))
		case "speech.wav":
			w.Write([]byte("RIFF"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("GET /api/tts/voices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"voices":[{"id":"v1","name":"Alice","gender":"female","languages":["en_US"],"index":0}]}`))
	})
	mux.HandleFunc("POST /api/tts/convert", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("invalid tts body: %v", err)
		}
		if body["rate"] != float64(400) {
			t.Errorf("expected clamped rate 400, got %v", body["rate"])
		}
		w.Write([]byte(`{"success":true,"filename":"speech.wav","size":4,"text_length":5}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.backend == nil || runner.tts == nil {
				t.Error("expected backend clients to be built")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient == nil || runner.clock == nil {
				t.Error("expected default client and clock")
			}
			if got := runner.backend.API().BaseURL(); got != runner.config.Backend.URL {
				t.Errorf("expected backend at %s, got %s", runner.config.Backend.URL, got)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"n": 1}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"n\":1}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes formatted text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello, %s!", "World"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "Hello, World!" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("writePlainln wraps in newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("done")
			if output.String() != "\ndone\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlain("test"); err == nil {
				t.Error("expected error for write failure")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		commands := runner.register()

		want := []string{"setup", "formats", "convert", "history", "prefs", "tts", "api", "serve", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %s, got %s", i, name, commands[i].Name)
			}
		}
	})
}

func TestRenderTable(t *testing.T) {
	t.Run("pads short rows", func(t *testing.T) {
		out := renderTable([]string{"A", "B"}, [][]string{{"x"}}, []columnAlignment{alignLeft, alignRight})
		if !strings.Contains(out, "A") || !strings.Contains(out, "x") {
			t.Errorf("unexpected table:\n%s", out)
		}
		if !strings.HasPrefix(out, "╭") {
			t.Errorf("expected rounded style, got:\n%s", out)
		}
	})

	t.Run("no headers", func(t *testing.T) {
		if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
			t.Errorf("expected empty output, got %q", out)
		}
	})

	t.Run("buffers are not terminals", func(t *testing.T) {
		if isTerminal(&bytes.Buffer{}) {
			t.Error("expected buffer not to be a terminal")
		}
	})
}

func TestFormatsCommand(t *testing.T) {
	t.Run("category table", func(t *testing.T) {
		r, output := newTestRunner(t, testConfig(t), nil)
		if err := run(r, "formats", "list", "--category", "documents"); err != nil {
			t.Fatalf("formats list failed: %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "Documents") || !strings.Contains(out, "DOCX, TXT, JPG, PNG") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if strings.Contains(out, "Images") {
			t.Errorf("expected only documents, got:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		r, output := newTestRunner(t, testConfig(t), nil)
		if err := run(r, "formats", "list", "--category", "archives", "--json"); err != nil {
			t.Fatalf("formats list failed: %v", err)
		}

		var listings []formatListing
		if err := json.Unmarshal(output.Bytes(), &listings); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(listings) != 5 || listings[0].Category != "archives" {
			t.Errorf("unexpected listings %+v", listings)
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		r, _ := newTestRunner(t, testConfig(t), nil)
		if err := run(r, "formats", "list", "--category", "fonts"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestConvertCommand(t *testing.T) {
	t.Run("mock batch saves results and records history", func(t *testing.T) {
		cfg := testConfig(t)
		r, output := newTestRunner(t, cfg, nil)

		a := writeInput(t, "a.png", "aaaa")
		b := writeInput(t, "b.png", "bbbbbbbb")

		if err := run(r, "convert", "run", "--target", "jpg", "--mock", a, b); err != nil {
			t.Fatalf("convert run failed: %v", err)
		}

		out := output.String()
		if !strings.Contains(out, "a.jpg") || !strings.Contains(out, "Saved 2 of 2 files") {
			t.Errorf("unexpected output:\n%s", out)
		}
		tu.AssertDirExists(t, cfg.Downloads.OutputDir)
		tu.AssertFileExists(t, filepath.Join(cfg.Downloads.OutputDir, "a.jpg"))
		tu.AssertFileExists(t, filepath.Join(cfg.Downloads.OutputDir, "b.jpg"))
		tu.AssertFileExists(t, filepath.Join(cfg.Downloads.OutputDir, tasks.ManifestName))

		output.Reset()
		if err := run(r, "history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if out := output.String(); !strings.Contains(out, "PNG → JPG") || !strings.Contains(out, "mock") {
			t.Errorf("expected recorded conversion, got:\n%s", out)
		}

		output.Reset()
		if err := run(r, "history", "export", "--format", "csv"); err != nil {
			t.Fatalf("history export failed: %v", err)
		}
		if out := output.String(); !strings.Contains(out, "images,PNG,JPG,2,2,0,mock") {
			t.Errorf("unexpected csv:\n%s", out)
		}

		output.Reset()
		if err := run(r, "history", "clear"); err != nil {
			t.Fatalf("history clear failed: %v", err)
		}
		if !strings.Contains(output.String(), "Cleared 1 entries") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("no-download json", func(t *testing.T) {
		cfg := testConfig(t)
		r, output := newTestRunner(t, cfg, nil)

		if err := run(r, "convert", "run", "-t", "pdf", "--mock", "--no-download", "--json", writeInput(t, "notes.txt", "hello")); err != nil {
			t.Fatalf("convert run failed: %v", err)
		}

		out := output.String()
		start := strings.Index(out, "{")
		if start < 0 {
			t.Fatalf("expected JSON job, got:\n%s", out)
		}
		var job tasks.Job
		if err := json.NewDecoder(strings.NewReader(out[start:])).Decode(&job); err != nil {
			t.Fatalf("invalid job JSON: %v", err)
		}
		if job.Status != tasks.JobCompleted || job.Engine != "mock" || len(job.Results) != 1 {
			t.Errorf("unexpected job %+v", job)
		}
		if _, err := os.Stat(cfg.Downloads.OutputDir); !os.IsNotExist(err) {
			t.Errorf("expected nothing saved, stat err %v", err)
		}
	})

	t.Run("missing files", func(t *testing.T) {
		r, _ := newTestRunner(t, testConfig(t), nil)
		if err := run(r, "convert", "run", "--target", "jpg", "--mock"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unsupported conversion", func(t *testing.T) {
		r, _ := newTestRunner(t, testConfig(t), nil)
		err := run(r, "convert", "run", "--target", "docx", "--mock", writeInput(t, "a.png", "x"))
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("single through backend", func(t *testing.T) {
		srv := fakeBackend(t)
		cfg := testConfig(t)
		cfg.Backend.URL = srv.URL + "/api"
		r, output := newTestRunner(t, cfg, srv.Client())

		if err := run(r, "convert", "single", "--target", "pdf", writeInput(t, "note.txt", "hello")); err != nil {
			t.Fatalf("convert single failed: %v", err)
		}

		dest := filepath.Join(cfg.Downloads.OutputDir, "note.pdf")
		if got := tu.MustReadFile(t, dest); got != "%PDF-1.4" {
			t.Errorf("unexpected content %q", got)
		}
		if !strings.Contains(output.String(), "note.txt → "+dest) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("single with unreachable backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Backend.URL = "http://backend.invalid/api"
		r, _ := newTestRunner(t, cfg, tu.Offline())

		err := run(r, "convert", "single", "--target", "pdf", writeInput(t, "note.txt", "hello"))
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestPrefsCommand(t *testing.T) {
	r, output := newTestRunner(t, testConfig(t), nil)

	if err := run(r, "prefs", "get", "dark_mode"); err != nil {
		t.Fatalf("prefs get failed: %v", err)
	}
	if !strings.Contains(output.String(), "dark_mode = false (default)") {
		t.Errorf("unexpected output %q", output.String())
	}

	output.Reset()
	if err := run(r, "prefs", "set", "dark_mode", "true"); err != nil {
		t.Fatalf("prefs set failed: %v", err)
	}

	output.Reset()
	if err := run(r, "prefs", "get", "dark_mode"); err != nil {
		t.Fatalf("prefs get failed: %v", err)
	}
	if !strings.Contains(output.String(), "dark_mode = true") {
		t.Errorf("unexpected output %q", output.String())
	}

	if err := run(r, "prefs", "set", "font_size", "12"); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if err := run(r, "prefs", "set", "dark_mode"); !errors.Is(err, shared.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestBackendCommands(t *testing.T) {
	srv := fakeBackend(t)
	cfg := testConfig(t)
	cfg.Backend.URL = srv.URL + "/api"

	t.Run("api health", func(t *testing.T) {
		r, output := newTestRunner(t, cfg, srv.Client())
		if err := run(r, "api", "health"); err != nil {
			t.Fatalf("api health failed: %v", err)
		}
		if !strings.Contains(output.String(), "✓ Backend available") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("api get", func(t *testing.T) {
		r, output := newTestRunner(t, cfg, srv.Client())
		if err := run(r, "api", "get", "/health"); err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if !strings.Contains(output.String(), `"status": "healthy"`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("api get error status", func(t *testing.T) {
		r, _ := newTestRunner(t, cfg, srv.Client())
		if err := run(r, "api", "get", "/missing"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("api post rejects invalid JSON", func(t *testing.T) {
		r, _ := newTestRunner(t, cfg, srv.Client())
		if err := run(r, "api", "post", "--data", "{nope", "/convert"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("tts voices", func(t *testing.T) {
		r, output := newTestRunner(t, cfg, srv.Client())
		if err := run(r, "tts", "voices"); err != nil {
			t.Fatalf("tts voices failed: %v", err)
		}
		if !strings.Contains(output.String(), "Alice") || !strings.Contains(output.String(), "en_US") {
			t.Errorf("unexpected output:\n%s", output.String())
		}
	})

	t.Run("tts speak clamps and downloads", func(t *testing.T) {
		r, output := newTestRunner(t, cfg, srv.Client())
		dir := t.TempDir()
		if err := run(r, "tts", "speak", "--text", "hello", "--rate", "900", "--output", dir); err != nil {
			t.Fatalf("tts speak failed: %v", err)
		}
		if got := tu.MustReadFile(t, filepath.Join(dir, "speech.wav")); got != "RIFF" {
			t.Errorf("unexpected audio %q", got)
		}
		if !strings.Contains(output.String(), "Saved speech") {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("tts preview limit", func(t *testing.T) {
		r, _ := newTestRunner(t, cfg, srv.Client())
		err := run(r, "tts", "preview", "--text", strings.Repeat("a", 501))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestProgressPrinter(t *testing.T) {
	output := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{Output: output})
	updates := make(chan tasks.ProgressUpdate, 16)

	for _, pct := range []float64{0, 10, 30, 55, 80, 100} {
		updates <- tasks.ProgressUpdate{Phase: tasks.Convert, Percent: pct, Message: "step"}
	}
	updates <- tasks.ProgressUpdate{Phase: tasks.Complete, Percent: 100, Message: "done"}

	stop := r.watchProgress(updates)
	stop()

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 6 || lines[5] != "done" {
		t.Errorf("expected five quarter lines and completion, got %q", lines)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/filealchemy/internal/services"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/desertthunder/filealchemy/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// ConvertRun converts a batch of files through the orchestrator and saves the results.
func (r *Runner) ConvertRun(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one file is required", shared.ErrMissingArgument)
	}

	files, err := loadFiles(paths)
	if err != nil {
		return err
	}

	source := cmd.String("source")
	if source == "" {
		source = files[0].Extension()
	}

	s := r.newSession(ctx, sessionOpts{mock: cmd.Bool("mock"), remote: cmd.Bool("probe")})
	defer s.Close()

	if cmd.Bool("probe") {
		r.writePlain("Backend: %s\n", s.smart.Probe(ctx))
	}

	if err := s.orch.SetConversion(cmd.String("category"), source, cmd.String("target")); err != nil {
		return err
	}
	if sel := s.orch.Selection(); !sel.Ready() {
		return fmt.Errorf("%w: cannot convert %s to %s", shared.ErrInvalidArgument, strings.ToUpper(source), strings.ToUpper(cmd.String("target")))
	}
	if err := s.orch.AddFiles(files...); err != nil {
		return err
	}

	stop := r.watchProgress(s.progress)
	err = s.orch.Convert(ctx)
	stop()
	if err != nil {
		return err
	}

	job, _ := s.orch.Job()
	if cmd.Bool("json") {
		if err := r.writeJSON(job, true); err != nil {
			return err
		}
	} else {
		r.writePlain("%s\n", resultsTable(job.Results))
	}

	ok, _ := tasks.CountResults(job.Results)
	if ok == 0 {
		return fmt.Errorf("%w: no files were converted", shared.ErrJobFailed)
	}
	if cmd.Bool("no-download") {
		return nil
	}

	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Downloads.OutputDir
	}

	stop = r.watchProgress(s.progress)
	summary, err := s.orch.DownloadAll(ctx, dir)
	stop()
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	r.writePlainln("Saved %d of %d files to %s", summary.Succeeded, summary.Total, summary.Directory)
	return nil
}

// ConvertSingle converts one file synchronously through the backend and saves it.
func (r *Runner) ConvertSingle(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file is required", shared.ErrMissingArgument)
	}

	file, err := tasks.LoadFile(path)
	if err != nil {
		return err
	}
	if file.Size > tasks.MaxFileSize {
		return fmt.Errorf("%w: %s is larger than %s", shared.ErrInvalidInput, file.Name, humanize.Bytes(uint64(tasks.MaxFileSize)))
	}

	data, err := file.Bytes()
	if err != nil {
		return err
	}

	source := cmd.String("source")
	if source == "" {
		source = file.Extension()
	}
	target := cmd.String("target")

	r.logger.Info("converting", "file", file.Name, "source", source, "target", target)

	result, err := r.backend.ConvertFile(ctx, services.File{Name: file.Name, Data: data}, source, target)
	if err != nil {
		if services.IsConnectivity(err) {
			return fmt.Errorf("backend at %s is not reachable: %w", r.config.Backend.URL, err)
		}
		return err
	}

	name := result.ConvertedFilename
	if name == "" {
		name = shared.ReplaceExtension(file.Name, target)
	}

	dir := cmd.String("output")
	if dir == "" {
		dir = r.config.Downloads.OutputDir
	}

	dest, n, err := r.saveRemote(ctx, result.DownloadURL, dir, name)
	if err != nil {
		return err
	}

	r.writePlain("✓ %s → %s (%s)\n", file.Name, dest, humanize.Bytes(uint64(n)))
	return nil
}

// saveRemote downloads url into dir/name and returns the written path and size.
func (r *Runner) saveRemote(ctx context.Context, url, dir, name string) (string, int64, error) {
	body, err := r.backend.Download(ctx, url)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return "", 0, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, n, nil
}

func loadFiles(paths []string) ([]tasks.FileEntry, error) {
	files := make([]tasks.FileEntry, 0, len(paths))
	for _, p := range paths {
		f, err := tasks.LoadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		files = append(files, f)
	}
	return files, nil
}

func resultsTable(results []tasks.Result) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		status, size := "✓", humanize.Bytes(uint64(res.Size))
		detail := res.ConvertedFileName
		if !res.Success {
			status, size, detail = "✗", "", res.Error
		}
		rows = append(rows, []string{status, res.OriginalFile.Name, detail, size})
	}
	return renderTable([]string{"", "File", "Result", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}

// watchProgress prints updates from the channel until the returned stop func is called.
//
// Terminals get a single rewritten line for the converting phase; other writers get one line per
// quarter of progress.
func (r *Runner) watchProgress(updates <-chan tasks.ProgressUpdate) func() {
	tty := isTerminal(r.output)
	quit := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		p := &progressPrinter{r: r, tty: tty, quarter: -1}
		for {
			select {
			case u := <-updates:
				p.print(u)
			case <-quit:
				for {
					select {
					case u := <-updates:
						p.print(u)
					default:
						p.finish()
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		wg.Wait()
	}
}

type progressPrinter struct {
	r       *Runner
	tty     bool
	quarter int
	inline  bool
}

func (p *progressPrinter) print(u tasks.ProgressUpdate) {
	if u.Phase == tasks.Convert {
		if p.tty {
			p.r.writePlain("\r%-60s", u.Message)
			p.inline = true
			return
		}
		if q := int(u.Percent) / 25; q > p.quarter {
			p.quarter = q
			p.r.writePlain("%s\n", u.Message)
		}
		return
	}

	p.finish()
	p.r.writePlain("%s\n", u.Message)
}

func (p *progressPrinter) finish() {
	if p.inline {
		p.r.writePlain("\n")
		p.inline = false
	}
}

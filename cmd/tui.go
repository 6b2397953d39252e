package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/repositories"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/desertthunder/filealchemy/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for converting files.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	files, err := loadFiles(cmd.Args().Slice())
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	mock := cmd.Bool("mock")
	s := r.newSession(ctx, sessionOpts{mock: mock, remote: !mock})
	defer s.Close()

	source := cmd.String("source")
	if source == "" && len(files) > 0 {
		source = files[0].Extension()
	}
	if err := s.orch.SetConversion(cmd.String("category"), source, cmd.String("target")); err != nil {
		return err
	}
	if len(files) > 0 {
		if err := s.orch.AddFiles(files...); err != nil {
			return err
		}
	}

	dark := false
	if s.db != nil {
		dark = repositories.NewPreferenceRepository(s.db).Bool(models.PrefDarkMode, false)
	}

	output := cmd.String("output")
	if output == "" {
		output = r.config.Downloads.OutputDir
	}

	model := ui.NewModel(ctx, s.orch, ui.Options{
		Updates:   s.progress,
		Notices:   s.sink,
		OutputDir: output,
		DarkMode:  dark,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

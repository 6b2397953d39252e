package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/formatter"
	"github.com/desertthunder/filealchemy/internal/repositories"
	"github.com/urfave/cli/v3"
)

func (r *Runner) historyRepository() (*repositories.HistoryRepository, func() error, error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewHistoryRepository(db, r.config.History.Limit), db.Close, nil
}

// HistoryList prints the most recent conversions.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.historyRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := repo.Recent(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.ExportToJSON(entries)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}

	if len(entries) == 0 {
		return r.writePlain("No conversions recorded.\n")
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.CreatedAt().Local().Format("2006-01-02 15:04"),
			catalog.Title(e.Category),
			e.Conversion(),
			strconv.Itoa(e.FileCount),
			strconv.Itoa(e.SuccessCount),
			strconv.Itoa(e.FailedCount),
			e.Engine,
		}
	}

	headers := []string{"Date", "Category", "Conversion", "Files", "OK", "Failed", "Engine"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
	return r.writePlain("%s\n", renderTable(headers, rows, aligns))
}

// HistoryExport writes the history as csv, markdown, txt or json, to a file or stdout.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.historyRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := repo.Recent(0)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteExport(entries, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("history exported", "path", path, "entries", len(entries))
		return r.writePlain("✓ Exported %d entries to %s\n", len(entries), path)
	}

	data, _, err := formatter.Export(entries, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// HistoryClear soft-deletes every history entry.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.historyRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return r.writePlain("✓ Cleared %d entries\n", n)
}

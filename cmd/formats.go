package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/filealchemy/internal/catalog"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/urfave/cli/v3"
)

type formatListing struct {
	Category string   `json:"category"`
	Source   string   `json:"source"`
	Targets  []string `json:"targets"`
}

// FormatsList prints the conversion catalog, optionally merged with the formats the backend declares.
func (r *Runner) FormatsList(ctx context.Context, cmd *cli.Command) error {
	cat := catalog.Default()
	if cmd.Bool("remote") {
		cat = r.remoteCatalog(ctx, cat)
	}

	names := cat.Categories()
	if category := strings.ToLower(strings.TrimSpace(cmd.String("category"))); category != "" {
		if !slices.Contains(names, category) {
			return fmt.Errorf("%w: unknown category %q (known: %s)", shared.ErrInvalidArgument, category, strings.Join(names, ", "))
		}
		names = []string{category}
	}

	var listings []formatListing
	for _, name := range names {
		for _, source := range cat.SourceFormats(name) {
			listings = append(listings, formatListing{Category: name, Source: source, Targets: cat.TargetFormats(source)})
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(listings, true)
	}

	rows := make([][]string, len(listings))
	for i, l := range listings {
		rows[i] = []string{catalog.Title(l.Category), l.Source, strings.Join(l.Targets, ", ")}
	}
	r.writePlain("%s\n", renderTable([]string{"Category", "From", "To"}, rows, nil))
	return nil
}

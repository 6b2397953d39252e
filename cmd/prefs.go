package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/filealchemy/internal/models"
	"github.com/desertthunder/filealchemy/internal/repositories"
	"github.com/desertthunder/filealchemy/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) preferenceRepository() (*repositories.PreferenceRepository, func() error, error) {
	db, err := r.openDatabase()
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewPreferenceRepository(db), db.Close, nil
}

// PrefsGet prints one preference. Unset known keys print their default.
func (r *Runner) PrefsGet(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("key")
	if key == "" {
		return fmt.Errorf("%w: key is required", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.preferenceRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := repo.Get(key)
	switch {
	case errors.Is(err, shared.ErrNotFound) && key == models.PrefDarkMode:
		return r.writePlain("%s = false (default)\n", key)
	case err != nil:
		return err
	}
	return r.writePlain("%s = %s\n", p.Key, p.Value)
}

// PrefsSet stores a preference.
func (r *Runner) PrefsSet(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return fmt.Errorf("%w: usage: prefs set KEY VALUE", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.preferenceRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := repo.Set(args.Get(0), args.Get(1))
	if err != nil {
		return err
	}
	return r.writePlain("✓ %s = %s\n", p.Key, p.Value)
}

// PrefsList prints every stored preference.
func (r *Runner) PrefsList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.preferenceRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	prefs, err := repo.List()
	if err != nil {
		return err
	}

	rows := make([][]string, len(prefs))
	for i, p := range prefs {
		rows[i] = []string{p.Key, p.Value, p.UpdatedAt.Local().Format("2006-01-02 15:04")}
	}
	return r.writePlain("%s\n", renderTable([]string{"Key", "Value", "Updated"}, rows, nil))
}

package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
)

// InitDB applies the embedded schema.
func (a *App) InitDB(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("database schema applied")
	return nil
}

// VerifyDB prints every public table with its row count.
func (a *App) VerifyDB(ctx context.Context, out io.Writer) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tables, err := store.ListTables(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		fmt.Fprintln(out, "no tables found; run init-db")
		return nil
	}

	counts, err := store.CountRows(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Table\tRows")
	for _, table := range tables {
		rows := "-"
		if n, ok := counts[table]; ok {
			rows = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(writer, "%s\t%s\n", table, rows)
	}
	return writer.Flush()
}

// CleanDB truncates all managed tables, or drops and recreates them.
func (a *App) CleanDB(ctx context.Context, opts CleanOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Recreate {
		if err := store.Recreate(ctx); err != nil {
			return err
		}
		a.Logger.Warn().Msg("tables dropped and recreated")
		return nil
	}

	if err := store.Truncate(ctx); err != nil {
		return err
	}
	a.Logger.Warn().Msg("tables truncated")
	return nil
}

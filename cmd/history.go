package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/scout/internal/history"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList lists recent queries, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openHistory()
	if err != nil {
		return err
	}

	entries, err := store.List(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}
	return r.printEntries(entries)
}

// HistorySearch searches past queries by text.
func (r *Runner) HistorySearch(ctx context.Context, cmd *cli.Command) error {
	term := cmd.StringArg("term")
	if term == "" {
		return fmt.Errorf("%w: term", shared.ErrMissingArgument)
	}

	store, err := r.openHistory()
	if err != nil {
		return err
	}

	entries, err := store.Search(term)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}
	return r.printEntries(entries)
}

func (r *Runner) printEntries(entries []history.Entry) error {
	if len(entries) == 0 {
		return r.writePlain("No entries.\n")
	}

	for _, e := range entries {
		if err := r.writePlain("%s  [%s]  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Status, e.Query); err != nil {
			return err
		}
		if err := r.writePlain("    task: %s\n", e.TaskID); err != nil {
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/scout/internal/research"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/desertthunder/scout/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI submits a query and follows it in the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/scout-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	req := research.Request{
		Query:      query,
		Depth:      cmd.String("depth"),
		MaxSources: int(cmd.Int("max-sources")),
	}

	job, err := r.controller().Start(ctx, req)
	if err != nil {
		return err
	}
	defer job.Close()

	model := ui.NewModel(ctx, job)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

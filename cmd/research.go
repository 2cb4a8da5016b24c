package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/scout/internal/research"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/urfave/cli/v3"
)

// ResearchRun submits a query and follows the task to completion, printing
// progress as it arrives from the poll loop and push stream.
func (r *Runner) ResearchRun(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

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

	r.writePlain("Research started (task %s)\n\n", job.TaskID())

	var lastStep string
	for update := range job.Updates() {
		switch update.Kind {
		case research.UpdateProgress:
			if update.Progress.CurrentStep != "" && update.Progress.CurrentStep != lastStep {
				lastStep = update.Progress.CurrentStep
				r.writePlain("▸ %s (%.0f%%)\n", lastStep, update.Progress.Percentage)
			}
		case research.UpdateSource:
			if update.Source != nil {
				r.writePlain("  • found: %s\n", update.Source.Title)
			}
		}
	}

	if err := job.Err(); err != nil {
		return err
	}
	if job.Status() == research.StatusCancelled {
		r.writePlain("\nResearch cancelled.\n")
		return nil
	}

	result := job.Result()
	if result == nil {
		r.writePlain("\nResearch finished in state %q with no report.\n", job.Status())
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	if path := cmd.String("output"); path != "" {
		if err := os.WriteFile(path, []byte(result.Report), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return r.writePlain("\n✓ Report written to %s\n", path)
	}

	r.writePlain("\n")
	r.writePlainHeader("Research Complete")
	r.writePlain("%s\n", result.Report)
	if len(result.Sources) > 0 {
		r.writePlain("\nSources:\n")
		for i, s := range result.Sources {
			r.writePlain("  %d. %s (%s)\n", i+1, s.Title, s.URL)
		}
	}
	return nil
}

// ResearchStatus fetches a one-shot status snapshot for a task.
func (r *Runner) ResearchStatus(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.StringArg("task-id")
	if taskID == "" {
		return fmt.Errorf("%w: task-id", shared.ErrMissingArgument)
	}

	status, snap, err := r.controller().Status(ctx, taskID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"taskId":   taskID,
			"status":   status,
			"progress": snap,
		}, cmd.Bool("pretty"))
	}

	r.writePlain("Task: %s\n", taskID)
	r.writePlain("Status: %s\n", status)
	r.writePlain("Progress: %.0f%%\n", snap.Percentage)
	if snap.CurrentStep != "" {
		r.writePlain("Current step: %s\n", snap.CurrentStep)
	}
	for _, step := range snap.StepsCompleted {
		r.writePlain("  ✓ %s\n", step)
	}
	if snap.SourcesFound > 0 {
		r.writePlain("Sources: %d found, %d processed\n", snap.SourcesFound, snap.SourcesProcessed)
	}
	return nil
}

// ResearchResult fetches the final report of a completed task.
func (r *Runner) ResearchResult(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.StringArg("task-id")
	if taskID == "" {
		return fmt.Errorf("%w: task-id", shared.ErrMissingArgument)
	}

	result, err := r.controller().Result(ctx, taskID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	if path := cmd.String("output"); path != "" {
		if err := os.WriteFile(path, []byte(result.Report), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return r.writePlain("✓ Report written to %s\n", path)
	}

	r.writePlain("%s\n", result.Report)
	return nil
}

// ResearchCancel cancels a running task and records the outcome locally.
func (r *Runner) ResearchCancel(ctx context.Context, cmd *cli.Command) error {
	taskID := cmd.StringArg("task-id")
	if taskID == "" {
		return fmt.Errorf("%w: task-id", shared.ErrMissingArgument)
	}

	if err := r.api.Delete(ctx, "/task/"+taskID); err != nil {
		return err
	}

	if store, err := r.openHistory(); err == nil {
		if err := store.UpdateStatus(taskID, string(research.StatusCancelled)); err != nil {
			r.logger.Debug("no history entry to update", "task_id", taskID, "error", err)
		}
	}

	return r.writePlain("✓ Task %s cancelled\n", taskID)
}

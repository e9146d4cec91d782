// Package app implements nozem's application layer: loading a monorepo's
// unit graph through ports.UnitLoader and driving a build through the
// scheduler, the same thin orchestration role the teacher's app layer plays
// over its own config loader and scheduler.
package app

import (
	"context"

	"go.nozem.dev/nozem/internal/core/ports"
	"go.nozem.dev/nozem/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// RunOptions mirrors the `build` CLI command's flags (spec.md §6).
type RunOptions struct {
	Concurrency int
	Bail        bool
	Downstream  bool
}

// App wires unit-graph loading to the build scheduler. It carries no build
// logic of its own; everything but exit-code-relevant logging belongs to
// the scheduler and the builder beneath it.
type App struct {
	loader    ports.UnitLoader
	scheduler *scheduler.Scheduler
	logger    ports.Logger
}

// New creates an App.
func New(loader ports.UnitLoader, sched *scheduler.Scheduler, logger ports.Logger) *App {
	return &App{loader: loader, scheduler: sched, logger: logger}
}

// Run loads the monorepo rooted at dir and builds targetNames. An empty
// targetNames builds the whole graph (spec.md §4.7: "no targets specified
// selects the entire graph"). The returned error is non-nil on any build
// failure, including an aborted bail-mode build, so the caller can map it
// directly to the CLI's exit code.
func (a *App) Run(ctx context.Context, dir string, targetNames []string, opts RunOptions) (scheduler.Result, error) {
	graph, err := a.loader.Load(dir)
	if err != nil {
		return scheduler.Result{}, zerr.Wrap(err, "failed to load configuration")
	}

	result, err := a.scheduler.Run(ctx, graph, scheduler.RunOptions{
		Targets:     targetNames,
		Concurrency: opts.Concurrency,
		Bail:        opts.Bail,
		Downstream:  opts.Downstream,
	})
	if err != nil {
		a.logger.Error("build failed",
			"succeeded", len(result.Succeeded),
			"failed", len(result.Failed),
			"pruned", result.Pruned,
		)
		return result, zerr.Wrap(err, "build execution failed")
	}

	a.logger.Info("build succeeded",
		"succeeded", len(result.Succeeded),
		"pruned", result.Pruned,
	)
	return result, nil
}

package app

import (
	"context"

	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/envcache"
	"github.com/vk/dwasgo/internal/scheduler"
	"github.com/vk/dwasgo/internal/subproc"
)

// Run executes the resolved plan, or prints the listing when one of the
// list modes is set. The returned error is nil only when every selected
// step succeeded.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.cfg.List || a.cfg.ListDependencies {
		a.list()
		return nil
	}

	if len(a.plan.Items) == 0 {
		a.logger.Warn("Nothing selected, execution not required.")
		return nil
	}

	cache := envcache.New(a.cfg.CachePath, &subproc.Manager{})
	if a.cfg.Clean {
		a.logger.Info("Clean run: every environment will be rebuilt.")
		cache.ForceRebuild()
	}

	a.logger.Info("Starting execution.", "steps", len(a.plan.Items), "jobs", a.cfg.Jobs)
	exec := scheduler.New(a.graph, a.plan, cache, scheduler.Options{
		Parallelism: a.cfg.Jobs,
		FailFast:    a.cfg.FailFast,
		UserArgs:    a.cfg.UserArgs,
		OutW:        a.outW,
		LogDir:      cache.LogDir(),
	})
	results, err := exec.Run(ctx)

	a.report(results)
	return err
}

// report logs one summary line per planned step, in plan order, then the
// overall tally.
func (a *App) report(results scheduler.Results) {
	for _, item := range a.plan.Items {
		res := results[item.Key]
		if res == nil {
			continue
		}
		switch res.Status {
		case scheduler.StatusSuccess:
			a.logger.Info("Step succeeded.", "step", item.Key, "duration", res.Duration)
		case scheduler.StatusFailed:
			a.logger.Error("Step failed.", "step", item.Key, "duration", res.Duration, "error", res.Err)
		case scheduler.StatusSkipped:
			a.logger.Warn("Step skipped.", "step", item.Key, "required", res.Because)
		case scheduler.StatusCancelled:
			a.logger.Warn("Step cancelled.", "step", item.Key)
		}
	}

	success, failed, skipped, cancelled := results.Tally()
	a.logger.Info("Run finished.",
		"success", success, "failed", failed, "skipped", skipped, "cancelled", cancelled)
}

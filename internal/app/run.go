package app

import (
	"context"
	"fmt"

	"github.com/vk/accgraph/internal/ctxlog"
	"github.com/vk/accgraph/internal/definition"
	"github.com/vk/accgraph/internal/engine"
	"github.com/vk/accgraph/internal/localengine"
	"github.com/vk/accgraph/internal/pipeline"
	"github.com/vk/accgraph/internal/remoteengine"
	"golang.org/x/sync/errgroup"
)

// Run loads the definitions, builds every pipeline concurrently and runs each
// one Iterations times on synthetic inputs.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	model, err := definition.Load(ctx, a.loaders, a.config.DefinitionPath)
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}
	if len(model.Pipelines) == 0 {
		a.logger.Warn("No pipelines found in definitions, nothing to run.")
		return nil
	}
	a.logger.Info("Definitions loaded.", "pipelines", len(model.Pipelines))

	eng, closeEngine, err := a.connectEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine()

	base := pipeline.DefaultConfig()
	g, gctx := errgroup.WithContext(ctx)
	for _, def := range model.Pipelines {
		if a.config.NoFuse {
			off := false
			def.AutoFuse = &off
		}
		g.Go(func() error {
			return a.runPipeline(gctx, def, base, eng)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("All pipelines finished.")
	return nil
}

func (a *App) connectEngine(ctx context.Context) (engine.Engine, func(), error) {
	if a.config.EngineURL == "" {
		a.logger.Debug("Using local engine.")
		return localengine.New(), func() {}, nil
	}
	eng, err := remoteengine.Dial(ctx, remoteengine.Options{
		URL:                a.config.EngineURL,
		Namespace:          a.config.EngineNamespace,
		InsecureSkipVerify: a.config.InsecureSkipVerify,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to engine: %w", err)
	}
	return eng, eng.Close, nil
}

func (a *App) runPipeline(ctx context.Context, def *definition.Pipeline, base pipeline.Config, eng engine.Engine) error {
	ctx = ctxlog.With(ctx, "pipeline", def.Name)
	logger := ctxlog.FromContext(ctx)

	inst, err := definition.Instantiate(ctx, def, base, eng)
	if err != nil {
		return err
	}
	a.track(def.Name, inst.Pipeline)
	plan := inst.Pipeline.Graph()
	logger.Info("Pipeline built.", "ops", plan.Ops())

	if a.config.PrintPlan {
		a.outMu.Lock()
		fmt.Fprintf(a.outW, "pipeline %q\n%s", def.Name, plan)
		a.outMu.Unlock()
	}

	for i := 1; i <= a.config.Iterations; i++ {
		outs, err := inst.Pipeline.Run(ctx, inst.SyntheticInputs())
		if err != nil {
			logger.Error("Run failed.", "iteration", i, "state", inst.Pipeline.State(), "error", err)
			return fmt.Errorf("pipeline %q, iteration %d: %w", def.Name, i, err)
		}
		for j, out := range outs {
			logger.Info("Run finished.",
				"iteration", i,
				"output", def.Outputs[j],
				"node", out.Name,
				"samples", out.Batch.Len(),
				"shape", out.Batch.Shape(),
			)
		}
	}
	return nil
}

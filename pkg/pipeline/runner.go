package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/observability"
	"github.com/fossensics/fossensics/pkg/stats"
)

// stageFunc runs one stage, reading and writing artifacts in dest.
type stageFunc func(ctx context.Context, dest string) error

// Inspect runs every stage over the build tree, writing the artifacts
// into destination, and returns the aggregated statistics.
//
// destination is created if needed. Stages run in order and
// unconditionally; the first fatal error aborts the run and is returned
// wrapped with the stage name. Artifacts written before the failure are
// left in place.
func (in *Inspector) Inspect(ctx context.Context, destination string) (res *Result, err error) {
	hooks := observability.Pipeline()
	start := time.Now()
	hooks.OnInspectStart(ctx, in.tree.Dir, destination)
	defer func() {
		hooks.OnInspectComplete(ctx, in.tree.Dir, destination, time.Since(start), err)
	}()

	if err := os.MkdirAll(destination, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create destination %s", destination)
	}

	res = &Result{Destination: destination}

	stages := []struct {
		name string
		run  stageFunc
	}{
		{StageCollectProgs, in.collectProgs},
		{StageCollectDeps, in.collectDeps},
		{StageCollectOrigins, in.collectOrigins},
		{StageRefineOrigins, in.refineOrigins},
		{StageCollectLicenses, in.collectLicenses},
		{StageComputeStats, func(_ context.Context, dest string) error {
			st, err := stats.Compute(dest)
			res.Statistics = st
			return err
		}},
	}

	for _, s := range stages {
		if err := in.runStage(ctx, s.name, s.run, destination, res); err != nil {
			return nil, err
		}
	}

	in.logger.Info("inspected build",
		"programs", res.Statistics.Programs,
		"packages", res.Statistics.Packages,
		"orphans", res.Statistics.Orphans,
		"undocumented", res.Statistics.Undocumented,
		"duration", time.Since(start).Round(time.Millisecond))

	return res, nil
}

func (in *Inspector) runStage(ctx context.Context, name string, run stageFunc, dest string, res *Result) error {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name)
	in.logger.Debug("starting stage", "stage", name)

	start := time.Now()
	err := run(ctx, dest)
	elapsed := time.Since(start)
	hooks.OnStageComplete(ctx, name, elapsed, err)

	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	res.Timings = append(res.Timings, StageTiming{Stage: name, Duration: elapsed})
	in.logger.Debug("finished stage", "stage", name, "duration", elapsed.Round(time.Millisecond))
	return nil
}

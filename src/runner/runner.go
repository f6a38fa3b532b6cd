// Package runner drives discovered builds through the executor one at a
// time and reports their outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sofmeright/dockerbuild/src/build"
	"github.com/sofmeright/dockerbuild/src/discover"
	"github.com/sofmeright/dockerbuild/src/output"
)

// ErrBuildsFailed is returned by Run when at least one build failed.
var ErrBuildsFailed = errors.New("builds failed")

// Executor runs a single build.
type Executor interface {
	Execute(ctx context.Context, b discover.Build) build.Result
}

// Runner executes builds sequentially.
type Runner struct {
	Executor Executor
	Printer  *output.Printer
	// Delay is waited before each real build.
	Delay time.Duration
	// Dry announces builds without executing them.
	Dry bool
	// Verbose prints an announcement block per Dockerfile.
	Verbose bool
	// Sleep waits for d or until ctx is done. Default: a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run announces and executes builds in order. Excluded builds are announced
// but never executed. A failed build does not stop the run; the results of
// executed builds are returned in order, with ErrBuildsFailed when any of
// them failed. In dry mode nothing is executed and no summary is printed.
func (r *Runner) Run(ctx context.Context, builds []discover.Build) ([]build.Result, error) {
	var results []build.Result

	for i, b := range builds {
		if r.Verbose {
			r.Printer.Announce(b, r.Dry)
		}
		if b.Excluded || r.Dry {
			continue
		}

		if r.Delay > 0 {
			if err := r.sleep(ctx, r.Delay); err != nil {
				return results, err
			}
		}

		section := fmt.Sprintf("build_%d", i+1)
		output.SectionStart(r.Printer.Writer, section, "Building "+b.Image)
		result := r.Executor.Execute(ctx, b)
		output.SectionEnd(r.Printer.Writer, section)

		// An interrupted build is not a result.
		if err := ctx.Err(); err != nil {
			return results, err
		}

		results = append(results, result)
		if !result.Succeeded {
			r.Printer.BuildFailed(result)
		} else if r.Verbose {
			r.Printer.Emit(output.SeverityInfo, "")
		}
	}

	if r.Dry {
		return results, nil
	}
	r.Printer.Summary(results)

	if failed := len(build.Failed(results)); failed > 0 {
		return results, fmt.Errorf("%w: %d of %d", ErrBuildsFailed, failed, len(results))
	}
	return results, nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package build

import (
	"errors"
	"os/exec"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/sofmeright/dockerbuild/src/discover"
)

// Result captures the outcome of a single build.
type Result struct {
	Build     discover.Build
	Succeeded bool
	Elapsed   time.Duration
	Err       error

	// Set when the image was inspected after a successful build.
	ImageID string
	Size    datasize.ByteSize
}

// ExitCode returns the build process's exit code, or -1 when the process
// did not exit normally or never started.
func (r Result) ExitCode() int {
	if r.Succeeded {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(r.Err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Failed returns the results that did not succeed, in order.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}

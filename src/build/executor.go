// Package build runs the build command of a discovered Dockerfile.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/dockerbuild/src/discover"
)

var errEmptyCommand = errors.New("empty build command")

// Executor runs build commands as child processes, streaming their output.
type Executor struct {
	Stdout io.Writer
	Stderr io.Writer
	// Inspector, when set, looks up the built image after a successful build.
	Inspector Inspector
	Log       logrus.FieldLogger
}

// NewExecutor creates an Executor writing to the process's stdout and stderr.
func NewExecutor() *Executor {
	return &Executor{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Execute runs the build command with the Dockerfile's directory as the
// working directory. A build whose process cannot be started, exits
// non-zero or is killed is reported as failed; Execute never panics on
// build failures.
func (x *Executor) Execute(ctx context.Context, b discover.Build) Result {
	start := time.Now()
	result := Result{Build: b}

	if len(b.Command) == 0 {
		result.Err = errEmptyCommand
		return result
	}

	x.log().WithFields(logrus.Fields{
		"dir":     b.Dir,
		"command": strings.Join(b.Command, " "),
	}).Debug("exec")

	cmd := exec.CommandContext(ctx, b.Command[0], b.Command[1:]...)
	cmd.Dir = b.Dir
	cmd.Stdout = x.Stdout
	cmd.Stderr = x.Stderr

	err := cmd.Run()
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Err = fmt.Errorf("%s build failed: %w", b.Command[0], err)
		return result
	}
	result.Succeeded = true

	if x.Inspector != nil {
		info, err := x.Inspector.Inspect(ctx, b.Image)
		if err != nil {
			x.log().WithError(err).WithField("image", b.Image).Debug("inspecting built image")
		} else {
			result.ImageID = info.ID
			result.Size = info.Size
		}
	}
	return result
}

func (x *Executor) log() logrus.FieldLogger {
	if x.Log != nil {
		return x.Log
	}
	return logrus.StandardLogger()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sofmeright/dockerbuild/src/build"
	"github.com/sofmeright/dockerbuild/src/config"
	"github.com/sofmeright/dockerbuild/src/discover"
	"github.com/sofmeright/dockerbuild/src/output"
	"github.com/sofmeright/dockerbuild/src/runner"
)

var (
	cfgFile string
	debug   bool
	cfg     *config.Config

	noVerbose    bool
	dryRun       bool
	sleepSeconds int
	junitPath    string
	badgePath    string
	noInspect    bool
)

var rootCmd = &cobra.Command{
	Use:   "dockerbuild-images [ROOT...]",
	Short: "Build every Dockerfile in a repository",
	Long: `Discover Dockerfiles below the configured roots and build them one at a time.

Configuration is read from dockerbuild.yml in the working directory.
ROOT arguments replace the directories the configuration implies.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(debug)

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return configError(err)
		}
		for _, w := range cfg.Warnings() {
			logger.Warn(w)
		}
		return nil
	},
	Args:          cobra.ArbitraryArgs,
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: dockerbuild.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging to stderr")

	rootCmd.Flags().BoolVar(&noVerbose, "no-verbose", false, "do not announce each Dockerfile")
	rootCmd.Flags().BoolVar(&dryRun, "dry", false, "show only what would be built")
	rootCmd.Flags().IntVar(&sleepSeconds, "sleep", 2, "seconds to wait before each build")
	rootCmd.Flags().StringVar(&junitPath, "junit", "", "write a JUnit XML report to this path")
	rootCmd.Flags().StringVar(&badgePath, "badge", "", "write an SVG build status badge to this path")
	rootCmd.Flags().BoolVar(&noInspect, "no-inspect", false, "skip image inspection after builds")
}

// UsageError marks errors caused by the invocation or configuration rather
// than by a build.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

func configError(err error) error {
	var verr *config.ValidationError
	if errors.Is(err, config.ErrNotFound) || errors.As(err, &verr) {
		return &UsageError{Err: err}
	}
	return fmt.Errorf("loading config: %w", err)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	builds, err := discoverBuilds(ctx, args)
	if err != nil {
		return err
	}
	logger.WithField("count", len(builds)).Debug("discovered builds")

	executor := build.NewExecutor()
	executor.Log = logger
	if !noInspect && !dryRun {
		inspector, err := build.NewDockerInspector()
		if err != nil {
			logger.WithError(err).Debug("image inspection disabled")
		} else {
			defer inspector.Close()
			executor.Inspector = inspector
		}
	}

	r := &runner.Runner{
		Executor: executor,
		Printer:  output.NewPrinter(),
		Delay:    time.Duration(sleepSeconds) * time.Second,
		Dry:      dryRun,
		Verbose:  !noVerbose,
	}
	if dryRun {
		r.Delay = 0
	}

	start := time.Now()
	results, runErr := r.Run(ctx, builds)
	elapsed := time.Since(start)

	if dryRun {
		return runErr
	}
	if junitPath != "" {
		if err := output.WriteJUnit(junitPath, results, elapsed); err != nil {
			return errors.Join(runErr, fmt.Errorf("writing junit report: %w", err))
		}
	}
	if badgePath != "" {
		if err := output.WriteBadge(badgePath, results); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

// discoverBuilds runs discovery over the command-line roots, or the
// configured roots when none are given.
func discoverBuilds(ctx context.Context, args []string) ([]discover.Build, error) {
	roots := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		roots = append(roots, abs)
	}

	engine, err := discover.NewEngine(cfg, roots)
	if err != nil {
		return nil, err
	}
	engine.Log = logger
	return engine.Discover(ctx)
}

// setupLogging configures the diagnostic logger. User-facing output never
// goes through it.
func setupLogging(debug bool) {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
}

var logger = logrus.New()

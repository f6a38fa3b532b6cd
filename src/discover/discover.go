// Package discover finds Dockerfiles under a set of root directories and
// resolves each one into a build plan using the configured image entries.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/dockerbuild/src/config"
)

// Build is one discovered Dockerfile together with its resolved image name
// and the command that builds it.
type Build struct {
	// Root is the directory containing the Dockerfile, relative to the
	// project directory.
	Root string
	// Dir is the absolute form of Root. Builds run with Dir as working directory.
	Dir string
	// Dockerfile is the file name within Root.
	Dockerfile string
	// Image is the resolved image reference passed to --tag.
	Image string
	// Command is the full build invocation, executable first.
	Command []string
	// Excluded builds are announced but never executed.
	Excluded bool
	// Entry is the index of the matched entry, or -1 when no entry applied.
	Entry int
}

// Path returns the absolute path of the Dockerfile.
func (b Build) Path() string {
	return filepath.Join(b.Dir, b.Dockerfile)
}

// Key identifies a build for deduplication.
type Key struct {
	Root       string
	Dockerfile string
	Image      string
}

// Key returns the deduplication key of b.
func (b Build) Key() Key {
	return Key{Root: b.Root, Dockerfile: b.Dockerfile, Image: b.Image}
}

// RootError reports a root directory that cannot be walked.
type RootError struct {
	Root string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("root %q: %v", e.Root, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

var errNotDirectory = errors.New("not a directory")

// vcsDirs are never descended into.
var vcsDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
	".bzr": true,
}

// Engine walks roots and resolves Dockerfiles against entries.
// An Engine is not safe for concurrent use.
type Engine struct {
	// Roots are the directories to walk, relative to Base or absolute.
	Roots []string
	// Entries are the flattened configuration entries, in declaration order.
	Entries []config.Entry
	// Explicit enables per-directory matching of entries with a path.
	Explicit bool
	// Builder is the build executable. Default: docker.
	Builder string
	// Ignore lists directory globs to skip.
	Ignore []string
	// GitIgnore skips paths ignored by the repository's .gitignore files.
	GitIgnore bool
	// Env is consulted before the process environment when expanding
	// ${VAR} references in args and build args.
	Env map[string]string
	// Vars are the template values for {branch} and {sha}. Resolved from
	// the repository at Base on first use when nil.
	Vars *Vars
	// Base is the project directory. Default: the working directory.
	Base string
	// Log receives debug output. Default: the standard logrus logger.
	Log logrus.FieldLogger
}

// NewEngine returns an Engine configured from cfg. Non-empty roots replace
// the roots the configuration implies.
func NewEngine(cfg *config.Config, roots []string) (*Engine, error) {
	env, err := cfg.Env()
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		roots = cfg.Roots()
	}
	return &Engine{
		Roots:     roots,
		Entries:   cfg.EntriesRecursive(),
		Explicit:  len(cfg.Paths()) > 0,
		Builder:   cfg.Builder,
		Ignore:    cfg.Ignore,
		GitIgnore: cfg.GitIgnore,
		Env:       env,
		Base:      cfg.Dir,
	}, nil
}

// Discover is a convenience wrapper running an Engine with default settings.
func Discover(ctx context.Context, roots []string, entries []config.Entry, explicit bool) ([]Build, error) {
	e := &Engine{Roots: roots, Entries: entries, Explicit: explicit}
	return e.Discover(ctx)
}

// Discover collects every build All yields. On error the builds found so far
// are returned alongside it.
func (e *Engine) Discover(ctx context.Context) ([]Build, error) {
	var builds []Build
	for b, err := range e.All(ctx) {
		if err != nil {
			return builds, err
		}
		builds = append(builds, b)
	}
	return builds, nil
}

// All lazily yields builds root by root in lexicographic walk order.
// Duplicates (same root, Dockerfile and image) are yielded once, at their
// first occurrence. Every root is checked before the first build is yielded,
// so a missing root fails with a *RootError and nothing else. Iteration stops
// after the first error.
func (e *Engine) All(ctx context.Context) iter.Seq2[Build, error] {
	return func(yield func(Build, error) bool) {
		base, err := e.base()
		if err != nil {
			yield(Build{}, err)
			return
		}
		roots, err := e.resolveRoots(base)
		if err != nil {
			yield(Build{}, err)
			return
		}

		seen := make(map[Key]bool)
		for _, root := range roots {
			found, err := e.walk(ctx, base, root)
			if err != nil {
				yield(Build{}, err)
				return
			}
			for _, loc := range found {
				b, err := e.resolve(base, loc)
				if err != nil {
					yield(Build{}, err)
					return
				}
				if seen[b.Key()] {
					e.log().WithField("dockerfile", b.Path()).Debug("skipping duplicate build")
					continue
				}
				seen[b.Key()] = true
				if !yield(b, nil) {
					return
				}
			}
		}
	}
}

func (e *Engine) base() (string, error) {
	if e.Base != "" {
		return filepath.Abs(e.Base)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return wd, nil
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// resolveRoots makes every root absolute and checks it is a directory.
func (e *Engine) resolveRoots(base string) ([]string, error) {
	roots := e.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}

	out := make([]string, 0, len(roots))
	for _, root := range roots {
		abs := root
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(base, root)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, &RootError{Root: root, Err: err}
		}
		if !info.IsDir() {
			return nil, &RootError{Root: root, Err: errNotDirectory}
		}
		out = append(out, filepath.Clean(abs))
	}
	return out, nil
}

// location is a Dockerfile found by walk.
type location struct {
	rel   string // directory relative to base
	abs   string // absolute directory
	name  string // file name
	named string // directory image names derive from
}

// walk returns the Dockerfiles below root in lexicographic order.
func (e *Engine) walk(ctx context.Context, base, root string) ([]location, error) {
	var ignorer *gitIgnorer
	if e.GitIgnore {
		ignorer = newGitIgnorer(root, e.log())
	}

	var found []location
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				e.log().WithError(err).WithField("dir", path).Warn("skipping unreadable directory")
				return filepath.SkipDir
			}
			return err
		}

		rel := relativeTo(base, path)
		if d.IsDir() {
			if path != root && e.skipDir(rel, d.Name(), path, ignorer) {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsDockerfileName(d.Name()) || !isRegularFile(path, d) {
			return nil
		}
		if ignorer.Ignored(path, false) {
			e.log().WithField("dockerfile", path).Debug("skipping gitignored Dockerfile")
			return nil
		}

		found = append(found, location{
			rel:   filepath.Dir(rel),
			abs:   filepath.Dir(path),
			name:  d.Name(),
			named: namingPath(root, filepath.Dir(rel), filepath.Dir(path)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return found, nil
}

func (e *Engine) skipDir(rel, name, path string, ignorer *gitIgnorer) bool {
	if vcsDirs[name] {
		return true
	}
	if pattern, ok := matchIgnore(e.Ignore, filepath.ToSlash(rel)); ok {
		e.log().WithFields(logrus.Fields{"dir": rel, "pattern": pattern}).Debug("skipping ignored directory")
		return true
	}
	if ignorer.Ignored(path, true) {
		e.log().WithField("dir", rel).Debug("skipping gitignored directory")
		return true
	}
	return false
}

// IsDockerfileName reports whether name is "Dockerfile" or "Dockerfile.<suffix>".
func IsDockerfileName(name string) bool {
	return name == "Dockerfile" || (strings.HasPrefix(name, "Dockerfile.") && len(name) > len("Dockerfile."))
}

// dockerfileSuffix returns the part after "Dockerfile.", or "".
func dockerfileSuffix(name string) string {
	return strings.TrimPrefix(strings.TrimPrefix(name, "Dockerfile"), ".")
}

// isRegularFile accepts regular files and symlinks resolving to one.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// namingPath returns the directory an image name derives from. Inside base
// that is rel; outside it the path below the walk root, or the root's own
// name for the root itself.
func namingPath(root, rel, dir string) string {
	if !filepath.IsAbs(rel) {
		return rel
	}
	sub, err := filepath.Rel(root, dir)
	if err != nil || sub == "." {
		return filepath.Base(root)
	}
	return sub
}

// relativeTo returns path relative to base, or path itself when it lies
// outside base.
func relativeTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

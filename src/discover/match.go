package discover

import (
	"maps"
	"path/filepath"
	"slices"

	"github.com/sofmeright/dockerbuild/src/config"
)

const defaultBuilder = "docker"

// match returns the entry that applies to a Dockerfile in dir. Explicit
// entries win over the first recursive entry; -1 means none applied.
func (e *Engine) match(dir, name string) (config.Entry, int) {
	if e.Explicit {
		for i, entry := range e.Entries {
			if entry.Recursive() || filepath.Clean(filepath.FromSlash(entry.Path)) != dir {
				continue
			}
			if entry.Dockerfile != "" {
				if ok, _ := filepath.Match(entry.Dockerfile, name); !ok {
					continue
				}
			}
			return entry, i
		}
	}
	for i, entry := range e.Entries {
		if entry.Recursive() {
			return entry, i
		}
	}
	return config.Entry{}, -1
}

// resolve turns a found Dockerfile into a Build.
func (e *Engine) resolve(base string, loc location) (Build, error) {
	entry, idx := e.match(loc.rel, loc.name)

	image, err := e.imageName(base, loc, entry)
	if err != nil {
		return Build{}, err
	}

	return Build{
		Root:       loc.rel,
		Dir:        loc.abs,
		Dockerfile: loc.name,
		Image:      image,
		Command:    e.command(entry, loc.name, image),
		Excluded:   entry.Excluded(),
		Entry:      idx,
	}, nil
}

// command assembles the build invocation:
//
//	<builder> build --file <dockerfile> <args...> [--build-arg K=V...] --tag <image> <context>
//
// Build args are emitted in key order.
func (e *Engine) command(entry config.Entry, dockerfile, image string) []string {
	builder := e.Builder
	if builder == "" {
		builder = defaultBuilder
	}

	cmd := []string{builder, "build", "--file", dockerfile}
	for _, arg := range entry.Args {
		cmd = append(cmd, config.Expand(arg, e.Env))
	}
	for _, key := range slices.Sorted(maps.Keys(entry.BuildArgs)) {
		cmd = append(cmd, "--build-arg", key+"="+config.Expand(entry.BuildArgs[key], e.Env))
	}

	context := entry.Context
	if context == "" {
		context = "."
	}
	return append(cmd, "--tag", image, context)
}

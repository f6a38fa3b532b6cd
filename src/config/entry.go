package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Entry is one configured rule describing how to build one or more
// Dockerfiles. An entry without a path is a recursive entry: it applies to
// every Dockerfile no explicit entry claims.
type Entry struct {
	// Path is the Dockerfile directory, relative to the project root.
	// Nested entries are relative to their parent.
	Path string `yaml:"path" toml:"path"`

	// ImageName is the image tag. Supports {branch}, {sha} and {suffix}.
	// Derived from the directory when empty.
	ImageName string `yaml:"image_name" toml:"image_name"`

	// Args are extra build tool arguments placed before the tag.
	Args StringList `yaml:"args" toml:"args"`

	// BuildArgs are rendered as --build-arg KEY=VALUE in key order.
	BuildArgs map[string]string `yaml:"build_args" toml:"build_args"`

	// Dockerfile restricts the entry to Dockerfiles whose name matches this
	// glob, e.g. "Dockerfile.prod".
	Dockerfile string `yaml:"dockerfile" toml:"dockerfile"`

	// Context is the build context relative to the Dockerfile directory.
	Context string `yaml:"context" toml:"context"`

	// Exclude lists the Dockerfile but skips building it.
	Exclude *bool `yaml:"exclude" toml:"exclude"`

	// Images are nested entries inheriting args, build_args, context and
	// exclude from this one.
	Images []Entry `yaml:"images" toml:"images"`
}

// Recursive reports whether the entry has no path.
func (e Entry) Recursive() bool {
	return e.Path == ""
}

// Excluded reports whether the entry excludes its Dockerfiles.
func (e Entry) Excluded() bool {
	return e.Exclude != nil && *e.Exclude
}

// StringList accepts either a YAML sequence or a single whitespace-separated
// string:
//
//	args: ["--pull", "--no-cache"]
//	args: --pull --no-cache
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var str string
		if err := value.Decode(&str); err != nil {
			return err
		}
		*s = strings.Fields(str)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return fmt.Errorf("line %d: args: expected string or list, got YAML kind %d", value.Line, value.Kind)
}

// EntriesRecursive flattens nested entries into one ordered list (parent
// before children) with inheritance applied and child paths joined onto
// their parent's.
func (c *Config) EntriesRecursive() []Entry {
	var out []Entry

	var walk func(entries []Entry, parent *Entry)
	walk = func(entries []Entry, parent *Entry) {
		for _, e := range entries {
			flat := e.inherit(parent)
			out = append(out, flat)
			walk(e.Images, &flat)
		}
	}
	walk(c.Images, nil)

	return out
}

// inherit returns a copy of e with parent defaults applied. The result never
// shares slices or maps with the configuration.
func (e Entry) inherit(parent *Entry) Entry {
	flat := Entry{
		Path:       cleanPath(e.Path),
		ImageName:  e.ImageName,
		Args:       slices.Clone(e.Args),
		BuildArgs:  lo.Assign(e.BuildArgs),
		Dockerfile: e.Dockerfile,
		Context:    e.Context,
		Exclude:    e.Exclude,
	}
	if parent == nil {
		return flat
	}

	if flat.Path != "" {
		flat.Path = cleanPath(filepath.Join(parent.Path, e.Path))
	}
	flat.Args = append(slices.Clone(parent.Args), e.Args...)
	flat.BuildArgs = lo.Assign(parent.BuildArgs, e.BuildArgs)
	if flat.Context == "" {
		flat.Context = parent.Context
	}
	if flat.Exclude == nil {
		flat.Exclude = parent.Exclude
	}
	return flat
}

// Paths returns the distinct explicit entry paths in declaration order.
func (c *Config) Paths() []string {
	return lo.Uniq(lo.FilterMap(c.EntriesRecursive(), func(e Entry, _ int) (string, bool) {
		return e.Path, e.Path != ""
	}))
}

// HasRecursive reports whether any entry is a recursive entry.
func (c *Config) HasRecursive() bool {
	return lo.ContainsBy(c.EntriesRecursive(), Entry.Recursive)
}

// Roots returns the directories discovery walks: the explicit entry paths,
// plus "." when a recursive entry exists. A config without paths scans ".".
func (c *Config) Roots() []string {
	paths := c.Paths()
	if len(paths) == 0 {
		return []string{"."}
	}
	if c.HasRecursive() && !slices.Contains(paths, ".") {
		paths = append(paths, ".")
	}
	return paths
}

// cleanPath normalizes a configured path to OS separators without a leading "./".
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(filepath.FromSlash(p))
}

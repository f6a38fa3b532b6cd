package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/distribution/reference"

	"github.com/sofmeright/dockerbuild/src/version"
)

// templateVars are the placeholders accepted in image_name.
var templateVars = []string{"{branch}", "{sha}", "{suffix}"}

// HasTemplate reports whether an image name contains template placeholders.
func HasTemplate(name string) bool {
	for _, v := range templateVars {
		if strings.Contains(name, v) {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a parsed Config.
// Returns warnings (soft issues) and a *ValidationError if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Top level ─────────────────────────────────────────────────────────

	if cfg.Version != 0 && cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("version: must be 1, got %d", cfg.Version))
	}

	if cfg.Requires != "" {
		if msg := checkRequires(cfg.Requires); msg != "" {
			errs = append(errs, msg)
		}
	}

	if strings.ContainsAny(cfg.Builder, " \t\n") {
		errs = append(errs, fmt.Sprintf("builder: %q must be a single executable (use args for flags)", cfg.Builder))
	}

	for i, pattern := range cfg.Ignore {
		if pattern == "" {
			errs = append(errs, fmt.Sprintf("ignore[%d]: pattern is empty", i))
			continue
		}
		if _, err := filepath.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
			errs = append(errs, fmt.Sprintf("ignore[%d]: invalid pattern %q: %v", i, pattern, err))
		}
	}

	// ── Images ────────────────────────────────────────────────────────────

	v := &entryValidator{seen: map[string]string{}}
	v.entries(cfg.Images, "images", "", false)
	errs = append(errs, v.errs...)
	warnings = append(warnings, v.warnings...)

	if len(cfg.Images) == 0 {
		warnings = append(warnings, "images: no entries; every Dockerfile is built with derived names")
	}

	if len(errs) > 0 {
		return warnings, &ValidationError{Problems: errs}
	}
	return warnings, nil
}

// checkRequires validates the requires constraint against the running version.
func checkRequires(requires string) string {
	constraint, err := semver.NewConstraint(requires)
	if err != nil {
		return fmt.Sprintf("requires: invalid version constraint %q: %v", requires, err)
	}
	if version.IsDev() {
		return ""
	}
	current, err := semver.NewVersion(version.Version)
	if err != nil {
		return ""
	}
	if !constraint.Check(current) {
		return fmt.Sprintf("requires: dockerbuild-images %s does not satisfy %q", current, requires)
	}
	return ""
}

type entryValidator struct {
	errs      []string
	warnings  []string
	recursive string            // field path of the first recursive entry
	seen      map[string]string // path+dockerfile → field path of first entry
}

func (v *entryValidator) entries(entries []Entry, prefix, parentPath string, nested bool) {
	for i, e := range entries {
		path := fmt.Sprintf("%s[%d]", prefix, i)

		fullPath := cleanPath(e.Path)
		if e.Path != "" && parentPath != "" {
			fullPath = cleanPath(filepath.Join(parentPath, e.Path))
		}

		switch {
		case e.Path == "" && nested:
			v.errs = append(v.errs, fmt.Sprintf("%s: path is required for nested images", path))
		case e.Path == "":
			if len(e.Images) > 0 {
				v.errs = append(v.errs, fmt.Sprintf("%s: nested images require a parent path", path))
			}
			if v.recursive != "" {
				v.warnings = append(v.warnings, fmt.Sprintf("%s: additional recursive entry ignored (%s applies)", path, v.recursive))
			} else {
				v.recursive = path
			}
			if e.Dockerfile != "" {
				v.errs = append(v.errs, fmt.Sprintf("%s.dockerfile: selector requires a path", path))
			}
			if e.ImageName != "" && !strings.Contains(e.ImageName, "{suffix}") {
				v.warnings = append(v.warnings, fmt.Sprintf("%s: image_name on a recursive entry gives every image the same name", path))
			}
		default:
			v.errs = append(v.errs, validatePath(e.Path, fullPath, path)...)
			key := fullPath + "\x00" + e.Dockerfile
			if first, ok := v.seen[key]; ok {
				v.warnings = append(v.warnings, fmt.Sprintf("%s: duplicate path %q ignored (%s applies)", path, fullPath, first))
			} else {
				v.seen[key] = path
			}
		}

		if e.ImageName != "" && !HasTemplate(e.ImageName) {
			if _, err := reference.ParseNormalizedNamed(e.ImageName); err != nil {
				v.errs = append(v.errs, fmt.Sprintf("%s.image_name: invalid image reference %q: %v", path, e.ImageName, err))
			}
		}

		if e.Dockerfile != "" {
			if strings.ContainsAny(e.Dockerfile, `/\`) {
				v.errs = append(v.errs, fmt.Sprintf("%s.dockerfile: %q must be a file name, not a path", path, e.Dockerfile))
			} else if _, err := filepath.Match(e.Dockerfile, ""); err != nil {
				v.errs = append(v.errs, fmt.Sprintf("%s.dockerfile: invalid pattern %q: %v", path, e.Dockerfile, err))
			}
		}

		if e.Context != "" && filepath.IsAbs(e.Context) {
			v.errs = append(v.errs, fmt.Sprintf("%s.context: %q must be relative to the Dockerfile directory", path, e.Context))
		}

		for key := range e.BuildArgs {
			if key == "" || strings.ContainsAny(key, "= \t") {
				v.errs = append(v.errs, fmt.Sprintf("%s.build_args: invalid key %q", path, key))
			}
		}

		if len(e.Images) > 0 && e.Path != "" {
			v.entries(e.Images, path+".images", fullPath, true)
		}
	}
}

// validatePath checks that an entry path stays inside the project.
func validatePath(p, full, field string) []string {
	if filepath.IsAbs(p) {
		return []string{fmt.Sprintf("%s.path: %q must be relative, not absolute", field, p)}
	}
	clean := cleanPath(full)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return []string{fmt.Sprintf("%s.path: %q must not leave the project directory", field, p)}
	}
	return nil
}

package discover

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/distribution/reference"

	"github.com/sofmeright/dockerbuild/src/config"
)

// maxTagLength is the longest tag a registry accepts.
const maxTagLength = 128

var (
	componentRunRe = regexp.MustCompile(`[^a-z0-9]+`)
	tagInvalidRe   = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)
)

// imageName returns the configured name with templates expanded, or the
// derived name when the entry has none. The result must be a valid reference.
func (e *Engine) imageName(base string, loc location, entry config.Entry) (string, error) {
	dockerfile := filepath.Join(loc.rel, loc.name)

	if entry.ImageName == "" {
		name := DeriveImageName(loc.named, loc.name, base)
		if _, err := reference.ParseNormalizedNamed(name); err != nil {
			return "", fmt.Errorf("%s: derived image name %q is invalid: %w", dockerfile, name, err)
		}
		return name, nil
	}

	name := entry.ImageName
	if config.HasTemplate(name) {
		name = e.expandTemplate(base, name, dockerfileSuffix(loc.name))
	}
	if _, err := reference.ParseNormalizedNamed(name); err != nil {
		return "", fmt.Errorf("%s: image name %q is invalid: %w", dockerfile, name, err)
	}
	return name, nil
}

// expandTemplate substitutes {branch}, {sha} and {suffix}. An empty suffix
// expands to "latest".
func (e *Engine) expandTemplate(base, name, suffix string) string {
	if strings.Contains(name, "{branch}") || strings.Contains(name, "{sha}") {
		if e.Vars == nil {
			vars := GitVars(base)
			e.Vars = &vars
		}
		name = strings.ReplaceAll(name, "{branch}", sanitizeTag(e.Vars.Branch))
		name = strings.ReplaceAll(name, "{sha}", e.Vars.SHA)
	}
	if suffix == "" {
		suffix = "latest"
	}
	return strings.ReplaceAll(name, "{suffix}", sanitizeTag(suffix))
}

// DeriveImageName builds an image name from a relative Dockerfile directory.
// The path is lowercased, characters outside [a-z0-9._-] collapse to "-" and
// each component is trimmed of separators. "." uses the base directory's own
// name. Dockerfile.<suffix> adds ":<suffix>".
func DeriveImageName(rel, dockerfile, base string) string {
	if rel == "." || rel == "" {
		rel = filepath.Base(base)
	}

	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part = sanitizeComponent(part); part != "" {
			parts = append(parts, part)
		}
	}
	name := strings.Join(parts, "/")
	if name == "" {
		name = "image"
	}

	if tag := sanitizeTag(dockerfileSuffix(dockerfile)); tag != "" {
		name += ":" + tag
	}
	return name
}

// sanitizeComponent lowercases one path component and rewrites it to the
// reference grammar: alphanumerics joined by ".", "_", "__" or dashes.
func sanitizeComponent(s string) string {
	s = componentRunRe.ReplaceAllStringFunc(strings.ToLower(s), func(run string) string {
		switch {
		case run == "." || run == "_" || run == "__":
			return run
		case strings.Trim(run, "-") == "":
			return run
		}
		return "-"
	})
	return strings.TrimFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// sanitizeTag replaces characters not allowed in Docker tags.
func sanitizeTag(s string) string {
	s = tagInvalidRe.ReplaceAllString(s, "-")
	s = strings.TrimLeft(s, ".-")
	if len(s) > maxTagLength {
		s = s[:maxTagLength]
	}
	return s
}

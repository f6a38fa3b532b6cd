package discover

import (
	"path"
	"strings"
)

// matchIgnore reports the first ignore pattern matching a directory.
// Patterns containing "/" or "**" match the full slash path relative to the
// project; other patterns match the directory's base name.
func matchIgnore(patterns []string, rel string) (string, bool) {
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimPrefix(p, "./"), "/")
		target := rel
		if !strings.Contains(p, "/") && !strings.Contains(p, "**") {
			target = path.Base(rel)
		}
		if matchGlob(p, target) {
			return p, true
		}
	}
	return "", false
}

// matchGlob is path.Match where "**" also spans any number of segments.
// Text before the first "**" is a literal directory prefix.
func matchGlob(pattern, name string) bool {
	head, tail, ok := strings.Cut(pattern, "**")
	if !ok {
		matched, _ := path.Match(pattern, name)
		return matched
	}
	head = strings.TrimRight(head, "/")
	tail = strings.TrimLeft(tail, "/")

	if head != "" {
		rest, found := strings.CutPrefix(name, head)
		if !found || (rest != "" && rest[0] != '/') {
			return false
		}
		name = strings.TrimLeft(rest, "/")
	}
	if tail == "" {
		return true
	}

	// Try the rest of the pattern against every tail of name.
	segs := strings.Split(name, "/")
	for i := range len(segs) + 1 {
		if matchGlob(tail, strings.Join(segs[i:], "/")) {
			return true
		}
	}
	return false
}

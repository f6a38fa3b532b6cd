package discover

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// ARG <name>[=<default>]
	argRe = regexp.MustCompile(`(?i)^ARG\s+(\S+?)(?:=.*)?$`)
)

// Dockerfile summarizes the stages and build arguments of a Dockerfile.
type Dockerfile struct {
	Path   string
	Stages []Stage
	Args   []string
}

// Stage describes a single FROM stage.
type Stage struct {
	Name      string // alias from "AS name", empty if unnamed
	BaseImage string
	Line      int
}

// Targets returns the named stages, usable with --target.
func (d Dockerfile) Targets() []string {
	var out []string
	for _, s := range d.Stages {
		if s.Name != "" {
			out = append(out, s.Name)
		}
	}
	return out
}

// ParseDockerfile extracts stages and ARG names. This is a line-based
// parser, not a full AST.
func ParseDockerfile(path string) (*Dockerfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &Dockerfile{Path: path}
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := fromRe.FindStringSubmatch(line); m != nil {
			info.Stages = append(info.Stages, Stage{BaseImage: m[1], Name: m[2], Line: lineNum})
			continue
		}
		if m := argRe.FindStringSubmatch(line); m != nil {
			info.Args = append(info.Args, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

// Describe parses the Dockerfile of every build concurrently. Results are in
// the order of builds.
func Describe(ctx context.Context, builds []Build) ([]Dockerfile, error) {
	out := make([]Dockerfile, len(builds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, b := range builds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := ParseDockerfile(b.Path())
			if err != nil {
				return fmt.Errorf("parsing %s: %w", b.Path(), err)
			}
			out[i] = *info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

package discover

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/sirupsen/logrus"
)

const shortSHALength = 7

// Vars are the repository values substituted into image name templates.
type Vars struct {
	Branch string
	SHA    string
}

// GitVars reads the current branch and short commit SHA of the repository
// containing dir. Detached heads fall back to CI_COMMIT_BRANCH and
// GITHUB_REF_NAME; unknown values are "unknown".
func GitVars(dir string) Vars {
	vars := Vars{Branch: "unknown", SHA: "unknown"}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return vars
	}
	head, err := repo.Head()
	if err != nil {
		return vars
	}

	if sha := head.Hash().String(); len(sha) >= shortSHALength {
		vars.SHA = sha[:shortSHALength]
	}
	if head.Name().IsBranch() {
		vars.Branch = head.Name().Short()
	} else if b := branchFromEnv(); b != "" {
		vars.Branch = b
	}
	return vars
}

// branchFromEnv resolves the current branch from CI environment variables.
func branchFromEnv() string {
	if b := os.Getenv("CI_COMMIT_BRANCH"); b != "" {
		return b
	}
	return os.Getenv("GITHUB_REF_NAME")
}

// gitIgnorer matches paths against the .gitignore files of the repository
// enclosing a walk root. A nil gitIgnorer ignores nothing.
type gitIgnorer struct {
	top     string
	matcher gitignore.Matcher
}

// newGitIgnorer loads the .gitignore patterns of the worktree containing
// root, or of root itself when it is not inside a repository.
func newGitIgnorer(root string, log logrus.FieldLogger) *gitIgnorer {
	top := root
	if repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true}); err == nil {
		if wt, err := repo.Worktree(); err == nil {
			top = wt.Filesystem.Root()
		}
	}

	patterns, err := gitignore.ReadPatterns(osfs.New(top), nil)
	if err != nil {
		log.WithError(err).WithField("dir", top).Warn("reading .gitignore files")
		return nil
	}
	return &gitIgnorer{top: top, matcher: gitignore.NewMatcher(patterns)}
}

// Ignored reports whether an absolute path is ignored.
func (g *gitIgnorer) Ignored(path string, isDir bool) bool {
	if g == nil {
		return false
	}
	rel, err := filepath.Rel(g.top, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return g.matcher.Match(strings.Split(filepath.ToSlash(rel), "/"), isDir)
}

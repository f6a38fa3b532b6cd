package discover

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/distribution/reference"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveImageName(t *testing.T) {
	tests := []struct {
		rel        string
		dockerfile string
		want       string
	}{
		{"a", "Dockerfile", "a"},
		{"b", "Dockerfile.dev", "b:dev"},
		{filepath.Join("services", "api"), "Dockerfile", "services/api"},
		{filepath.Join("My App", "Web"), "Dockerfile", "my-app/web"},
		{"_internal_", "Dockerfile", "internal"},
		{"a..b", "Dockerfile", "a-b"},
		{"snake_case", "Dockerfile", "snake_case"},
		{"double__under", "Dockerfile", "double__under"},
		{"dash--es", "Dockerfile", "dash--es"},
		{filepath.Join("x", "@@", "y"), "Dockerfile", "x/y"},
		{"api", "Dockerfile.Prod Build", "api:Prod-Build"},
		{"api", "Dockerfile..hidden", "api:hidden"},
		{"!!!", "Dockerfile", "image"},
		{".", "Dockerfile", "my-project"},
		{".", "Dockerfile.ci", "my-project:ci"},
	}

	for _, tt := range tests {
		t.Run(tt.rel+"/"+tt.dockerfile, func(t *testing.T) {
			got := DeriveImageName(tt.rel, tt.dockerfile, filepath.Join("/src", "My Project"))
			assert.Equal(t, tt.want, got)

			_, err := reference.ParseNormalizedNamed(got)
			assert.NoError(t, err)
		})
	}
}

func TestDiscoverOutsideBaseNamesFromRoot(t *testing.T) {
	base := tree(t)
	root := tree(t, "Dockerfile", "a/web/Dockerfile", "b/web/Dockerfile.dev")

	builds, err := (&Engine{Roots: []string{root}, Base: base, Log: quietLogger()}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 3)

	assert.Equal(t, DeriveImageName(filepath.Base(root), "Dockerfile", base), builds[0].Image)
	assert.Equal(t, "a/web", builds[1].Image)
	assert.Equal(t, "b/web:dev", builds[2].Image)
	assert.Equal(t, filepath.Join(root, "a", "web"), builds[1].Root)
}

func TestSanitizeTag(t *testing.T) {
	assert.Equal(t, "feature-login", sanitizeTag("feature/login"))
	assert.Equal(t, "v1.2_rc", sanitizeTag("v1.2_rc"))
	assert.Equal(t, "x", sanitizeTag("-.x"))
	assert.Len(t, sanitizeTag(strings.Repeat("a", 200)), maxTagLength)
}

func TestDiscoverInvalidDerivedName(t *testing.T) {
	// A repository path longer than the reference grammar allows.
	dir := tree(t, strings.Repeat("a", 200)+"/"+strings.Repeat("b", 200)+"/Dockerfile")

	_, err := (&Engine{Base: dir, Log: quietLogger()}).Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "derived image name")
}

func TestGitVars(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Dockerfile")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	vars := GitVars(sub)
	assert.Equal(t, "master", vars.Branch)
	assert.Equal(t, hash.String()[:7], vars.SHA)
}

package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/dockerbuild/src/config"
)

// tree creates files (slash paths, relative to a temp dir) and returns the dir.
func tree(t *testing.T, files ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("FROM scratch\n"), 0o644))
	}
	return dir
}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func boolPtr(b bool) *bool { return &b }

func images(builds []Build) []string {
	out := make([]string, len(builds))
	for i, b := range builds {
		out[i] = b.Image
	}
	return out
}

func TestDiscoverExcludedPath(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/Dockerfile.dev")

	e := &Engine{
		Roots:    []string{"."},
		Entries:  []config.Entry{{Path: "./b", Exclude: boolPtr(true)}},
		Explicit: true,
		Base:     dir,
		Log:      quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 2)

	a, b := builds[0], builds[1]
	assert.Equal(t, "a", a.Root)
	assert.Equal(t, "a", a.Image)
	assert.False(t, a.Excluded)
	assert.Equal(t, -1, a.Entry)
	assert.Equal(t, filepath.Join(dir, "a"), a.Dir)
	assert.Equal(t, filepath.Join(dir, "a", "Dockerfile"), a.Path())

	assert.Equal(t, "b", b.Root)
	assert.Equal(t, "Dockerfile.dev", b.Dockerfile)
	assert.Equal(t, "b:dev", b.Image)
	assert.True(t, b.Excluded)
	assert.Equal(t, 0, b.Entry)
}

func TestDiscoverCommand(t *testing.T) {
	dir := tree(t, "api/Dockerfile")
	t.Setenv("DOCKERBUILD_TEST_TOKEN", "from-env")

	e := &Engine{
		Roots: []string{"api"},
		Entries: []config.Entry{{
			Path:      "api",
			ImageName: "acme/api",
			Args:      config.StringList{"--pull", "--label=${OWNER}"},
			BuildArgs: map[string]string{"Z": "last", "A": "${DOCKERBUILD_TEST_TOKEN}"},
			Context:   "..",
		}},
		Explicit: true,
		Builder:  "podman",
		Env:      map[string]string{"OWNER": "team"},
		Base:     dir,
		Log:      quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 1)

	assert.Equal(t, []string{
		"podman", "build", "--file", "Dockerfile",
		"--pull", "--label=team",
		"--build-arg", "A=from-env",
		"--build-arg", "Z=last",
		"--tag", "acme/api", "..",
	}, builds[0].Command)
}

func TestDiscoverDefaultCommand(t *testing.T) {
	dir := tree(t, "Dockerfile")

	builds, err := (&Engine{Base: dir, Log: quietLogger()}).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 1)

	name := DeriveImageName(".", "Dockerfile", dir)
	assert.Equal(t, ".", builds[0].Root)
	assert.Equal(t, []string{"docker", "build", "--file", "Dockerfile", "--tag", name, "."}, builds[0].Command)
}

func TestDiscoverOrderAndFiltering(t *testing.T) {
	dir := tree(t,
		"zeta/Dockerfile",
		"alpha/Dockerfile.prod",
		"alpha/Dockerfile",
		"alpha/Dockerfile.",
		"alpha/dockerfile",
		"alpha/Containerfile",
		".git/Dockerfile",
		"node_modules/pkg/Dockerfile",
		"vendor/x/Dockerfile",
		"svc/vendor/Dockerfile",
	)

	e := &Engine{Base: dir, Ignore: []string{"node_modules", "svc/**"}, Log: quietLogger()}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "alpha:prod", "vendor/x", "zeta"}, images(builds))
}

func TestDiscoverRecursiveEntry(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/Dockerfile")

	e := &Engine{
		Entries: []config.Entry{
			{Path: "a", ImageName: "acme/a"},
			{Args: config.StringList{"--pull"}},
			{Args: config.StringList{"--ignored"}},
		},
		Explicit: true,
		Base:     dir,
		Log:      quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 2)

	assert.Equal(t, 0, builds[0].Entry)
	assert.Equal(t, "acme/a", builds[0].Image)
	assert.NotContains(t, builds[0].Command, "--pull")

	assert.Equal(t, 1, builds[1].Entry)
	assert.Contains(t, builds[1].Command, "--pull")
	assert.NotContains(t, builds[1].Command, "--ignored")
}

func TestDiscoverExplicitBeatsEarlierRecursive(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/Dockerfile")

	e := &Engine{
		Entries: []config.Entry{
			{Args: config.StringList{"--pull"}},
			{Path: "a", ImageName: "acme/a", Args: config.StringList{"--no-cache"}},
		},
		Explicit: true,
		Base:     dir,
		Log:      quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 2)

	assert.Equal(t, 1, builds[0].Entry)
	assert.Equal(t, "acme/a", builds[0].Image)
	assert.Contains(t, builds[0].Command, "--no-cache")
	assert.NotContains(t, builds[0].Command, "--pull")

	assert.Equal(t, 0, builds[1].Entry)
	assert.Contains(t, builds[1].Command, "--pull")
}

func TestDiscoverIdempotent(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/c/Dockerfile.x", "svc/api/Dockerfile", "svc/api/Dockerfile.debug")

	e := &Engine{
		Roots: []string{"a", "b", "svc"},
		Entries: []config.Entry{
			{Path: "svc/api", ImageName: "acme/api:{branch}-{suffix}", BuildArgs: map[string]string{"B": "2", "A": "1"}},
			{Args: config.StringList{"--pull"}},
		},
		Explicit: true,
		Base:     dir,
		Log:      quietLogger(),
	}
	first, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, e.Vars)

	second, err := e.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a", "b/c:x"}, images(first)[:2])
	assert.Len(t, first, 4)
}

func TestDiscoverExplicitDisabled(t *testing.T) {
	dir := tree(t, "a/Dockerfile")

	e := &Engine{
		Entries: []config.Entry{{Path: "a", ImageName: "acme/a"}, {}},
		Base:    dir,
		Log:     quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, 1, builds[0].Entry)
	assert.Equal(t, "a", builds[0].Image)
}

func TestDiscoverDockerfileSelector(t *testing.T) {
	dir := tree(t, "api/Dockerfile", "api/Dockerfile.prod")

	e := &Engine{
		Entries: []config.Entry{
			{Path: "api", Dockerfile: "Dockerfile.prod", ImageName: "acme/api:prod"},
			{Path: "api", ImageName: "acme/api:dev"},
		},
		Explicit: true,
		Base:     dir,
		Log:      quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/api:dev", "acme/api:prod"}, images(builds))
}

func TestDiscoverDeduplicates(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/Dockerfile")

	e := &Engine{Roots: []string{"a", ".", "./a"}, Base: dir, Log: quietLogger()}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, images(builds))

	seen := map[Key]bool{}
	for _, b := range builds {
		assert.False(t, seen[b.Key()], "duplicate %v", b.Key())
		seen[b.Key()] = true
	}
}

func TestDiscoverSameDirectoryDifferentImages(t *testing.T) {
	dir := tree(t, "a/Dockerfile")

	first, err := (&Engine{Roots: []string{"a"}, Base: dir, Log: quietLogger()}).Discover(context.Background())
	require.NoError(t, err)

	e := &Engine{
		Roots:    []string{"a", "a"},
		Entries:  []config.Entry{{Path: "a", ImageName: "acme/a"}},
		Explicit: true,
		Base:     dir,
		Log:      quietLogger(),
	}
	second, err := e.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Key(), second[0].Key())
}

func TestDiscoverMissingRoot(t *testing.T) {
	dir := tree(t, "a/Dockerfile")

	e := &Engine{Roots: []string{"a", "missing"}, Base: dir, Log: quietLogger()}

	var yielded int
	var rootErr *RootError
	for _, err := range e.All(context.Background()) {
		if err != nil {
			require.ErrorAs(t, err, &rootErr)
			break
		}
		yielded++
	}
	assert.Zero(t, yielded)
	require.NotNil(t, rootErr)
	assert.Equal(t, "missing", rootErr.Root)
	assert.ErrorIs(t, rootErr, os.ErrNotExist)
}

func TestDiscoverRootIsFile(t *testing.T) {
	dir := tree(t, "a/Dockerfile")

	_, err := (&Engine{Roots: []string{"a/Dockerfile"}, Base: dir, Log: quietLogger()}).Discover(context.Background())
	var rootErr *RootError
	require.ErrorAs(t, err, &rootErr)
	assert.ErrorIs(t, err, errNotDirectory)
}

func TestDiscoverEmpty(t *testing.T) {
	builds, err := (&Engine{Base: tree(t, "README.md"), Log: quietLogger()}).Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, builds)
}

func TestDiscoverStopsEarly(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/Dockerfile", "c/Dockerfile")

	var got []string
	for b, err := range (&Engine{Base: dir, Log: quietLogger()}).All(context.Background()) {
		require.NoError(t, err)
		got = append(got, b.Image)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDiscoverCanceled(t *testing.T) {
	dir := tree(t, "a/Dockerfile")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Engine{Base: dir, Log: quietLogger()}).Discover(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverInvalidTemplateResult(t *testing.T) {
	dir := tree(t, "a/Dockerfile")

	e := &Engine{
		Entries:  []config.Entry{{Path: "a", ImageName: "acme/{branch}/UPPER"}},
		Explicit: true,
		Vars:     &Vars{Branch: "main", SHA: "abc1234"},
		Base:     dir,
		Log:      quietLogger(),
	}
	_, err := e.Discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
}

func TestDiscoverTemplates(t *testing.T) {
	dir := tree(t, "api/Dockerfile", "api/Dockerfile.debug")

	e := &Engine{
		Entries:  []config.Entry{{Path: "api", ImageName: "acme/api:{branch}-{sha}-{suffix}"}},
		Explicit: true,
		Vars:     &Vars{Branch: "feature/login", SHA: "abc1234"},
		Base:     dir,
		Log:      quietLogger(),
	}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"acme/api:feature-login-abc1234-latest",
		"acme/api:feature-login-abc1234-debug",
	}, images(builds))
}

func TestDiscoverSymlinks(t *testing.T) {
	dir := tree(t, "real/Dockerfile", "other/Dockerfile.base")

	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "linkdir")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "svc"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "other", "Dockerfile.base"), filepath.Join(dir, "svc", "Dockerfile")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "broken"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "nowhere"), filepath.Join(dir, "broken", "Dockerfile")))

	builds, err := (&Engine{Base: dir, Log: quietLogger()}).Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"other:base", "real", "svc"}, images(builds))
}

func TestDiscoverGitIgnore(t *testing.T) {
	dir := tree(t, "app/Dockerfile", "build/out/Dockerfile", "tmp/Dockerfile.scratch")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("build/\n*.scratch\n"), 0o644))

	e := &Engine{Base: dir, Log: quietLogger()}
	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, builds, 3)

	e.GitIgnore = true
	builds, err = e.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, images(builds))
}

func TestNewEngine(t *testing.T) {
	dir := tree(t, "a/Dockerfile", "b/Dockerfile")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TAG=1.0\n"), 0o644))

	cfg := &config.Config{
		Builder: "docker",
		Dir:     dir,
		Images: []config.Entry{
			{Path: "a", ImageName: "acme/a", Args: config.StringList{"--label=v${TAG}"}},
			{},
		},
	}
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	e.Log = quietLogger()

	assert.Equal(t, []string{"a", "."}, e.Roots)
	assert.True(t, e.Explicit)
	assert.Equal(t, "1.0", e.Env["TAG"])

	builds, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Contains(t, builds[0].Command, "--label=v1.0")
	assert.Equal(t, "b", builds[1].Image)

	e, err = NewEngine(cfg, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, e.Roots)
	assert.True(t, e.Explicit)
}

func TestIsDockerfileName(t *testing.T) {
	for name, want := range map[string]bool{
		"Dockerfile":        true,
		"Dockerfile.dev":    true,
		"Dockerfile.":       false,
		"dockerfile":        false,
		"Dockerfiles":       false,
		"app.Dockerfile":    false,
		"Dockerfile.a.b":    true,
		"Containerfile":     false,
		"Dockerfile.prod-1": true,
	} {
		assert.Equal(t, want, IsDockerfileName(name), name)
	}
}

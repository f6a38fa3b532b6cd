package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sofmeright/dockerbuild/src/badge"
	"github.com/sofmeright/dockerbuild/src/build"
)

// WriteBadge writes an SVG badge summarizing results to path.
func WriteBadge(path string, results []build.Result) error {
	metrics, err := badge.DefaultFont()
	if err != nil {
		return err
	}

	failed := len(build.Failed(results))
	svg := badge.Render(metrics, badge.ForBuilds(len(results)-failed, failed))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating badge dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return fmt.Errorf("writing badge: %w", err)
	}
	return nil
}

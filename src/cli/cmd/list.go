package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sofmeright/dockerbuild/src/discover"
)

var listStages bool

var listCmd = &cobra.Command{
	Use:   "list [ROOT...]",
	Short: "List discovered Dockerfiles without building",
	Long: `List every Dockerfile discovery finds, the image it builds and the
configuration entry that applies.

With --stages, each Dockerfile is parsed for its named stages and ARGs.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listStages, "stages", false, "show named stages and build args")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	builds, err := discoverBuilds(cmd.Context(), args)
	if err != nil {
		return err
	}

	var infos []discover.Dockerfile
	if listStages {
		infos, err = discover.Describe(cmd.Context(), builds)
		if err != nil {
			return err
		}
	}

	headers := []string{"DOCKERFILE", "IMAGE", "ENTRY", "STATUS"}
	if listStages {
		headers = append(headers, "STAGES", "ARGS")
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...)
	for i, b := range builds {
		entry := "default"
		if b.Entry >= 0 {
			entry = "#" + strconv.Itoa(b.Entry)
		}
		status := "build"
		if b.Excluded {
			status = "excluded"
		}
		row := []string{filepath.Join(b.Root, b.Dockerfile), b.Image, entry, status}
		if listStages {
			row = append(row, strings.Join(infos[i].Targets(), ","), strings.Join(infos[i].Args, ","))
		}
		t.Row(row...)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "%d Dockerfile(s)\n", len(builds))
	return nil
}

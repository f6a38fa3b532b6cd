package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sofmeright/dockerbuild/src/config"
	"github.com/sofmeright/dockerbuild/src/output"
)

var validateSecrets bool

var errSecretsFound = errors.New("configuration contains secrets")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Parse and validate the configuration file, printing any warnings.

With --secrets, the file is also scanned for committed credentials.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateSecrets, "secrets", false, "scan the configuration for secrets")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p := &output.Printer{Writer: cmd.OutOrStdout(), Color: output.UseColor()}

	for _, w := range cfg.Warnings() {
		p.Emit(output.SeverityInfo, "warning: "+w)
	}

	if validateSecrets {
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return err
		}
		findings, err := config.ScanSecrets(data)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", cfg.Path, err)
		}
		for _, f := range findings {
			p.Emit(output.SeverityError, fmt.Sprintf("%s:%s", cfg.Path, f))
		}
		if len(findings) > 0 {
			return fmt.Errorf("%w: %d finding(s)", errSecretsFound, len(findings))
		}
	}

	entries := cfg.EntriesRecursive()
	p.Emit(output.SeveritySuccess, fmt.Sprintf("%s: OK (%d entries, roots: %v)", cfg.Path, len(entries), cfg.Roots()))
	return nil
}

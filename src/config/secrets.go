package config

import (
	"fmt"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// SecretFinding is a probable credential found in a configuration file.
// Build args are recorded in image history, so secrets do not belong there.
type SecretFinding struct {
	Line        int
	RuleID      string
	Description string
}

func (f SecretFinding) String() string {
	return fmt.Sprintf("line %d: %s (%s)", f.Line, f.Description, f.RuleID)
}

// ScanSecrets runs the gitleaks default rule set over a raw config document.
func ScanSecrets(data []byte) ([]SecretFinding, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("initializing secret detector: %w", err)
	}

	hits := d.DetectBytes(data)
	findings := make([]SecretFinding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, SecretFinding{
			Line:        h.StartLine + 1, // gitleaks is 0-indexed
			RuleID:      h.RuleID,
			Description: h.Description,
		})
	}
	return findings, nil
}

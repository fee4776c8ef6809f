package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteReport writes the consolidated security report into the given directory
// and returns the file path. The file name carries a millisecond timestamp.
func WriteReport(result Result, dir string) (string, error) {
	reportPath := filepath.Join(dir, fmt.Sprintf("SecurityReport_%d.txt", time.Now().UnixMilli()))

	var sb strings.Builder

	sb.WriteString("=== Smart Contract Security Report ===\n\n")

	sb.WriteString("1. Analysis with Slither:\n\n")
	switch {
	case len(result.Failures) != 0:
		for _, failure := range result.Failures {
			sb.WriteString("   " + failure + "\n")
		}
		sb.WriteString("\n")
	case len(result.SlitherFindings) == 0:
		sb.WriteString("   No critical vulnerabilities detected\n\n")
	default:
		sb.WriteString("   Analysis results:\n\n")
		for _, finding := range result.SlitherFindings {
			for _, line := range strings.Split(strings.TrimRight(finding, "\n"), "\n") {
				sb.WriteString("   " + line + "\n")
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("2. Custom Security Checks:\n")
	if len(result.CustomFindings) == 0 {
		sb.WriteString("   All custom checks passed.\n\n")
	} else {
		for _, finding := range result.CustomFindings {
			sb.WriteString("   " + finding + "\n")
		}
	}

	sb.WriteString("\n3. Deployment Recommendations:\n")
	sb.WriteString("   - Test thoroughly on a testnet.\n")
	sb.WriteString("   - Verify roles and permissions.\n")
	sb.WriteString("   - Document participant addresses.\n\n")

	sb.WriteString("4. BPMN Workflow Specific Notes:\n")
	sb.WriteString("   - Ensure correct usage of gatewayAction(gatewayId, bool).\n")
	sb.WriteString("   - Document each gateway's yes/no logic.\n")

	if err := os.WriteFile(reportPath, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write security report %s: %v", reportPath, err)
	}

	return reportPath, nil
}

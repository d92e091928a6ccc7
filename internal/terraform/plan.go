package terraform

import (
	"regexp"
	"strconv"
	"strings"
)

// PlanSummary is the machine-readable slice of a terraform plan.
type PlanSummary struct {
	Add        int
	Change     int
	Destroy    int
	HasChanges bool
	Detail     string
}

var planCountsRe = regexp.MustCompile(`Plan:\s+(\d+)\s+to add,\s+(\d+)\s+to change,\s+(\d+)\s+to destroy`)

// planBodyAnchor marks where the actual plan starts in terraform output;
// everything before it is init/refresh noise.
const planBodyAnchor = "Terraform used the selected providers to generate the following execution"

// ParsePlanOutput extracts add/change/destroy counts from plan output.
// "No changes." plans parse as all zeros.
func ParsePlanOutput(output string) *PlanSummary {
	summary := &PlanSummary{}
	m := planCountsRe.FindStringSubmatch(output)
	if m == nil {
		return summary
	}
	summary.Add, _ = strconv.Atoi(m[1])
	summary.Change, _ = strconv.Atoi(m[2])
	summary.Destroy, _ = strconv.Atoi(m[3])
	return summary
}

// ExtractPlanBody trims refresh noise from terraform show output, keeping
// only the plan body from the provider anchor onward. Output without the
// anchor is returned whole.
func ExtractPlanBody(output string) string {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if strings.Contains(line, planBodyAnchor) {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return strings.TrimSpace(output)
}

package tflint

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Finding is one tflint issue in compact format.
type Finding struct {
	File     string
	Line     int
	Col      int
	Severity string // error, warning, notice, info
	Rule     string
	Message  string
}

// Report groups findings by file with deterministic ordering.
type Report struct {
	Findings []Finding
}

// Totals summarizes finding counts by severity.
type Totals struct {
	Errors   int
	Warnings int
	Info     int
	Total    int
}

// compact format: file.tf:1:2: Warning - message (rule_name)
var findingRe = regexp.MustCompile(`^([^:\n]+):(\d+):(\d+):\s*([A-Za-z]+)\s*-\s*(.*?)(?:\s*\(([^)]+)\))?\s*$`)

var severityWeight = map[string]int{
	"error":   3,
	"warning": 2,
	"notice":  1,
	"info":    1,
}

// Parse extracts findings from tflint compact output. Summary lines
// ("3 issue(s) found") and anything unrecognized are ignored.
func Parse(output string) []Finding {
	var findings []Finding
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		low := strings.ToLower(line)
		if strings.Contains(low, "issue(s) found") || strings.Contains(low, "no issues") {
			continue
		}
		m := findingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		findings = append(findings, Finding{
			File:     strings.TrimSpace(m[1]),
			Line:     lineNo,
			Col:      col,
			Severity: strings.ToLower(m[4]),
			Message:  strings.TrimSpace(m[5]),
			Rule:     strings.TrimSpace(m[6]),
		})
	}
	return findings
}

// NewReport builds a report with findings sorted by file, then severity
// weight descending, then position.
func NewReport(findings []Finding) *Report {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !strings.EqualFold(a.File, b.File) {
			return strings.ToLower(a.File) < strings.ToLower(b.File)
		}
		if severityWeight[a.Severity] != severityWeight[b.Severity] {
			return severityWeight[a.Severity] > severityWeight[b.Severity]
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
	return &Report{Findings: sorted}
}

// Clean reports whether the lint run produced no findings at all.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// HasErrors reports whether any finding carries error severity.
func (r *Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == "error" {
			return true
		}
	}
	return false
}

// Totals counts findings by severity; notice folds into info.
func (r *Report) Totals() Totals {
	var t Totals
	for _, f := range r.Findings {
		switch f.Severity {
		case "error":
			t.Errors++
		case "warning":
			t.Warnings++
		default:
			t.Info++
		}
	}
	t.Total = t.Errors + t.Warnings + t.Info
	return t
}

// Files returns the distinct files with findings, in report order.
func (r *Report) Files() []string {
	var files []string
	seen := map[string]bool{}
	for _, f := range r.Findings {
		if !seen[f.File] {
			seen[f.File] = true
			files = append(files, f.File)
		}
	}
	return files
}

// ForFile returns the findings for one file, in report order.
func (r *Report) ForFile(file string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.File == file {
			out = append(out, f)
		}
	}
	return out
}

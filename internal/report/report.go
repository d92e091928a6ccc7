// Package report composes the markdown bodies published to PR comments and
// the mrkdwn texts sent to Slack.
package report

import (
	"fmt"
	"strings"
)

// Meta is the run context stamped into every comment footer so a reviewer
// can trace a comment back to the run that produced it.
type Meta struct {
	Actor      string
	WorkingDir string
	Event      string
	Workflow   string
	RunURL     string
	CommitURL  string
	SHA        string
}

// ShortSHA returns the 7-character commit abbreviation GitHub displays.
func (m Meta) ShortSHA() string {
	if len(m.SHA) <= 7 {
		return m.SHA
	}
	return m.SHA[:7]
}

// Footer renders the common comment footer.
func Footer(m Meta) string {
	var b strings.Builder
	b.WriteString("\n---\n")
	if m.Actor != "" {
		fmt.Fprintf(&b, "🧑‍💻 **Actor**: @%s\n", m.Actor)
	}
	fmt.Fprintf(&b, "📂 **Dir**: `%s`\n", m.WorkingDir)
	if m.RunURL != "" {
		fmt.Fprintf(&b, "🔗 **Run**: [logs](%s)\n", m.RunURL)
	}
	if m.SHA != "" && m.CommitURL != "" {
		fmt.Fprintf(&b, "🔧 **Commit**: [%s](%s)\n", m.ShortSHA(), m.CommitURL)
	}
	return b.String()
}

// details wraps content in a collapsible block.
func details(summary, content string) string {
	return fmt.Sprintf("<details>\n<summary>%s</summary>\n\n%s\n\n</details>\n", summary, content)
}

// codeFence wraps content in a fenced code block with a language hint.
func codeFence(lang, content string) string {
	return fmt.Sprintf("```%s\n%s\n```", lang, strings.TrimRight(content, "\n"))
}

// tail returns the last n lines of s, for embedding bounded tool output in
// failure comments.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

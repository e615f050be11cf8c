// Package brief assembles the context document posted on a fork issue so a
// coding agent has everything it needs: the upstream issue, contribution
// guidance, and any known repo quirks.
package brief

import (
	"fmt"
	"strings"

	"github.com/wolffm/dispatch/internal/models"
)

// ContributingLimit caps how much of CONTRIBUTING.md is inlined.
const ContributingLimit = 3000

// Input carries everything the brief is built from. Dossier and
// Contributing are both optional; when a dossier has contribution rules it
// takes precedence over the raw CONTRIBUTING.md.
type Input struct {
	OriginSlug   string
	IssueNumber  int
	IssueTitle   string
	IssueURL     string
	IssueBody    string
	Contributing string
	Dossier      *models.Dossier
}

// Title renders the fork issue title for an upstream issue.
func Title(originSlug string, issueNumber int, issueTitle string) string {
	return fmt.Sprintf("[OSS] Fix %s#%d: %s", originSlug, issueNumber, issueTitle)
}

// Build renders the fork issue body.
func Build(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Upstream Issue\n\n")
	fmt.Fprintf(&b, "**Repository:** %s\n", in.OriginSlug)
	fmt.Fprintf(&b, "**Issue:** #%d — %s\n", in.IssueNumber, in.IssueTitle)
	if in.IssueURL != "" {
		fmt.Fprintf(&b, "**Link:** %s\n", in.IssueURL)
	}
	b.WriteString("\n## Issue Description\n\n")
	if strings.TrimSpace(in.IssueBody) == "" {
		b.WriteString("*No description provided.*\n")
	} else {
		b.WriteString(strings.TrimSpace(in.IssueBody))
		b.WriteString("\n")
	}

	b.WriteString("\n## Instructions\n\n")
	b.WriteString("Fix the issue described above in this fork. ")
	b.WriteString("Keep the change minimal and focused, follow the project's existing conventions, ")
	b.WriteString("and include tests when the project has a test suite. ")
	b.WriteString("Open a pull request against this fork's default branch when done.\n")

	writeGuidance(&b, in)
	writeQuirks(&b, in.Dossier)
	writePatterns(&b, in.Dossier)

	return b.String()
}

func writeGuidance(b *strings.Builder, in Input) {
	if in.Dossier != nil && len(in.Dossier.ContributionRules) > 0 {
		b.WriteString("\n## Contribution Rules\n\n")
		for _, rule := range in.Dossier.ContributionRules {
			fmt.Fprintf(b, "- %s\n", rule)
		}
		return
	}
	if strings.TrimSpace(in.Contributing) == "" {
		return
	}
	text := in.Contributing
	if len(text) > ContributingLimit {
		text = text[:ContributingLimit] + "\n\n*(truncated)*"
	}
	b.WriteString("\n<details>\n<summary>Contributing Guidelines</summary>\n\n")
	b.WriteString(text)
	b.WriteString("\n\n</details>\n")
}

func writeQuirks(b *strings.Builder, d *models.Dossier) {
	if d == nil || len(d.Quirks) == 0 {
		return
	}
	b.WriteString("\n## Repo Quirks\n\n")
	for _, q := range d.Quirks {
		fmt.Fprintf(b, "- %s %s\n", impactPrefix(q.Impact), q.Description)
	}
}

func writePatterns(b *strings.Builder, d *models.Dossier) {
	if d == nil || len(d.SuccessPatterns) == 0 {
		return
	}
	b.WriteString("\n## Patterns That Get Merged\n\n")
	for _, p := range d.SuccessPatterns {
		fmt.Fprintf(b, "- %s\n", p)
	}
}

func impactPrefix(impact models.QuirkImpact) string {
	switch impact {
	case models.QuirkImpactBlocker:
		return "[BLOCKER]"
	case models.QuirkImpactWarning:
		return "[WARNING]"
	default:
		return "[NOTE]"
	}
}

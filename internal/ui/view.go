package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/present"
	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/state"
)

// renderMain renders the full screen: header, allowance, form, job, footer.
func (m Model) renderMain() string {
	styles := m.theme.Styles()

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderAllowance(styles),
		"",
		styles.Text.Bold(true).Render("Process an episode"),
		m.form.view(styles),
		"",
		m.renderJob(styles),
	)
	body = lipgloss.NewStyle().Padding(1, 2).Render(body)

	header := m.renderHeader(styles)
	footer := styles.Footer.Width(m.width).Render(m.help.View(m.keys))

	gap := m.height - lipgloss.Height(header) - lipgloss.Height(body) - lipgloss.Height(footer)
	if gap < 0 {
		gap = 0
	}
	return header + "\n" + body + strings.Repeat("\n", gap+1) + footer
}

func (m Model) renderHeader(styles Styles) string {
	parts := []string{styles.Logo.Render("JAMIE")}

	tier := m.tier()
	parts = append(parts, styles.StatusStyle(string(tier)).Render(string(tier)))
	if m.signedIn() {
		parts = append(parts, styles.MutedText.Render("signed in"))
	} else {
		parts = append(parts, styles.FaintText.Render("not signed in"))
	}

	switch {
	case m.snapshot.IsOffline():
		parts = append(parts, styles.DangerText.Render("OFFLINE"))
	case m.snapshot.Stale:
		parts = append(parts, styles.WarningText.Render("refreshing…"))
	}
	if !m.lastUpdated.IsZero() {
		parts = append(parts, styles.FaintText.Render(m.lastUpdated.Format("15:04:05")))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// renderAllowance lists every entitlement in the cached eligibility payload.
func (m Model) renderAllowance(styles Styles) string {
	elig := m.snapshot.Eligibility
	if elig == nil {
		if m.snapshot.ConsecutiveMisses > 0 {
			return styles.MutedText.Render("Allowance unavailable. Press ctrl+r to retry.")
		}
		return styles.MutedText.Render("Checking your allowance…")
	}

	names := make([]string, 0, len(elig.Entitlements))
	for name := range elig.Entitlements {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now()
	lines := []string{styles.Text.Bold(true).Render("Allowance")}
	for _, name := range names {
		status, rec, _ := elig.Entitlement(name)
		lines = append(lines, allowanceLine(styles, status, rec, now))
	}
	if len(names) == 0 {
		lines = append(lines, styles.MutedText.Render("No metered features on your plan."))
	}
	return strings.Join(lines, "\n")
}

func allowanceLine(styles Styles, status backend.EntitlementStatus, rec quota.Record, now time.Time) string {
	label := entitlementLabel(rec.EntitlementType)
	var usage string
	if rec.Max > 0 {
		usage = fmt.Sprintf("%d of %d left", rec.Remaining(), rec.Max)
	} else {
		usage = fmt.Sprintf("%d used", rec.Used)
	}
	reset := "resets " + present.ResetMessage(rec, now)

	usageStyle := styles.SuccessText
	if !status.Eligible {
		usageStyle = styles.DangerText
	} else if rec.Max > 0 && rec.Remaining() == 1 {
		usageStyle = styles.WarningText
	}
	return fmt.Sprintf("  %-22s %s  %s", label, usageStyle.Render(usage), styles.FaintText.Render(reset))
}

var entitlementLabels = map[string]string{
	quota.EntitlementOnDemandRun: "On-demand runs",
	quota.EntitlementJamieAssist: "Jamie Assist",
	"search-quotes":              "Quote searches",
	"create-clip":                "Clips",
	"ai-clip-edit":               "AI clip edits",
}

func entitlementLabel(name string) string {
	if label, ok := entitlementLabels[name]; ok {
		return label
	}
	return name
}

func (m Model) renderJob(styles Styles) string {
	job := m.snapshot.Job
	if job == nil {
		return styles.FaintText.Render("No run in progress.")
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Run "))
	b.WriteString(styles.MutedText.Render(job.JobID))
	b.WriteString("  ")
	b.WriteString(styles.StatusStyle(string(job.Status)).Render(jobLabel(*job)))
	b.WriteString("\n")

	stats := job.Stats
	if stats.Total > 0 {
		b.WriteString(fmt.Sprintf("  %s  %d/%d processed", progressBar(stats.Processed+stats.Skipped+stats.Failed, stats.Total, 24), stats.Processed, stats.Total))
		if stats.Skipped > 0 {
			b.WriteString(styles.MutedText.Render(fmt.Sprintf("  %d skipped", stats.Skipped)))
		}
		if stats.Failed > 0 {
			b.WriteString(styles.DangerText.Render(fmt.Sprintf("  %d failed", stats.Failed)))
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.FaintText.Render(fmt.Sprintf("  checked %d time%s", job.Attempts, plural(job.Attempts))))
	if !job.LastPolled.IsZero() {
		b.WriteString(styles.FaintText.Render(", last at " + job.LastPolled.Format("15:04:05")))
	}
	if err := m.snapshot.LastJobError; err != nil && !job.Terminal {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render("  last check failed: " + errorText(err)))
	}
	return b.String()
}

func jobLabel(job state.JobView) string {
	switch {
	case job.TimedOut:
		return "timed out"
	case job.Status == backend.JobComplete:
		return "complete"
	case job.Status == backend.JobFailed:
		return "failed"
	default:
		return "processing"
	}
}

func progressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	if done > total {
		done = total
	}
	filled := done * width / total
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

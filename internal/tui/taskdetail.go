package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/designboard/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)
)

// renderTaskDetail draws the detail panel for t. history may be nil while
// it is loading.
func renderTaskDetail(t models.Task, history []models.PDREntry, now time.Time) string {
	var b strings.Builder

	title := t.Title
	if title == "" {
		title = t.CustomerName
	}
	b.WriteString(headerStyle.Render(title) + "\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", label)) + valueStyle.Render(value) + "\n")
	}

	field("ID", t.ID)
	field("Customer", t.CustomerName)
	field("Column", columnLabel(t.Bucket()))
	field("Status", string(t.Status))
	field("In column", formatAge(now.Sub(t.StatusChangedAt)))
	field("Priority", string(t.Priority))
	field("Assigned to", t.AssignedTo)
	field("Created by", t.CreatedBy)
	field("Order number", t.OrderNumber)
	if t.Quantity > 0 {
		field("Quantity", fmt.Sprintf("%d", t.Quantity))
	}
	if t.CurrentVersion > 0 {
		field("Version", fmt.Sprintf("v%d", t.CurrentVersion))
	}
	if t.NeedsLogo {
		field("Logo", string(t.LogoAction))
	}
	field("Order", t.OrderID)
	field("Campaign", t.CampaignID)
	field("Lead", t.LeadID)
	if t.CompletedAt != nil {
		field("Completed", t.CompletedAt.Local().Format("2006-01-02 15:04"))
	}

	if len(t.DesignFiles) > 0 {
		b.WriteString(sectionStyle.Render("Design files") + "\n")
		for _, f := range t.DesignFiles {
			b.WriteString("  • " + f + "\n")
		}
	}

	b.WriteString(sectionStyle.Render("History") + "\n")
	switch {
	case history == nil:
		b.WriteString(helpStyle.Render("  loading...") + "\n")
	case len(history) == 0:
		b.WriteString(helpStyle.Render("  no records") + "\n")
	default:
		for _, e := range history {
			outcome := lipgloss.NewStyle().Foreground(successColor)
			if e.Outcome != "success" {
				outcome = lipgloss.NewStyle().Foreground(errorColor)
			}
			b.WriteString(fmt.Sprintf("  %s %-22s %s %s\n",
				e.Timestamp.Local().Format("01-02 15:04"), e.Action, outcome.Render(e.Outcome), e.ActorID))
		}
	}

	b.WriteString("\n" + helpStyle.Render("a:accept  o:order number  l:send to designer  c:request change  Esc:close"))
	return b.String()
}

func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	}
}

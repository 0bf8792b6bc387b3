package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/api"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#9CA3AF")

	badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(10)
)

func newStatusCmd(ctx *context) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Display the state of the supervised server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			report, err := client.Status(commandContext(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(report, time.Now()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status report")
	return cmd
}

func renderStatus(report *api.StatusReport, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", statusBadge(report), report.Message())

	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%s%s\n", labelStyle.Render(label), value)
	}
	row("Name", report.Name)
	row("Command", report.Command)
	row("Workdir", report.Workdir)
	if report.Running {
		row("PID", fmt.Sprintf("%d", report.PID))
		uptime := "-"
		if report.StartedAt != nil {
			uptime = formatUptime(now.Sub(*report.StartedAt))
		}
		row("Uptime", uptime)
	}
	if report.ExitError != "" {
		row("Exit", report.ExitError)
	}
	if report.Probe != nil {
		probe := fmt.Sprintf("%s (%dms)", probeBadge(report.Probe), report.Probe.LatencyMS)
		if report.Probe.Error != "" {
			probe += " " + report.Probe.Error
		}
		row("Probe", probe)
	}
	return b.String()
}

func statusBadge(report *api.StatusReport) string {
	switch {
	case report == nil || !report.Running:
		return badgeStyle.Foreground(colorMuted).Render("STOPPED")
	case report.Exited:
		return badgeStyle.Foreground(colorWarning).Render("EXITED")
	default:
		return badgeStyle.Foreground(colorSuccess).Render("RUNNING")
	}
}

func probeBadge(p *api.ProbeReport) string {
	if p.Reachable {
		return lipgloss.NewStyle().Foreground(colorSuccess).Render("Server Online")
	}
	return lipgloss.NewStyle().Foreground(colorError).Render("Server Offline")
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second).String()
}

package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Width(24).Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise clinicians, assignments and active MVPs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openPlanner(cmd.Context())
			if p != nil {
				defer func() { _ = p.Close() }()
			}
			if err != nil {
				return err
			}
			stats := p.engine.Stats()
			row := func(label string, n int) string {
				return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(strconv.Itoa(n)))
			}
			lines := []string{
				titleStyle.Render(p.engine.Plan().Organization),
				row("Active clinicians", stats.TotalActiveClinicians),
				row("Assigned", stats.TotalAssigned),
				row("Active MVPs", stats.ActiveGroupingCount),
			}
			if unassigned := len(p.engine.UnassignedClinicians()); unassigned > 0 {
				lines = append(lines, warnStyle.Render(fmt.Sprintf("%d clinicians still unassigned", unassigned)))
			}
			_, err = fmt.Fprintln(a.stdout, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
			return err
		},
	}
}

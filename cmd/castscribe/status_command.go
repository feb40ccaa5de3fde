package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, status, func(out io.Writer) {
					renderStatus(out, status, shouldColorize(out))
				})
			})
		},
	}
}

func renderStatus(out io.Writer, status api.DaemonStatus, colorize bool) {
	printSection(out, "Daemon", colorize)
	running := statusError
	runningDetail := "stopped"
	if status.Running {
		running = statusOK
		runningDetail = fmt.Sprintf("pid %d since %s", status.PID, valueOrDash(status.StartedAt))
	}
	fmt.Fprintln(out, renderStatusLine("Running", running, runningDetail, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Event listeners", statusInfo, strconv.Itoa(status.EventSubscribers), colorize))
	fmt.Fprintln(out)

	printSection(out, "System Checks", colorize)
	if len(status.Checks) == 0 {
		fmt.Fprintln(out, renderStatusLine("Preflight", statusWarn, "not yet available", colorize))
	}
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out)

	if len(status.Dependencies) > 0 {
		printSection(out, "Dependencies", colorize)
		for _, dep := range status.Dependencies {
			fmt.Fprintln(out, renderStatusLine(dep.Name, dependencyKind(dep), dependencyDetail(dep), colorize))
		}
		fmt.Fprintln(out)
	}

	printSection(out, "Queues", colorize)
	rows := make([][]string, 0, len(status.Queues))
	for _, q := range status.Queues {
		current, progress := "-", "-"
		if q.Current != nil {
			current = q.Current.EpisodeTitle
			if current == "" {
				current = q.Current.EpisodeID
			}
			progress = fmt.Sprintf("%.0f%%", q.Current.ProgressPercent)
		}
		rows = append(rows, []string{q.Kind, strconv.Itoa(q.Waiting), current, progress})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Queue", "Waiting", "Current", "Progress"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
	))

	if len(status.SummaryStats) > 0 {
		fmt.Fprintln(out)
		printSection(out, "Summaries", colorize)
		states := make([]string, 0, len(status.SummaryStats))
		for state := range status.SummaryStats {
			states = append(states, state)
		}
		sort.Strings(states)
		statRows := make([][]string, 0, len(states))
		for _, state := range states {
			statRows = append(statRows, []string{state, strconv.Itoa(status.SummaryStats[state])})
		}
		fmt.Fprint(out, renderTable([]string{"Status", "Count"}, statRows, []columnAlignment{alignLeft, alignRight}))
	}
}

func dependencyKind(dep api.DependencyStatus) statusKind {
	switch {
	case dep.Available:
		return statusOK
	case dep.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyDetail(dep api.DependencyStatus) string {
	if dep.Available {
		if dep.Path != "" && dep.Path != dep.Command {
			return dep.Command + " (" + dep.Path + ")"
		}
		return dep.Command
	}
	if dep.Detail != "" {
		return dep.Detail
	}
	return "not found: " + dep.Command
}

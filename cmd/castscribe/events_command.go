package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print buffered daemon events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Events(cmd.Context(), since)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func(out io.Writer) {
					if len(resp.Events) == 0 {
						fmt.Fprintln(out, "No events")
						return
					}
					rows := make([][]string, 0, len(resp.Events))
					for _, evt := range resp.Events {
						rows = append(rows, []string{
							fmt.Sprintf("%d", evt.Seq),
							evt.Timestamp.Local().Format(time.DateTime),
							evt.Type,
							valueOrDash(evt.EpisodeID),
							valueOrDash(evt.Message),
						})
					}
					fmt.Fprint(out, renderTable(
						[]string{"Seq", "Time", "Type", "Episode", "Message"},
						rows,
						[]columnAlignment{alignRight},
					))
				})
			})
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "Only show events after this sequence number")
	return cmd
}

func newTasksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List recent transcription and summary tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Tasks(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func(out io.Writer) {
					if len(resp.Tasks) == 0 {
						fmt.Fprintln(out, "No tasks")
						return
					}
					rows := make([][]string, 0, len(resp.Tasks))
					for _, task := range resp.Tasks {
						rows = append(rows, []string{
							task.Action,
							task.Title,
							string(task.Status),
							fmt.Sprintf("%.0f%%", task.Progress),
							valueOrDash(task.Error),
						})
					}
					fmt.Fprint(out, renderTable(
						[]string{"Action", "Title", "Status", "Progress", "Error"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
					))
				})
			})
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
	"castscribe/internal/jobs"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var kind string
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and clear the transcription and summary queues",
	}
	queueCmd.PersistentFlags().StringVarP(&kind, "kind", "k", "transcription", "Queue to operate on (transcription or summary)")

	var listLibrary string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List running and waiting jobs for a library",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(listLibrary) == "" {
				return errors.New("--library is required")
			}
			return ctx.withClient(func(client *api.Client) error {
				view, err := client.Queue(cmd.Context(), kind, listLibrary)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, view, func(out io.Writer) {
					renderQueue(out, view)
				})
			})
		},
	}
	listCmd.Flags().StringVarP(&listLibrary, "library", "l", "", "Library id")

	var clearLibrary string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove waiting jobs (the running job is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ClearQueue(cmd.Context(), kind, clearLibrary)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func(out io.Writer) {
					scope := "all libraries"
					if clearLibrary != "" {
						scope = "library " + clearLibrary
					}
					fmt.Fprintf(out, "Cleared %d waiting jobs from %s\n", resp.Cleared, scope)
				})
			})
		},
	}
	clearCmd.Flags().StringVarP(&clearLibrary, "library", "l", "", "Only clear jobs for this library")

	queueCmd.AddCommand(listCmd, clearCmd)
	return queueCmd
}

func renderQueue(out io.Writer, view api.QueueResponse) {
	var rows [][]string
	if view.Current != nil {
		rows = append(rows, queueRow("running", *view.Current))
	}
	for i, job := range view.Queue {
		rows = append(rows, queueRow(fmt.Sprintf("#%d", i+1), job))
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable(
		[]string{"Position", "Episode", "Title", "Podcast", "Progress"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))
}

func queueRow(position string, job jobs.JobView) []string {
	return []string{
		position,
		job.EpisodeID,
		valueOrDash(job.EpisodeTitle),
		valueOrDash(job.PodcastTitle),
		fmt.Sprintf("%.0f%%", job.ProgressPercent),
	}
}

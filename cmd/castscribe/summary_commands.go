package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
)

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "summarize <episode-id>",
		Short: "Queue a summary for a transcribed episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Summarize(cmd.Context(), args[0], force)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, result, func(out io.Writer) {
					fmt.Fprintln(out, describeSubmit(args[0], result))
				})
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate even when a summary exists")
	return cmd
}

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Inspect and remove episode summaries",
	}
	summaryCmd.AddCommand(&cobra.Command{
		Use:   "show <episode-id>",
		Short: "Print the stored summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				summary, err := client.Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, summary, func(out io.Writer) {
					if summary.Error != "" {
						fmt.Fprintf(out, "Status: %s (%s)\n", summary.Status, summary.Error)
					} else {
						fmt.Fprintf(out, "Status: %s\n", summary.Status)
					}
					if summary.Summary != "" {
						fmt.Fprintln(out)
						fmt.Fprintln(out, summary.Summary)
					}
				})
			})
		},
	})
	summaryCmd.AddCommand(&cobra.Command{
		Use:   "status <episode-id>",
		Short: "Show summary state and queue position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.SummaryStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, status, func(out io.Writer) {
					fmt.Fprint(out, renderFields([][2]string{
						{"Status", status.Status},
						{"Processing", yesNo(status.IsCurrentlyProcessing)},
						{"Queued", yesNo(status.IsQueued)},
						{"Position", strconv.Itoa(status.QueuePosition)},
						{"Error", valueOrDash(status.Error)},
						{"Updated", valueOrDash(status.UpdatedAt)},
					}))
				})
			})
		},
	})
	summaryCmd.AddCommand(&cobra.Command{
		Use:   "delete <episode-id>",
		Short: "Delete the stored summary and its vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.DeleteSummary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func(out io.Writer) {
					fmt.Fprintf(out, "Deleted summary for %s (%d vectors removed)\n", args[0], resp.VectorsDeleted)
				})
			})
		},
	})
	return summaryCmd
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var libraries []string
	cmd := &cobra.Command{
		Use:   "ask <question>...",
		Short: "Ask a question against indexed transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New("question is required")
			}
			return ctx.withClient(func(client *api.Client) error {
				answer, err := client.Ask(cmd.Context(), question, libraries)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, answer, func(out io.Writer) {
					renderAnswer(out, answer)
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&libraries, "library", "l", nil, "Restrict the search to these library ids")
	return cmd
}

func renderAnswer(out io.Writer, answer api.QueryResponse) {
	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(out)
	rows := make([][]string, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		rows = append(rows, []string{src.Timestamp, valueOrDash(src.EpisodeTitle), valueOrDash(src.PodcastTitle)})
	}
	fmt.Fprint(out, renderTable([]string{"At", "Episode", "Podcast"}, rows, nil))
}

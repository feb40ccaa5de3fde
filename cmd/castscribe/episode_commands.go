package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
	"castscribe/internal/config"
	"castscribe/internal/jobs"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:   "episode",
		Short: "Register and inspect podcast episodes",
	}
	episodeCmd.AddCommand(newEpisodeAddCommand(ctx))
	episodeCmd.AddCommand(newEpisodeShowCommand(ctx))
	episodeCmd.AddCommand(newEpisodeTranscriptCommand(ctx))
	return episodeCmd
}

func newEpisodeAddCommand(ctx *commandContext) *cobra.Command {
	var req api.EpisodeRequest
	cmd := &cobra.Command{
		Use:   "add <episode-id>",
		Short: "Register or update an episode with its audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = strings.TrimSpace(args[0])
			if req.AudioPath != "" {
				expanded, err := config.ExpandPath(req.AudioPath)
				if err != nil {
					return fmt.Errorf("resolve audio path: %w", err)
				}
				req.AudioPath = expanded
			}
			return ctx.withClient(func(client *api.Client) error {
				episode, err := client.AddEpisode(cmd.Context(), req)
				if err != nil {
					return err
				}
				return emit(cmd, ctx, episode, func(out io.Writer) {
					fmt.Fprintf(out, "Registered episode %s (%s)\n", episode.ID, valueOrDash(episode.Title))
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.LibraryItemID, "item", "", "Library item id of the podcast")
	cmd.Flags().StringVar(&req.LibraryID, "library", "", "Library id")
	cmd.Flags().StringVar(&req.PodcastID, "podcast-id", "", "Podcast id")
	cmd.Flags().StringVar(&req.Title, "title", "", "Episode title")
	cmd.Flags().StringVar(&req.PodcastTitle, "podcast", "", "Podcast title")
	cmd.Flags().StringVar(&req.AudioPath, "audio", "", "Path to the episode audio file")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

func newEpisodeShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <episode-id>",
		Short: "Show an episode and its transcript state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				episode, err := client.Episode(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, episode, func(out io.Writer) {
					fmt.Fprint(out, renderFields(episodeFields(episode)))
				})
			})
		},
	}
}

func newEpisodeTranscriptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <episode-id>",
		Short: "Print the plain transcript of an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				transcript, err := client.Transcript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, transcript, func(out io.Writer) {
					fmt.Fprintln(out, transcript.Text)
				})
			})
		},
	}
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <episode-id>...",
		Short: "Queue episodes for transcription",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				results := make([]api.SubmitResponse, 0, len(args))
				for _, id := range args {
					result, err := client.Transcribe(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("transcribe %s: %w", id, err)
					}
					results = append(results, result)
				}
				return emit(cmd, ctx, results, func(out io.Writer) {
					for i, result := range results {
						fmt.Fprintln(out, describeSubmit(args[i], result))
					}
				})
			})
		},
	}
}

func newVectorizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vectorize <episode-id>",
		Short: "Index an episode transcript for questions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Vectorize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func(out io.Writer) {
					fmt.Fprintf(out, "Indexed %d passages for episode %s\n", resp.Chunks, resp.EpisodeID)
				})
			})
		},
	}
}

func episodeFields(episode api.Episode) [][2]string {
	transcript := "no"
	if episode.HasTranscript {
		transcript = fmt.Sprintf("yes (%d segments, %.0fs)", episode.TranscriptSegments, episode.TranscriptDuration)
	}
	return [][2]string{
		{"ID", episode.ID},
		{"Title", valueOrDash(episode.Title)},
		{"Podcast", valueOrDash(episode.PodcastTitle)},
		{"Library", episode.LibraryID},
		{"Library item", episode.LibraryItemID},
		{"Audio", valueOrDash(episode.AudioPath)},
		{"Transcript", transcript},
		{"Operation", valueOrDash(episode.TranscriptionOperation)},
		{"Updated", valueOrDash(episode.UpdatedAt)},
	}
}

func describeSubmit(id string, result api.SubmitResponse) string {
	switch result.Outcome {
	case jobs.OutcomeStarted:
		return fmt.Sprintf("%s: started (job %s)", id, result.JobID)
	case jobs.OutcomeQueued:
		return fmt.Sprintf("%s: queued at position %s (job %s)", id, strconv.Itoa(result.Position), result.JobID)
	case jobs.OutcomeExists:
		return fmt.Sprintf("%s: already %s", id, strings.TrimPrefix(valueOrDash(result.Reason), "already "))
	default:
		return fmt.Sprintf("%s: %s: %s", id, result.Outcome, valueOrDash(result.Reason))
	}
}

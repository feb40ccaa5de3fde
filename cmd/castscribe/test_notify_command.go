package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"castscribe/internal/api"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.TestNotification(cmd.Context())
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
				}
				return nil
			})
		},
	}
}

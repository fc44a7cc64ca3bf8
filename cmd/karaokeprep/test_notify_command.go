package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"karaokeprep/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" && strings.TrimSpace(cfg.Notifications.WebhookURL) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications not configured (set ntfy_topic or webhook_url)")
				return nil
			}
			err := ctx.notifications().Publish(cmd.Context(), notifications.EventTestNotification, notifications.Payload{
				"message": "karaokeprep test notification",
			})
			if err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}

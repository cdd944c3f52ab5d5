package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"event_chat/internal/chatsync"
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if err := chatsync.ValidateContent(content); err != nil {
				return err
			}

			cc, err := newClientContext(cmd, nil)
			if err != nil {
				return err
			}
			defer cc.Close()

			ctx := cmd.Context()
			if cc.scope.IsPrivate() {
				if _, err := cc.engine.RefreshThreads(ctx, cc.scope.EventID); err != nil {
					return fmt.Errorf("list threads: %w", err)
				}
			}
			if err := cc.engine.Select(ctx, cc.scope); err != nil && errors.Is(err, chatsync.ErrNotReady) {
				return err
			}

			retries, _ := cmd.Flags().GetInt("retries")
			msg, err := sendWithRetry(ctx, cc.engine, content, retries)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(msg))
			if thread := msg.PrivateThreadID; thread != "" && cc.scope.ThreadID == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "thread: %s\n", thread)
			}
			return nil
		},
	}

	cmd.Flags().Int("retries", 1, "retry a failed send this many times")

	return cmd
}

type messageSender interface {
	Send(ctx context.Context, content string) (chatsync.Message, error)
	Retry(ctx context.Context, tempID string) (chatsync.Message, error)
}

// sendWithRetry 只重試列表中確實留下失敗訊息的送出，其他錯誤原樣回傳
func sendWithRetry(ctx context.Context, s messageSender, content string, retries int) (chatsync.Message, error) {
	msg, err := s.Send(ctx, content)
	for i := 0; err != nil && i < retries && msg.State == chatsync.StateFailed && chatsync.Retryable(err); i++ {
		msg, err = s.Retry(ctx, msg.ID)
	}
	return msg, err
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"event_chat/internal/chatsync"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a channel or private thread",
		Long: `Load the latest page of the selected scope and print new messages as they arrive.

Scopes:
  chatclient watch --event e1                      Broadcast channel
  chatclient watch --event e1 --thread t1          Existing private thread
  chatclient watch --event e1 --recipient p2       Private thread with a participant`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newViewPrinter(cmd.OutOrStdout())
			cc, err := newClientContext(cmd, printer.Print)
			if err != nil {
				return err
			}
			defer cc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				srv := &http.Server{
					Addr:              addr,
					Handler:           promhttp.HandlerFor(cc.metrics, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						cc.log.Warn("metrics server failed", zap.Error(err))
					}
				}()
				defer srv.Close()
			}

			if cc.scope.IsPrivate() {
				if _, err := cc.engine.RefreshThreads(ctx, cc.scope.EventID); err != nil {
					return fmt.Errorf("list threads: %w", err)
				}
			}
			if err := cc.engine.Select(ctx, cc.scope); err != nil && !errors.Is(err, context.Canceled) {
				// 抓取失敗可以恢復，推送仍會繼續
				if errors.Is(err, chatsync.ErrNotReady) {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "initial load failed: %v\n", err)
			}

			if more, _ := cmd.Flags().GetInt("history"); more > 0 {
				for i := 0; i < more && cc.engine.View().HasMore; i++ {
					if err := cc.engine.LoadMore(ctx); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "load older messages: %v\n", err)
						break
					}
				}
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().String("metrics-addr", "", "serve client metrics on this address")
	cmd.Flags().Int("history", 0, "number of older pages to load after the latest one")

	return cmd
}

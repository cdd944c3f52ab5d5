package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"event_chat/internal/chatsync"
	"event_chat/internal/logging"
	"event_chat/pkg/config"
)

const appName = "chatclient"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Event chat client",
		Long:          "chatclient watches and posts to event channels and private threads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("server", "", "server base url (default from config client.base_url)")
	cmd.PersistentFlags().String("token", "", "bearer token (default from config client.token)")
	cmd.PersistentFlags().String("identity", "me", "stable identity used for participant lookups")
	cmd.PersistentFlags().String("event", "", "event id")
	cmd.PersistentFlags().String("thread", "", "private thread id")
	cmd.PersistentFlags().String("recipient", "", "recipient participant id for a private thread")
	cmd.PersistentFlags().Bool("anonymous", false, "open a new private thread under your pseudonym")
	cmd.PersistentFlags().String("log-level", "warn", "log level")
	_ = cmd.MarkPersistentFlagRequired("event")

	cmd.AddCommand(
		NewWatchCmd(),
		NewSendCmd(),
		NewThreadsCmd(),
	)

	return cmd
}

// clientContext 每個子命令共用的引擎與設定
type clientContext struct {
	engine  *chatsync.Engine
	scope   chatsync.Scope
	log     *zap.Logger
	metrics *prometheus.Registry
}

func (c *clientContext) Close() {
	c.engine.Close()
	_ = c.log.Sync()
}

// newClientContext 依旗標與 config 組出引擎；onChange 可為 nil
func newClientContext(cmd *cobra.Command, onChange func(chatsync.View)) (*clientContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()

	level, _ := flags.GetString("log-level")
	log, err := logging.New(level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	baseURL, _ := flags.GetString("server")
	if baseURL == "" {
		baseURL = cfg.Client.BaseURL
	}
	token, _ := flags.GetString("token")
	if token == "" {
		token = cfg.Client.Token
	}
	identity, _ := flags.GetString("identity")
	session := chatsync.StaticSession{Token: token, Identity: identity}

	scope, err := scopeFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	store := chatsync.NewHTTPStore(baseURL, session, nil)
	engine := chatsync.NewEngine(chatsync.EngineConfig{
		Store:        store,
		Feed:         chatsync.NewWebSocketFeed(baseURL, session, cfg.Client.ReconnectBackoff, log.Named("feed")),
		Participants: chatsync.NewParticipantResolver(store, cfg.Client.ParticipantTTL, log.Named("participants")),
		Session:      session,
		Logger:       log,
		Metrics:      chatsync.NewMetrics(reg),
		PageSize:     cfg.Client.PageSize,
		OnChange:     onChange,
	})

	return &clientContext{engine: engine, scope: scope, log: log, metrics: reg}, nil
}

func scopeFromFlags(cmd *cobra.Command) (chatsync.Scope, error) {
	flags := cmd.Flags()
	eventID, _ := flags.GetString("event")
	threadID, _ := flags.GetString("thread")
	recipientID, _ := flags.GetString("recipient")
	anonymous, _ := flags.GetBool("anonymous")

	scope := chatsync.Scope{EventID: eventID, Channel: chatsync.ChannelBroadcast}
	if threadID == "" && recipientID == "" {
		if anonymous {
			return scope, fmt.Errorf("--anonymous needs --recipient")
		}
		return scope, nil
	}
	scope.Channel = chatsync.ChannelPrivate
	scope.ThreadID = threadID
	scope.RecipientID = recipientID
	scope.Anonymous = anonymous
	return scope, nil
}

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/leofalp/chatmux/core/client"
	"github.com/leofalp/chatmux/core/client/middleware"
	"github.com/leofalp/chatmux/core/config"
	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/observability/slogobs"
)

const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
)

// app is the per-invocation wiring of configuration, logging and client.
type app struct {
	cfg      *config.Config
	client   *client.Client
	observer *slogobs.Observer
}

func (opts *globalOptions) newApp(logOutput io.Writer) (*app, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}

	level := firstNonEmpty(opts.logLevel, cfg.Log.Level)
	format := firstNonEmpty(opts.logFormat, cfg.Log.Format)
	logFile := firstNonEmpty(opts.logFile, cfg.Log.File)

	observerOptions := []slogobs.Option{slogobs.WithOutput(logOutput)}
	if level != "" {
		observerOptions = append(observerOptions, slogobs.WithLevel(slogobs.ParseLogLevel(level)))
	}
	if format != "" {
		observerOptions = append(observerOptions, slogobs.WithFormat(slogobs.ParseFormat(format)))
	}
	observerOptions = append(observerOptions, slogobs.WithLogFile(logFile, logFileMaxSizeMB, logFileMaxBackups))
	observer := slogobs.New(observerOptions...)

	timeout, err := time.ParseDuration(opts.timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid --timeout: %w", err)
	}

	scope := cfg.Scope()
	scope.AgentID = opts.agentID
	if opts.kbID != 0 {
		scope.KnowledgeBaseID = opts.kbID
	}
	if opts.maxChunks != 0 {
		scope.MaxChunks = opts.maxChunks
	}
	if scope.AgentID != "" {
		if _, ok := cfg.Agent(scope.AgentID); !ok {
			return nil, fmt.Errorf("unknown agent %q", scope.AgentID)
		}
	}

	c, err := client.New(cfg.BuildRegistry(nil),
		client.WithObserver(observer),
		client.WithScope(scope),
		client.WithMiddleware(
			middleware.NewTimeoutMiddleware(timeout,
				client.OpListConversations,
				client.OpGetMessages,
				client.OpDeleteConversation,
				client.OpFeedback,
			),
			middleware.NewRetryMiddleware(middleware.RetryConfig{}),
			middleware.NewLoggingMiddleware(observer.Logger(), middleware.LogLevelMinimal),
		),
	)
	if err != nil {
		return nil, err
	}

	if cfg.DemoMode() {
		observer.Logger().Warn("No workflow API key configured, answering in demo mode")
	}
	return &app{cfg: cfg, client: c, observer: observer}, nil
}

// provider resolves a provider id flag value.
func (a *app) provider(id string) (chat.Provider, error) {
	return a.client.Registry().Get(chat.ID(id))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// Package cli implements the chatmux command line front-end. Every command
// builds a fresh client from the environment, so conversations are addressed
// by their namespaced backend ids (for example "dify_3f2a...").
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	envFile   string
	logLevel  string
	logFormat string
	logFile   string
	agentID   string
	kbID      int64
	maxChunks int
	timeout   string
}

// Execute boots the CLI.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "chatmux: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "chatmux",
		Short:         "chatmux talks to workflow and knowledge-base chat backends through one interface",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file loaded before reading the environment")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace|debug|info|warn|error); overrides CHATMUX_LOG_LEVEL")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (compact|json); overrides CHATMUX_LOG_FORMAT")
	flags.StringVar(&opts.logFile, "log-file", "", "Write logs to a rotating file instead of stderr")
	flags.StringVar(&opts.agentID, "agent", "", "Agent whose workflow endpoint to use")
	flags.Int64Var(&opts.kbID, "kb", 0, "Knowledge base id for RAG calls; overrides RAG_KNOWLEDGE_BASE_ID")
	flags.IntVar(&opts.maxChunks, "max-chunks", 0, "Retrieval depth for RAG answers")
	flags.StringVar(&opts.timeout, "timeout", "30s", "Deadline for listing, history, delete and feedback calls")

	cmd.AddCommand(
		newProvidersCommand(opts),
		newAgentsCommand(opts),
		newConversationsCommand(opts),
		newMessagesCommand(opts),
		newSendCommand(opts),
		newDeleteCommand(opts),
		newFeedbackCommand(opts),
		newPreviewCommand(opts),
	)
	return cmd
}

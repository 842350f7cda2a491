package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatmux/core/cost"
	"github.com/leofalp/chatmux/providers/chat"
)

const timeLayout = "2006-01-02 15:04"

func newConversationsCommand(opts *globalOptions) *cobra.Command {
	var providerID string
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List backend conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			conversations, err := a.client.ListConversations(cmd.Context(), chat.ID(providerID))
			if err != nil {
				return err
			}
			if len(conversations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations.")
				return nil
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "ID\tUPDATED\tTITLE")
			for _, conversation := range conversations {
				fmt.Fprintf(out, "%s\t%s\t%s\n", conversation.ID, conversation.UpdatedAt.Local().Format(timeLayout), conversation.Title)
			}
			return out.Flush()
		},
	}
	cmd.Flags().StringVarP(&providerID, "provider", "p", string(chat.ProviderWorkflow), "Provider id (dify|rag)")
	return cmd
}

func newMessagesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "messages CONVERSATION_ID",
		Short: "Print the messages of a backend conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			conversation, err := a.openConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), conversation.Messages)
			if summary := cost.Summarize(conversation.Messages); summary.Answers > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Usage over %d answer(s): %s\n", summary.Answers, summary.Usage)
			}
			return nil
		},
	}
}

func newDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CONVERSATION_ID",
		Short: "Delete a backend conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			conversation, err := a.importConversation(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteConversation(cmd.Context(), conversation.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// importConversation registers a namespaced backend id in the store without
// fetching its history.
func (a *app) importConversation(localID string) (chat.Conversation, error) {
	provider, nativeID, err := a.client.Registry().ResolveLocalID(localID)
	if err != nil {
		return chat.Conversation{}, err
	}
	conversation, _ := a.client.Store().ImportHistory(chat.Conversation{
		ID:             localID,
		ProviderConvID: nativeID,
		Provider:       provider.ID(),
	})
	return conversation, nil
}

// openConversation imports a namespaced backend id and loads its history.
func (a *app) openConversation(ctx context.Context, localID string) (chat.Conversation, error) {
	provider, nativeID, err := a.client.Registry().ResolveLocalID(localID)
	if err != nil {
		return chat.Conversation{}, err
	}
	return a.client.OpenConversation(ctx, chat.Conversation{
		ID:             localID,
		ProviderConvID: nativeID,
		Provider:       provider.ID(),
	})
}

func printMessages(out io.Writer, messages []*chat.Message) {
	for _, message := range messages {
		header := fmt.Sprintf("[%s] %s", message.Role, message.Timestamp.Local().Format(timeLayout))
		if message.MessageID != "" {
			header += "  #" + message.MessageID
		}
		if feedback := feedbackLabel(message); feedback != "" {
			header += "  (" + feedback + ")"
		}
		fmt.Fprintln(out, header)
		fmt.Fprintln(out, strings.TrimRight(message.Content, "\n"))
		printSources(out, message.Sources)
		fmt.Fprintln(out)
	}
}

func printSources(out io.Writer, sources []chat.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "Sources:")
	for index, source := range sources {
		label := source.Filename
		if label == "" {
			label = fmt.Sprintf("source %d", index+1)
		}
		line := fmt.Sprintf("  %d. %s", index+1, label)
		if source.URL != "" {
			line += " <" + source.URL + ">"
		}
		fmt.Fprintln(out, line)
	}
}

func feedbackLabel(message *chat.Message) string {
	switch {
	case message.Liked != nil && *message.Liked:
		return "liked"
	case message.Disliked != nil && *message.Disliked:
		return "disliked"
	}
	return ""
}

// elapsed formats a duration for status lines.
func elapsed(start time.Time) string {
	return time.Since(start).Round(10 * time.Millisecond).String()
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatmux/providers/chat"
)

func newFeedbackCommand(opts *globalOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "feedback CONVERSATION_ID MESSAGE_ID like|dislike",
		Short: "Rate an assistant message",
		Long: "Rate an assistant message. MESSAGE_ID is the backend message id shown " +
			"after '#' by the messages command.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating := chat.Rating(args[2])
			if !rating.Valid() {
				return fmt.Errorf("%w: %q (want like or dislike)", chat.ErrInvalidRating, args[2])
			}

			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			conversation, err := a.openConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var localID string
			for _, message := range conversation.Messages {
				if message.MessageID == args[1] && message.Role == chat.RoleAssistant {
					localID = message.ID
					break
				}
			}
			if localID == "" {
				return fmt.Errorf("no assistant message %s in %s", args[1], args[0])
			}

			if err := a.client.Feedback(cmd.Context(), conversation.ID, localID, rating, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", rating, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Optional explanation sent with the rating")
	return cmd
}

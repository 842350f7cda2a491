package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatmux/core/cost"
	"github.com/leofalp/chatmux/providers/chat"
)

func newSendCommand(opts *globalOptions) *cobra.Command {
	var (
		providerID     string
		conversationID string
		files          []string
	)
	cmd := &cobra.Command{
		Use:   "send MESSAGE",
		Short: "Send a message and stream the answer",
		Long: "Send a message and stream the answer. Without --conversation a new " +
			"conversation is started; its id is printed once the backend assigns one. " +
			"Interrupting with Ctrl-C stops the answer and keeps what arrived.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			attachments, err := loadFiles(files)
			if err != nil {
				return err
			}

			var conversation chat.Conversation
			if conversationID != "" {
				conversation, err = a.importConversation(conversationID)
			} else {
				conversation, err = a.client.NewConversation(chat.ID(providerID))
			}
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			printer := &streamPrinter{out: cmd.OutOrStdout(), provider: conversation.Provider}
			start := time.Now()
			reply, sendErr := a.client.SendMessage(ctx, conversation.ID, strings.Join(args, " "), attachments, printer.handle)
			printer.finish()

			if warning := a.client.Store().Error(); sendErr == nil && warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
			}
			switch {
			case chat.IsCancelled(sendErr):
				fmt.Fprintf(cmd.ErrOrStderr(), "[stopped after %s]\n", elapsed(start))
				return nil
			case sendErr != nil:
				return sendErr
			}

			if stored, ok := a.client.Store().Conversation(conversation.ID); ok && len(stored.Messages) > 0 {
				printSources(cmd.OutOrStdout(), stored.Messages[len(stored.Messages)-1].Sources)
			}
			if reply != nil {
				if reply.MessageID != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "message %s, %s\n", reply.MessageID, elapsed(start))
				}
				if usage, ok := cost.FromMetadata(reply.Metadata); ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "usage: %s\n", usage)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&providerID, "provider", "p", string(chat.ProviderWorkflow), "Provider id for new conversations (dify|rag)")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue a backend conversation by id")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Attach a file (repeatable)")
	return cmd
}

// streamPrinter writes cumulative content events as they grow.
type streamPrinter struct {
	out      io.Writer
	provider chat.ID
	printed  string
}

func (p *streamPrinter) handle(event chat.StreamEvent) {
	switch event.Type {
	case chat.EventStart:
		if event.ConversationID != "" {
			fmt.Fprintf(p.out, "conversation %s\n\n", chat.LocalID(p.provider, event.ConversationID))
		}
	case chat.EventContent, chat.EventEnd:
		p.write(event.Content)
	}
}

func (p *streamPrinter) write(content string) {
	if strings.HasPrefix(content, p.printed) {
		io.WriteString(p.out, content[len(p.printed):])
	} else {
		// Replaced answer: restart on a fresh line.
		fmt.Fprintf(p.out, "\n%s", content)
	}
	p.printed = content
}

func (p *streamPrinter) finish() {
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.out)
	}
}

// loadFiles describes local files as lazily opened attachments.
func loadFiles(paths []string) ([]chat.File, error) {
	files := make([]chat.File, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("attachment: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("attachment %s is a directory", path)
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		files = append(files, chat.File{
			Name:        filepath.Base(path),
			ContentType: contentType,
			Size:        info.Size(),
			Open:        func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return files, nil
}

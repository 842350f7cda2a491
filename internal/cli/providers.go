package cli

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/chat/rag"
)

func newProvidersCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "ID\tNAME\tSTREAMING\tFILES\tFEEDBACK\tHISTORY\tSOURCES")
			for _, provider := range a.client.Registry().Providers() {
				caps := provider.Capabilities()
				files := "no"
				if caps.Files.Enabled {
					files = "yes"
					if caps.Files.MaxCount > 0 {
						files = fmt.Sprintf("up to %d", caps.Files.MaxCount)
					}
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					provider.ID(), provider.Name(),
					yesNo(caps.Streaming), files, yesNo(caps.Feedback), yesNo(caps.History), yesNo(caps.Sources),
				)
			}
			return out.Flush()
		},
	}
}

func newAgentsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List configured workflow agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if len(a.cfg.Agents) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No agents configured.")
				return nil
			}

			agents := append([]chat.Agent(nil), a.cfg.Agents...)
			sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(out, "ID\tNAME\tBASE URL\tDESCRIPTION")
			for _, agent := range agents {
				baseURL := agent.Endpoint.BaseURL
				if baseURL == "" {
					baseURL = "(default)"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", agent.ID, agent.Name, baseURL, agent.Description)
			}
			return out.Flush()
		},
	}
}

func newPreviewCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE_ID",
		Short: "Resolve an openable link for a knowledge-base source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid file id %q: %w", args[0], err)
			}
			a, err := opts.newApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			provider, err := a.provider(string(chat.ProviderRAG))
			if err != nil {
				return err
			}
			ragProvider, ok := provider.(*rag.RAGProvider)
			if !ok {
				return fmt.Errorf("provider %s cannot resolve file previews", provider.ID())
			}

			link, filename, err := ragProvider.PreviewURL(cmd.Context(), fileID)
			if err != nil {
				return err
			}
			if filename != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", filename, link)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chat"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/retrieval"
)

func newAskCmd(a *app) *cobra.Command {
	var user, session string

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a question against the indexed documents",
		Long: `Ask a question the same way the chat endpoint does. Pass --session to continue
an earlier conversation; the session id is printed after every answer.

Examples:
  docctl ask "How many remote days are allowed?" --user jane@example.com
  docctl ask "And who approves them?" --user jane@example.com --session 6f1c...`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			resp := s.Orchestrator.Respond(cmd.Context(), chat.Request{
				UserEmail: user,
				Message:   strings.Join(args, " "),
				SessionID: session,
			})

			fmt.Fprintln(a.stdout, resp.Response)
			if resp.Error != "" {
				return errors.New(resp.Error)
			}

			if len(resp.Sources) > 0 {
				fmt.Fprintln(a.stdout, "\nSources:")
				for i, src := range resp.Sources {
					fmt.Fprintf(a.stdout, "  [%d] %s (%s) relevance %.2f\n", i+1, src.Title, src.Department, src.RelevanceScore)
				}
			}
			if resp.ConfidenceScore != nil {
				fmt.Fprintf(a.stdout, "\nConfidence: %.2f\n", *resp.ConfidenceScore)
			}
			fmt.Fprintf(a.stdout, "Session: %s\n", resp.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "docctl@localhost.local", "email of the asking employee")
	cmd.Flags().StringVar(&session, "session", "", "session id of a conversation to continue")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		k       int
		filters retrieval.Filters
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Show the chunks most similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			results, err := s.Retriever.Retrieve(cmd.Context(), strings.Join(args, " "), k, filters)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(a.stdout, "No matching chunks.")
				return nil
			}

			for i, r := range results {
				fmt.Fprintf(a.stdout, "%d. %s (%s) doc=%d chunk=%d score=%.3f\n",
					i+1, r.Metadata.Title, r.Metadata.Department, r.Metadata.DocumentID, r.Metadata.ChunkIndex, r.RelevanceScore)
				fmt.Fprintf(a.stdout, "   %s\n", truncate(r.Content, 160))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of results (default: configured topK)")
	cmd.Flags().StringVar(&filters.Department, "department", "", "only chunks of this department")
	cmd.Flags().StringVar(&filters.ContentType, "content-type", "", "only chunks of this content type")
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

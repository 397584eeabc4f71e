package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/ingestion"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/models"
)

func newIngestCmd(a *app) *cobra.Command {
	var title, department, contentType, uploadedBy string

	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Extract, chunk and index one or more documents",
		Long: `Extract the text of each file, split it into overlapping chunks and index them.

Examples:
  docctl ingest handbook.pdf --department HR --content-type policy
  docctl ingest runbooks/*.md --department Engineering`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}

				docTitle := title
				if docTitle == "" || len(args) > 1 {
					docTitle = filepath.Base(path)
				}

				res, err := s.Pipeline.Upload(cmd.Context(), ingestion.UploadRequest{
					Filename:    filepath.Base(path),
					Title:       docTitle,
					Department:  department,
					ContentType: contentType,
					UploadedBy:  uploadedBy,
					Content:     data,
				})
				if err != nil {
					return fmt.Errorf("failed to ingest %s: %w", path, err)
				}

				fmt.Fprintf(a.stdout, "ingested %s as document %d (%d chunks)\n", path, res.Document.ID, res.ChunksCreated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "document title (single file only; defaults to the file name)")
	cmd.Flags().StringVar(&department, "department", "general", "owning department")
	cmd.Flags().StringVar(&contentType, "content-type", "document", "content category such as policy or guide")
	cmd.Flags().StringVar(&uploadedBy, "uploaded-by", "docctl", "uploader recorded on the document")
	return cmd
}

func newDocumentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "List, inspect and delete indexed documents",
	}
	cmd.AddCommand(newDocumentsListCmd(a), newDocumentsDeleteCmd(a))
	return cmd
}

func newDocumentsListCmd(a *app) *cobra.Command {
	var filter models.DocumentFilter

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List active documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			docs, err := s.Store.ListDocuments(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Fprintln(a.stdout, "No documents. Add one with: docctl ingest FILE")
				return nil
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDEPARTMENT\tTYPE\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Title, d.Department, d.ContentType, d.UploadedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Department, "department", "", "only documents of this department")
	cmd.Flags().StringVar(&filter.ContentType, "content-type", "", "only documents of this content type")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of documents")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of documents to skip")
	return cmd
}

func newDocumentsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Deactivate a document and drop its vectors",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			if err := s.Pipeline.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "deleted document %d\n", id)
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show document and conversation totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			docs, err := s.Pipeline.Stats(cmd.Context())
			if err != nil {
				return err
			}
			chats, err := s.Store.ChatAnalytics(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "documents\t%d\n", docs.TotalDocuments)
			fmt.Fprintf(w, "chunks\t%d\n", docs.TotalChunks)
			fmt.Fprintf(w, "vectors\t%d\n", docs.VectorChunks)
			depts := make([]string, 0, len(docs.Departments))
			for dept := range docs.Departments {
				depts = append(depts, dept)
			}
			sort.Strings(depts)
			for _, dept := range depts {
				fmt.Fprintf(w, "  %s\t%d\n", dept, docs.Departments[dept])
			}
			fmt.Fprintf(w, "conversations\t%d\n", chats.ActiveConversations)
			fmt.Fprintf(w, "messages\t%d\n", chats.TotalMessages)
			if chats.AverageConfidence != nil {
				fmt.Fprintf(w, "avg confidence\t%.3f\n", *chats.AverageConfidence)
			}
			return w.Flush()
		},
	}
}

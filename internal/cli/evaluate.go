package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/evaluation"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var user, output string

	cmd := &cobra.Command{
		Use:   "evaluate DATASET",
		Short: "Score chatbot answers against a ground-truth dataset",
		Long: `Run every question of a JSON dataset through the chatbot and compare each answer
with its ground truth by embedding similarity.

The dataset looks like:
  {"items": [{"question": "...", "ground_truth": "...", "category": "hr"}]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read dataset: %w", err)
			}

			dataset, err := evaluation.LoadDatasetFromJSON(data)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			evaluator := evaluation.NewEvaluator(s.Orchestrator, s.Embedder, user)
			report, err := evaluator.RunDatasetEvaluation(cmd.Context(), dataset)
			if err != nil {
				return err
			}

			fmt.Fprint(a.stdout, evaluation.GenerateReport(report))

			if output != "" {
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, out, 0o644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				fmt.Fprintf(a.stdout, "report written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", evaluation.DefaultUserEmail, "email the evaluation conversations are recorded under")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the full report as JSON to this file")
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the embedding cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Delete every cached embedding",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if s.Cache == nil {
				return fmt.Errorf("redis cache is disabled")
			}

			n, err := s.Cache.FlushEmbeddings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "removed %d cached embeddings\n", n)
			return nil
		},
	})
	return cmd
}

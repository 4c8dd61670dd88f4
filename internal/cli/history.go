package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/rental-check/internal/render"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		documentID string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded extraction runs",
		Long: `History lists runs recorded with "extract --record", newest first.
Use "history show <run-id>" to print the answers of one run.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return a.bindFlags(cmd, map[string]string{"db": "db_path"})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, a.logger(cmd))
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), documentID, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tDOCUMENT\tMODEL\tTRUNCATED\tCREATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.RunID, r.DocumentName, r.Model, r.Truncated, r.CreatedAt)
			}
			return tw.Flush()
		},
	}

	cmd.PersistentFlags().String("db", "", "history database (default ~/.rental-check/rental-check.db)")
	cmd.Flags().StringVar(&documentID, "document", "", "only list runs of this document ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print runs as JSON")

	cmd.AddCommand(newHistoryShowCmd(a), newHistoryDeleteCmd(a))
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the answers of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, a.logger(cmd))
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Fprintf(w, "Document: %s\nModel: %s\nCreated: %s\n", rec.DocumentName, rec.Model, rec.CreatedAt)
			if rec.Truncated {
				fmt.Fprintf(w, "Note: only the first part of this contract (%d characters) was read.\n", rec.OriginalChars)
			}
			fmt.Fprintln(w)
			return render.Text(w, rec.Answers)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run as JSON")
	return cmd
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, a.logger(cmd))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect batch runs recorded with --db",
		Long: `Inspect batch runs recorded in a run database.

Examples:
  lanedetect runs list --db runs.db
  lanedetect runs show 5f0c... --db runs.db --format json
  lanedetect runs delete 5f0c... --db runs.db`,
	}
	cmd.PersistentFlags().String("db", "", "run database (defaults to store.path)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, st, func(s *store.Store) error {
				runs, err := s.ListRuns(limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "RUN ID\tSTARTED\tFRAMES\tFAILED\tFALLBACK\tSOURCE")
				for _, r := range runs {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.RunID,
						time.Unix(0, r.StartedAt).UTC().Format(time.RFC3339),
						r.FrameCount, r.FailedCount, r.FallbackCount, r.Source)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().Int("limit", 20, "maximum number of runs (0 = all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withStore(cmd, st, func(s *store.Store) error {
				run, err := s.GetRun(args[0])
				if err != nil {
					return err
				}
				frames, err := s.FrameResults(run.RunID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if format == outputFormatJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"run": run, "frames": frames})
				}
				_, _ = fmt.Fprintf(out, "Run %s (%s)\n", run.RunID, run.Source)
				_, _ = fmt.Fprintf(out, "  frames: %d, failed: %d, fallback: %d\n",
					run.FrameCount, run.FailedCount, run.FallbackCount)
				for _, f := range frames {
					switch {
					case f.Error != "":
						_, _ = fmt.Fprintf(out, "  %s: error: %s\n", f.Source, f.Error)
					case f.Fallback:
						_, _ = fmt.Fprintf(out, "  %s: no lanes (fallback)\n", f.Source)
					default:
						_, _ = fmt.Fprintf(out, "  %s: %d segment(s), %d hough lines\n", f.Source, len(f.Segments), f.Lines)
					}
				}
				return nil
			})
		},
	}
	show.Flags().StringP("format", "f", outputFormatText, "output format: text or json")

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, st, func(s *store.Store) error {
				if err := s.DeleteRun(args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func withStore(cmd *cobra.Command, st *cliState, fn func(*store.Store) error) error {
	cfg, err := st.load()
	if err != nil {
		return err
	}
	path := cfg.Store.Path
	if cmd.Flags().Changed("db") {
		path, _ = cmd.Flags().GetString("db")
	}
	if path == "" {
		return errors.New("no run database configured (use --db or store.path)")
	}
	s, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open run database: %w", err)
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

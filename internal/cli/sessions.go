package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/store"
)

func newSessionsCommand(g *globals) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recently closed sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.config.Store.Path == "" {
				return errors.New("store.path is not configured")
			}

			st, err := store.New(g.config.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.Sessions().List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "No sessions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tREMOTE\tSTARTED\tDURATION\tRECEIVED\tPROCESSED\tSKIPPED\tDROPPED\tEMITTED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					r.ID, r.Remote,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Duration(),
					r.Received, r.Processed, r.Skipped, r.Dropped, r.Emitted)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum sessions to list (0 lists all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

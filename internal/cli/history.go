package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ksinstall/internal/paths"
	"ksinstall/internal/store"
)

var historyLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scans, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of scans to list (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir, err := a.installDir()
	if err != nil {
		return err
	}
	st, err := store.Open(paths.HistoryFile(dir))
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		if runs == nil {
			runs = []store.Run{}
		}
		return writeJSON(cmd, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(no scans recorded)")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTARGET\tFRAMEWORKS\tEXIT\tCONTROLS\tSTARTED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.Kind,
			nonEmptyOrDash(r.Target),
			nonEmptyOrDash(strings.Join(r.Frameworks, ",")),
			r.ExitCode,
			r.Controls,
			r.StartedAt.Local().Format(time.DateTime),
			r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond),
		)
	}
	return w.Flush()
}

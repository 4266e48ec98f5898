package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/tracing"
)

var reportCmd = &cobra.Command{
	Use:   "report <trace-db>",
	Short: "List the paging events recorded by a run.",
	Long: "`report` reads the paging events that `run --trace-db` " +
		"recorded and lists them in the order they happened.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := eventQuery(cmd)
		if err != nil {
			return err
		}

		return report(cmd.Context(), args[0], q, cmd.OutOrStdout())
	},
}

func init() {
	f := reportCmd.Flags()
	f.Uint32("pid", 0, "only list the events of this process")
	f.String("event", "", "only list events of this kind, such as SwapOut")
	f.Int("limit", 50, "list at most this many events, 0 for all")

	rootCmd.AddCommand(reportCmd)
}

func eventQuery(cmd *cobra.Command) (tracing.EventQuery, error) {
	f := cmd.Flags()

	pid, err := f.GetUint32("pid")
	if err != nil {
		return tracing.EventQuery{}, err
	}

	event, err := f.GetString("event")
	if err != nil {
		return tracing.EventQuery{}, err
	}

	limit, err := f.GetInt("limit")
	if err != nil {
		return tracing.EventQuery{}, err
	}

	if limit < 0 {
		return tracing.EventQuery{}, fmt.Errorf("negative limit %d", limit)
	}

	return tracing.EventQuery{
		PID:      vm.PID(pid),
		Position: event,
		Limit:    limit,
	}, nil
}

// report prints the events selected by q from the database at path. The
// path may be given with or without the .sqlite3 suffix.
func report(
	ctx context.Context,
	path string,
	q tracing.EventQuery,
	out io.Writer,
) error {
	reader, err := openTrace(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	events, total, err := tracing.ReadEvents(ctx, reader, q)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "TIME\tEVENT\tPID\tVADDR\tKIND\tFRAME\tSLOT\tERROR")
	for _, e := range events {
		fmt.Fprintf(w, "%.6f\t%s\t%d\t0x%x\t%s\t0x%x\t%d\t%s\n",
			e.Time, e.Position, e.PID, e.VAddr, e.Kind, e.Frame, e.Slot,
			e.Error)
	}

	w.Flush()

	fmt.Fprintf(out, "%d of %d events\n", len(events), total)

	return nil
}

func openTrace(path string) (datarecording.DataReader, error) {
	for _, p := range []string{path, path + ".sqlite3"} {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return datarecording.NewReader(p), nil
		}
	}

	return nil, fmt.Errorf("no trace database at %s", path)
}

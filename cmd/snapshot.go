package cmd

import (
	"fmt"
	"os"
	"time"

	units "github.com/docker/go-units"
	"github.com/jandubois/snmp-probe/internal/oid"
	"github.com/jandubois/snmp-probe/internal/snapshot"
	"github.com/jandubois/snmp-probe/internal/snmp"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record an agent's values for offline checks",
	Long: `Snapshots record the values of an agent subtree into a SQLite file.
Checks can then run against the file with --snapshot, which is useful for
developing a configuration away from the device.`,
}

var snapshotCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Walk the agent and record every value under a root",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotCapture,
}

var snapshotInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "List the captures stored in a snapshot file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotInfo,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotCaptureCmd)
	snapshotCmd.AddCommand(snapshotInfoCmd)

	snapshotCaptureCmd.Flags().String("root", "1.3.6.1", "Subtree to record")
	snapshotCaptureCmd.Flags().StringP("out", "o", "", "Snapshot file to write (required)")
	snapshotCaptureCmd.Flags().Bool("replace", false, "Discard earlier captures in the file")
	snapshotCaptureCmd.MarkFlagRequired("out")
}

func runSnapshotCapture(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd)

	rootFlag, _ := cmd.Flags().GetString("root")
	root, err := oid.Parse(rootFlag)
	if err != nil {
		return fmt.Errorf("invalid --root: %w", err)
	}
	out, _ := cmd.Flags().GetString("out")
	replace, _ := cmd.Flags().GetBool("replace")

	store, err := snapshot.Open(ctx, out)
	if err != nil {
		return err
	}
	defer store.Close()

	if replace {
		logger.Info("discarding earlier captures", "path", out)
		if err := store.Reset(ctx); err != nil {
			return err
		}
	}

	cfg := clientConfig(cmd)
	client, err := snmp.Dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	start := time.Now()
	logger.Info("walking agent", "host", cfg.Host, "root", root.String())
	c, err := store.Record(ctx, client, cfg.Host, root)
	if err != nil {
		return err
	}

	size := "unknown size"
	if fi, err := os.Stat(out); err == nil {
		size = units.HumanSize(float64(fi.Size()))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "captured %d values under %s from %s into %s (%s) in %s\n",
		c.Varbinds, root, cfg.Host, out, size, units.HumanDuration(time.Since(start)))
	return nil
}

func runSnapshotInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	store, err := snapshot.OpenExisting(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	captures, err := store.Captures(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if fi, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "%s: %s, %d captures\n", path, units.HumanSize(float64(fi.Size())), len(captures))
	}
	for _, c := range captures {
		fmt.Fprintf(w, "#%d  %s  %s  %d values  %s ago\n",
			c.ID, c.Host, c.Root, c.Varbinds, units.HumanDuration(time.Since(c.CapturedAt)))
	}
	return nil
}

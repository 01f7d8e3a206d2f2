package main

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/portgraph/pkg/portgraph"
	"github.com/randalmurphal/portgraph/pkg/portgraph/storage"
	"github.com/spf13/cobra"
)

var snapshotPath string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [graph-id]",
	Short: "Browse persisted node snapshots",
	Long: `Without arguments, lists the graphs with stored snapshots. With a graph
id, lists that graph's snapshots, or prints one with --path.

Snapshots are read from engine.storage_path in the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if engine.StoragePath == "" {
			return errors.New("no snapshot database: set engine.storage_path in the config file")
		}
		store, err := storage.NewSQLiteStore(engine.StoragePath)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			graphs, err := store.Graphs()
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), graphs)
		}

		graphID := args[0]
		if snapshotPath != "" {
			snap, err := portgraph.LoadSnapshot(store, graphID, snapshotPath)
			if err != nil {
				return fmt.Errorf("graph %s: %w", graphID, err)
			}
			return render(cmd.OutOrStdout(), snap)
		}

		infos, err := store.List(graphID)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), infos)
	},
}

func init() {
	snapshotsCmd.Flags().StringVarP(&snapshotPath, "path", "p", "", "semantic path of the node snapshot to print")
	rootCmd.AddCommand(snapshotsCmd)
}

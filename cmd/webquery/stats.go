package main

import (
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/segment"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the header of an index snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := segment.Info(opts.indexPath)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Field", "Value")
			if err := table.Bulk([][]string{
				{"path", opts.indexPath},
				{"version", strconv.FormatUint(uint64(header.Version), 10)},
				{"documents", strconv.FormatUint(uint64(header.DocCount), 10)},
				{"terms", strconv.FormatUint(uint64(header.TermCount), 10)},
				{"generation", strconv.FormatUint(header.Generation, 10)},
				{"payload bytes", strconv.FormatInt(header.PayloadSize, 10)},
				{"created", header.CreatedAt.Format(time.RFC3339)},
			}); err != nil {
				return err
			}
			return table.Render()
		},
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/indexer/segment"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/executor"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/pkg/logger"
)

type rootOptions struct {
	indexPath string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "webquery",
		Short:         "Query a crawled web index",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWriter(os.Stderr, opts.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVarP(&opts.indexPath, "index", "i", "index.db", "path to the index snapshot")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newQueryCmd(opts), newShellCmd(opts), newStatsCmd(opts), newBenchCmd())
	return root
}

func openExecutor(path string) (*executor.Executor, error) {
	idx, _, err := segment.Load(path)
	if err != nil {
		return nil, err
	}
	return executor.New(idx, nil), nil
}

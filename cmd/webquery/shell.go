package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
)

func newShellCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Read queries from standard input, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := openExecutor(opts.indexPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				result, err := exec.Execute(cmd.Context(), parser.Parse(line), limit)
				if err != nil {
					return err
				}
				if err := renderResult(out, result); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum documents to print per query (0 = all)")
	return cmd
}

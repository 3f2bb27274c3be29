package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/executor"
	"github.com/ishanashah/Web-Crawler-and-Search-Engine/internal/searcher/parser"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query <query>...",
		Short: "Run a boolean or phrase query",
		Long: `Run a query against the index. Words are combined with & (and) and | (or),
! negates a word or phrase, "double quotes" match an exact phrase and
parentheses group. Adjacent terms are joined with &.`,
		Example: `  webquery query --index data/index.db 'brown & !"lazy dog"'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := openExecutor(opts.indexPath)
			if err != nil {
				return err
			}
			result, err := exec.Execute(cmd.Context(), parser.Parse(strings.Join(args, " ")), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return renderResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum documents to print (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func renderResult(w io.Writer, result *executor.SearchResult) error {
	if len(result.Documents) > 0 {
		rows := make([][]string, 0, len(result.Documents))
		for _, doc := range result.Documents {
			rows = append(rows, []string{
				strconv.FormatUint(uint64(doc.ID), 10),
				doc.URL,
				strconv.Itoa(doc.Connectivity),
			})
		}
		table := tablewriter.NewWriter(w)
		table.Header("ID", "URL", "Connectivity")
		if err := table.Bulk(rows); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	noun := "hits"
	if result.TotalHits == 1 {
		noun = "hit"
	}
	_, err := fmt.Fprintf(w, "%d %s for %s\n", result.TotalHits, noun, result.Postfix)
	return err
}

package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultBenchQueries = []string{
	"search engine",
	`"web crawler"`,
	"index | query",
	"boolean & !phrase",
	`(link | page) & "inverted index"`,
	"connectivity",
}

type benchConfig struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	queries     []string
}

type benchStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int
	errors    int
	elapsed   time.Duration
}

func (s *benchStats) record(d time.Duration, code int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		return
	}
	s.latencies = append(s.latencies, d)
	s.codes[code]++
}

func (s *benchStats) total() int {
	return len(s.latencies) + s.errors
}

func newBenchCmd() *cobra.Command {
	cfg := benchConfig{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test a running search service",
		Long: `Send queries to a search service from concurrent workers for a fixed
duration, then print throughput, latency percentiles and status codes.`,
		Example: `  webquery bench --url http://localhost:8080 -c 20 -d 10s -q 'brown & fox'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.queries) == 0 {
				cfg.queries = defaultBenchQueries
			}
			stats, err := runBench(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if err := renderBench(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if stats.total() == 0 {
				return fmt.Errorf("no requests completed against %s", cfg.baseURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	cmd.Flags().IntVarP(&cfg.concurrency, "concurrency", "c", 10, "number of concurrent workers")
	cmd.Flags().DurationVarP(&cfg.duration, "duration", "d", 30*time.Second, "test duration")
	cmd.Flags().IntVarP(&cfg.limit, "limit", "n", 10, "limit parameter sent with each query")
	cmd.Flags().StringArrayVarP(&cfg.queries, "query", "q", nil, "query to send (repeatable)")
	return cmd
}

func runBench(ctx context.Context, cfg benchConfig) (*benchStats, error) {
	if cfg.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.concurrency)
	}
	if _, err := url.Parse(cfg.baseURL); err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.concurrency * 2,
			MaxIdleConnsPerHost: cfg.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	stats := &benchStats{codes: make(map[int]int)}
	start := time.Now()
	var g errgroup.Group
	for w := 0; w < cfg.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					cfg.baseURL, url.QueryEscape(cfg.queries[i%len(cfg.queries)]), cfg.limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}
				began := time.Now()
				resp, err := client.Do(req)
				if ctx.Err() != nil {
					if err == nil {
						resp.Body.Close()
					}
					return nil
				}
				if err != nil {
					stats.record(0, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(time.Since(began), resp.StatusCode, nil)
			}
			return nil
		})
	}
	err := g.Wait()
	stats.elapsed = time.Since(start)
	return stats, err
}

func renderBench(w io.Writer, stats *benchStats) error {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	latencies := slices.Clone(stats.latencies)
	slices.Sort(latencies)

	rows := [][]string{
		{"requests", strconv.Itoa(stats.total())},
		{"transport errors", strconv.Itoa(stats.errors)},
		{"requests/sec", fmt.Sprintf("%.2f", float64(stats.total())/stats.elapsed.Seconds())},
	}
	if len(latencies) > 0 {
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		rows = append(rows,
			[]string{"min", latencies[0].String()},
			[]string{"avg", (sum / time.Duration(len(latencies))).String()},
			[]string{"p50", percentile(latencies, 50).String()},
			[]string{"p90", percentile(latencies, 90).String()},
			[]string{"p99", percentile(latencies, 99).String()},
			[]string{"max", latencies[len(latencies)-1].String()},
		)
	}
	codes := make([]int, 0, len(stats.codes))
	for code := range stats.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		rows = append(rows, []string{"status " + strconv.Itoa(code), strconv.Itoa(stats.codes[code])})
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}

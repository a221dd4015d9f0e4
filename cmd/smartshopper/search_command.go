package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pauljones0/smart-shopper/internal/app"
	"github.com/pauljones0/smart-shopper/internal/config"
	"github.com/pauljones0/smart-shopper/internal/logging"
	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/session"
)

type searchOptions struct {
	sort     string
	pages    int
	jsonOut  bool
	wait     time.Duration
	colorize bool
}

// controller is the part of session.Controller the search command drives.
type controller interface {
	Search(ctx context.Context, query string) (session.Snapshot, error)
	LoadMore(ctx context.Context) (session.Snapshot, error)
	SetSortMode(mode models.SortMode) (session.Snapshot, error)
	Snapshot() session.Snapshot
	Wait(ctx context.Context) error
}

func newSearchCommand(verbose *bool) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search every configured marketplace and rank the offers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "error"
			if *verbose {
				level = cfg.LogLevel
			}
			logger := logging.NewFile(os.Stderr, level, cfg.LogFormat)

			a, err := app.Build(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			c := a.NewSession()
			defer c.Close()

			opts.colorize = shouldColorize(cmd.OutOrStdout())
			return runSearch(cmd.Context(), cmd.OutOrStdout(), c, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort mode (relevance, popularity, newest, price_low_to_high, price_high_to_low, sentiment_high, sentiment_low)")
	cmd.Flags().IntVar(&opts.pages, "pages", 1, "Number of result pages to fetch from each source")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the final session snapshot as JSON")
	cmd.Flags().DurationVar(&opts.wait, "wait", time.Minute, "How long to wait for review sentiment (0 skips it)")
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, c controller, query string, opts searchOptions) error {
	if opts.sort != "" {
		if _, err := c.SetSortMode(models.SortMode(opts.sort)); err != nil {
			return err
		}
	}

	snap, err := c.Search(ctx, query)
	if err != nil {
		return err
	}
	for page := 1; page < opts.pages && snap.HasMore; page++ {
		if snap, err = c.LoadMore(ctx); err != nil {
			return err
		}
	}

	var waitErr error
	if opts.wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, opts.wait)
		waitErr = c.Wait(waitCtx)
		cancel()
	}
	snap = c.Snapshot()

	if opts.jsonOut {
		return writeJSON(out, snap)
	}

	printSnapshot(out, snap, opts.colorize)
	if waitErr != nil {
		fmt.Fprintf(out, "\nSentiment analysis still running for %d offers after %s.\n", len(snap.Analyzing), opts.wait)
	}
	return nil
}

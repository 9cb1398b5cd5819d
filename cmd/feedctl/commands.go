package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/infra/scraper"
	"rss-digest/internal/usecase/refresh"
)

// errAllSourcesFailed makes feedctl exit non-zero when a cycle produced
// nothing.
var errAllSourcesFailed = errors.New("every source failed, store left unchanged")

const dateLayout = "2006-01-02 15:04"

func newRefreshCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh cycle",
		Long: `Fetch every feed, merge the results into the store and persist it.

Without --force the cycle only runs when the store is older than REFRESH_TTL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			start := time.Now()
			res, err := e.Service.Refresh(ctx, force)
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			a.logger.Info("refresh finished",
				slog.String("outcome", res.Outcome),
				slog.Int("articles", res.Total),
				slog.Duration("duration", time.Since(start)))

			if a.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), res)
			}
			if res.Outcome == refresh.OutcomeAllSourcesFailed {
				return errAllSourcesFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "refresh even when the store is fresh")
	return cmd
}

func printResult(w io.Writer, res refresh.Result) {
	fmt.Fprintf(w, "Outcome:  %s\n", res.Outcome)
	if !res.Ran {
		fmt.Fprintf(w, "Articles: %d (no cycle ran)\n", res.Total)
		return
	}
	fmt.Fprintf(w, "Articles: %d (%d new, %d merged, %d dropped)\n", res.Total, res.Inserted, res.Merged, res.Dropped)
	fmt.Fprintf(w, "Duration: %s\n", res.Duration.Round(time.Millisecond))
	if len(res.FailedSources) > 0 {
		fmt.Fprintf(w, "Failed:   %s\n", strings.Join(res.FailedSources, ", "))
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		category string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored articles, newest first",
		Long: `List the articles currently in the store. No feed is fetched.

--category accepts any known category, "all" or "tous".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative, got %d", limit)
			}
			ctx := cmd.Context()
			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			if !e.Service.KnownCategory(category) {
				return fmt.Errorf("%w: %q", refresh.ErrInvalidFilter, category)
			}
			articles := e.Service.Articles(category)
			if limit > 0 && len(articles) > limit {
				articles = articles[:limit]
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), articles)
			}
			printArticles(cmd.OutOrStdout(), articles)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", refresh.CategoryAll, "category filter")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of articles, 0 for all")
	return cmd
}

func printArticles(w io.Writer, articles []entity.Article) {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCATEGORY\tSOURCE\tNEW\tTITLE")
	for _, art := range articles {
		date := "-"
		if art.PublishedAt != nil {
			date = art.PublishedAt.UTC().Format(dateLayout)
		}
		isNew := ""
		if art.IsNew {
			isNew = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", date, art.PrimaryCategory(), art.Source, isNew, art.Title)
	}
	_ = tw.Flush()
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the store status report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			rep := e.Service.Status()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			printStatus(cmd.OutOrStdout(), rep)
			return nil
		},
	}
}

func printStatus(w io.Writer, rep refresh.StatusReport) {
	fmt.Fprintf(w, "Status:       %s\n", rep.Status)
	fmt.Fprintf(w, "Articles:     %d (%d new)\n", rep.Articles, rep.NewArticles)
	fmt.Fprintf(w, "Sources:      %d\n", rep.Sources)
	if rep.LastRefreshAt.IsZero() {
		fmt.Fprintln(w, "Last refresh: never")
	} else {
		fmt.Fprintf(w, "Last refresh: %s (%s ago)\n", rep.LastRefreshAt.UTC().Format(time.RFC3339), rep.Age.Round(time.Second))
	}
	for _, warning := range rep.Warnings {
		fmt.Fprintf(w, "Warning:      %s\n", warning)
	}
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List known categories with article counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.engine(ctx, true)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			cats := e.Service.Categories()
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), cats)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLABEL\tARTICLES\tKIND")
			for _, c := range cats {
				kind := "discovered"
				if c.Predefined {
					kind = "predefined"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.Name, c.Label, c.Count, kind)
			}
			return tw.Flush()
		},
	}
}

func newDiagnoseCmd(a *app) *cobra.Command {
	var pause time.Duration
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Probe every configured feed once",
		Long: `Fetch each registered feed once, without retries or circuit breakers,
and report the HTTP status, item count, latest item date and latency.

Exits non-zero when any feed is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.engine(ctx, false)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			diags := e.Fetcher.DiagnoseAll(ctx, e.Registry.Feeds, pause)
			if a.jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), diags); err != nil {
					return err
				}
			} else {
				printDiagnostics(cmd.OutOrStdout(), diags)
			}

			unhealthy := 0
			for _, d := range diags {
				if !d.Healthy() {
					unhealthy++
				}
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d of %d feeds unhealthy", unhealthy, len(diags))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&pause, "pause", 500*time.Millisecond, "delay between feeds")
	return cmd
}

func printDiagnostics(w io.Writer, diags []scraper.FeedDiagnostic) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEED\tSTATUS\tHTTP\tITEMS\tLATEST\tLATENCY\tDETAIL")
	for _, d := range diags {
		latest := "-"
		if d.LatestDate != nil {
			latest = d.LatestDate.UTC().Format(dateLayout)
		}
		detail := d.ErrorMessage
		if d.RedirectURL != "" {
			detail = "-> " + d.RedirectURL
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			d.Name, d.Status, d.HTTPCode, d.ItemCount, latest, d.ResponseTime.Round(time.Millisecond), detail)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

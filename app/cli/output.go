package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/tasks"
)

const localTimeLayout = "2006-01-02 15:04:05 -07:00"

func writeFeeds(w io.Writer, feeds []database.Feed) error {
	if len(feeds) == 0 {
		fmt.Fprintln(w, "No feeds in database.")
		return nil
	}

	fmt.Fprint(w, "Current feeds:\n\n")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range feeds {
		fmt.Fprintf(tw, "%s\t%s\n", f.Alias, f.URL)
	}
	return tw.Flush()
}

func writeFilters(w io.Writer, filters []database.Filter) error {
	if len(filters) == 0 {
		fmt.Fprintln(w, "No filters in database.")
		return nil
	}

	fmt.Fprint(w, "Current filters:\n\n")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range filters {
		lastUpdated := "Never updated"
		if f.LastUpdated != nil {
			lastUpdated = f.LastUpdated.Local().Format(localTimeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Alias, strings.Join(f.Keywords, ", "), filepath.Base(f.ScriptPath), lastUpdated)
	}
	return tw.Flush()
}

// writeReport prints the counters, then whatever successful scripts printed,
// then each feed and filter error. Filters blocked by a feed error are only
// represented by that feed error.
func writeReport(w io.Writer, report *tasks.Report) {
	if len(report.Filters) == 0 {
		fmt.Fprintln(w, "No filters in the database to update.")
		return
	}

	fmt.Fprintf(w, "%d filters processed successfully.\n", report.Successes)
	fmt.Fprintf(w, "%d filters updated.\n", report.Updates)
	fmt.Fprintf(w, "%d filters failed to process.\n", report.Failures)

	for _, outcome := range report.Filters {
		if outcome.Err != nil {
			continue
		}
		for _, result := range outcome.Results {
			if out := strings.TrimRight(result.Stdout, "\n"); out != "" {
				fmt.Fprintln(w, out)
			}
		}
	}

	for _, outcome := range report.Feeds {
		if outcome.Err != nil {
			fmt.Fprintln(w, outcome.Err)
		}
	}
	for _, outcome := range report.Filters {
		if outcome.Err != nil && !outcome.Blocked {
			fmt.Fprintln(w, outcome.Err)
		}
	}
}

package api

import (
	"time"

	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/tasks"
)

type Handler struct {
	store     *database.Store
	scheduler tasks.UpdateSchedulerInterface
}

type feedResponse struct {
	Alias string `json:"alias"`
	URL   string `json:"url"`
}

type filterResponse struct {
	Alias       string     `json:"alias"`
	Keywords    []string   `json:"keywords"`
	ScriptPath  string     `json:"script_path"`
	LastUpdated *time.Time `json:"last_updated"`
}

type feedOutcomeResponse struct {
	Alias   string `json:"alias"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

type filterOutcomeResponse struct {
	Alias      string   `json:"alias"`
	Keywords   []string `json:"keywords"`
	ScriptPath string   `json:"script_path"`
	Actions    int      `json:"actions"`
	Advanced   bool     `json:"advanced"`
	Blocked    bool     `json:"blocked"`
	Error      string   `json:"error,omitempty"`
}

type reportResponse struct {
	FinishedAt time.Time               `json:"finished_at"`
	Error      string                  `json:"error,omitempty"`
	Successes  int                     `json:"successes"`
	Failures   int                     `json:"failures"`
	Updates    int                     `json:"updates"`
	Feeds      []feedOutcomeResponse   `json:"feeds"`
	Filters    []filterOutcomeResponse `json:"filters"`
}

func newReportResponse(result tasks.RunResult) reportResponse {
	resp := reportResponse{
		FinishedAt: result.FinishedAt,
		Feeds:      []feedOutcomeResponse{},
		Filters:    []filterOutcomeResponse{},
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if result.Report == nil {
		return resp
	}

	report := result.Report
	resp.Successes = report.Successes
	resp.Failures = report.Failures
	resp.Updates = report.Updates

	for _, outcome := range report.Feeds {
		resp.Feeds = append(resp.Feeds, feedOutcomeResponse{
			Alias:   outcome.Feed.Alias,
			Entries: outcome.Entries,
			Error:   errorText(outcome.Err),
		})
	}
	for _, outcome := range report.Filters {
		resp.Filters = append(resp.Filters, filterOutcomeResponse{
			Alias:      outcome.Filter.Alias,
			Keywords:   outcome.Filter.Keywords,
			ScriptPath: outcome.Filter.ScriptPath,
			Actions:    len(outcome.Results),
			Advanced:   outcome.Advanced,
			Blocked:    outcome.Blocked,
			Error:      errorText(outcome.Err),
		})
	}

	return resp
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

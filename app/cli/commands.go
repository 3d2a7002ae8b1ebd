package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lysyi3m/rss-actions/app/cfg"
	"github.com/lysyi3m/rss-actions/app/database"
	"github.com/lysyi3m/rss-actions/app/feed"
	"github.com/lysyi3m/rss-actions/app/tasks"
)

type AddFeedCommand struct {
	Args struct {
		Alias string `positional-arg-name:"alias" description:"Name used to refer to the feed"`
		URL   string `positional-arg-name:"url" description:"URL of the feed"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *AddFeedCommand) Execute(args []string) error {
	f, err := database.NewFeed(c.Args.Alias, c.Args.URL)
	if err != nil {
		return err
	}

	err = c.app.withTx(context.Background(), func(tx *database.Tx) error {
		_, err := tx.AddFeed(context.Background(), f)
		return err
	})
	if err != nil {
		return err
	}

	c.app.printf("Successfully added feed %s\n", f.Alias)
	return nil
}

type AddFilterCommand struct {
	Args struct {
		Alias    string   `positional-arg-name:"alias" description:"Alias of the feed to filter" required:"yes"`
		Script   string   `positional-arg-name:"script" description:"Script to run on matching entries" required:"yes"`
		Keywords []string `positional-arg-name:"keywords" description:"Keywords an entry title must all contain"`
	} `positional-args:"yes"`

	app *App
}

func (c *AddFilterCommand) Execute(args []string) error {
	script, err := filepath.Abs(c.Args.Script)
	if err != nil {
		return fmt.Errorf("failed to resolve script path: %w", err)
	}

	filter, err := database.NewFilter(c.Args.Alias, c.Args.Keywords, script)
	if err != nil {
		return err
	}

	err = c.app.withTx(context.Background(), func(tx *database.Tx) error {
		filter, err = tx.AddFilter(context.Background(), filter)
		return err
	})
	if err != nil {
		return err
	}

	c.app.printf("Successfully added filter on feed %s\nKeywords: %s\n", filter.Alias, strings.Join(filter.Keywords, ", "))
	return nil
}

type DeleteFeedCommand struct {
	Args struct {
		Alias string `positional-arg-name:"alias" description:"Alias of the feed to delete"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *DeleteFeedCommand) Execute(args []string) error {
	err := c.app.withTx(context.Background(), func(tx *database.Tx) error {
		return tx.DeleteFeed(context.Background(), c.Args.Alias)
	})
	if err != nil {
		return err
	}

	c.app.printf("Successfully deleted feed %s\n", c.Args.Alias)
	return nil
}

type DeleteFilterCommand struct {
	Args struct {
		Alias    string   `positional-arg-name:"alias" description:"Alias of the feed the filter is on" required:"yes"`
		Keywords []string `positional-arg-name:"keywords" description:"Enough of the filter's keywords to identify it"`
	} `positional-args:"yes"`

	app *App
}

func (c *DeleteFilterCommand) Execute(args []string) error {
	var deleted database.Filter
	err := c.app.withTx(context.Background(), func(tx *database.Tx) error {
		var err error
		deleted, err = tx.DeleteFilter(context.Background(), c.Args.Alias, c.Args.Keywords)
		return err
	})
	if err != nil {
		return err
	}

	c.app.printf("Successfully deleted filter on feed %s\nKeywords: %s\n", deleted.Alias, strings.Join(deleted.Keywords, ", "))
	return nil
}

type ListFeedsCommand struct {
	app *App
}

func (c *ListFeedsCommand) Execute(args []string) error {
	var feeds []database.Feed
	err := c.app.withTx(context.Background(), func(tx *database.Tx) error {
		var err error
		feeds, err = tx.ListFeeds(context.Background())
		return err
	})
	if err != nil {
		return err
	}

	return writeFeeds(c.app.Out, feeds)
}

type ListFiltersCommand struct {
	app *App
}

func (c *ListFiltersCommand) Execute(args []string) error {
	var filters []database.Filter
	err := c.app.withTx(context.Background(), func(tx *database.Tx) error {
		var err error
		filters, err = tx.ListFilters(context.Background())
		return err
	})
	if err != nil {
		return err
	}

	return writeFilters(c.app.Out, filters)
}

type UpdateCommand struct {
	app *App
}

func (c *UpdateCommand) Execute(args []string) error {
	store, err := database.Open(cfg.Get().DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	downloader := feed.NewDownloader(nil, feed.NewParser(), cfg.UserAgent())
	task := tasks.NewUpdateTask(store, downloader, feed.NewMatcher(feed.NewRunner()))

	report, err := task.Execute(context.Background())
	if err != nil {
		return err
	}

	writeReport(c.app.Out, report)
	return nil
}

type VersionCommand struct {
	app *App
}

func (c *VersionCommand) Execute(args []string) error {
	c.app.printf("rss-actions %s\n", cfg.GetVersion())
	return nil
}

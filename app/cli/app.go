package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/rss-actions/app/cfg"
	"github.com/lysyi3m/rss-actions/app/database"
)

// App is shared by every command: the parsed global options and where
// console output goes.
type App struct {
	Options cfg.Options
	Out     io.Writer
}

// NewParser builds the command tree. Configuration is loaded after options
// are parsed and before the chosen command runs. Errors are returned, not
// printed.
func NewParser(app *App) *flags.Parser {
	if app.Out == nil {
		app.Out = os.Stdout
	}

	parser := flags.NewParser(&app.Options, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "rss-actions"
	parser.LongDescription = "Run scripts on new RSS feed entries that match keyword filters."

	add, _ := parser.AddCommand("add", "Add a feed or filter", "Add a feed or filter to the database.", &struct{}{})
	add.AddCommand("feed", "Add a feed", "Add a feed under an alias.", &AddFeedCommand{app: app})
	add.AddCommand("filter", "Add a filter", "Add a filter running a script on entries whose title contains all keywords.", &AddFilterCommand{app: app})

	del, _ := parser.AddCommand("delete", "Delete a feed or filter", "Delete a feed or filter from the database.", &struct{}{})
	del.AddCommand("feed", "Delete a feed", "Delete a feed. Its filters must be deleted first.", &DeleteFeedCommand{app: app})
	del.AddCommand("filter", "Delete a filter", "Delete the filter on a feed identified by some of its keywords. Enough keywords to single out one filter are required.", &DeleteFilterCommand{app: app})

	list, _ := parser.AddCommand("list", "Display feeds or filters", "Display feeds or filters.", &struct{}{})
	list.AddCommand("feeds", "List feeds", "List feeds in the order they were added.", &ListFeedsCommand{app: app})
	list.AddCommand("filters", "List filters", "List filters, most recently updated first.", &ListFiltersCommand{app: app})

	parser.AddCommand("update", "Run an update", "Download feeds, match entries against filters and run the scripts of matching filters.", &UpdateCommand{app: app})
	parser.AddCommand("serve", "Run updates periodically", "Run an update pass every interval and serve a status API.", &ServeCommand{app: app})
	parser.AddCommand("version", "Show version", "Show version information.", &VersionCommand{app: app})

	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if _, ok := command.(*VersionCommand); !ok {
			if err := app.setup(); err != nil {
				return err
			}
		}
		return command.Execute(args)
	}

	return parser
}

func (a *App) setup() error {
	level := slog.LevelInfo
	if a.Options.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if _, err := cfg.Load(a.Options); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return nil
}

// withTx opens the database, runs fn in a transaction and closes the
// database again. The transaction is committed only if fn succeeds.
func (a *App) withTx(ctx context.Context, fn func(tx *database.Tx) error) error {
	store, err := database.Open(cfg.Get().DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.WithTx(ctx, fn)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}

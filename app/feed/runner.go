package feed

import (
	"bytes"
	"os"
	"os/exec"
	"time"

	"github.com/lysyi3m/rss-actions/app/database"
)

// Environment passed to every action script.
const (
	EnvEntryTitle = "RSSACTIONS_ENTRY_TITLE"
	EnvEntryURL   = "RSSACTIONS_ENTRY_URL"
	EnvEntryDate  = "RSSACTIONS_ENTRY_DATE"
)

type ActionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner starts filter scripts as child processes and waits for them.
type Runner struct{}

func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the filter's script once for entry. The script inherits the
// process environment and working directory plus the entry variables. There
// is no timeout.
func (r *Runner) Run(filter database.Filter, entry Entry) (ActionResult, error) {
	cmd := exec.Command(filter.ScriptPath)
	cmd.Env = append(os.Environ(),
		EnvEntryTitle+"="+entry.Title,
		EnvEntryURL+"="+entry.Link,
		EnvEntryDate+"="+entry.PublishedAt.Format(time.RFC1123Z),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ActionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		return result, &ActionError{ScriptPath: filter.ScriptPath, Result: result, Err: err}
	}

	return result, nil
}

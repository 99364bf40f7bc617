package web

//go:generate templ generate -f views.templ

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dbfleet/internal/core"
)

// runView is a run flattened for the report page.
type runView struct {
	Run      *core.Run
	Title    string
	Heading  string
	Started  string
	Duration string
	Units    string
	Header   []string
	Rows     [][]string
}

func newRunView(run *core.Run) (runView, error) {
	var sink core.MemorySink
	if err := core.EmitRunReport(&sink, run); err != nil {
		return runView{}, err
	}
	units, failures := run.Summary()

	v := runView{
		Run:     run,
		Title:   fmt.Sprintf("%s run %s", run.Kind, run.ID),
		Heading: string(run.Kind) + " run",
		Started: run.StartedAt.Format(time.RFC3339),
		Units:   fmt.Sprintf("%d (%d failed)", units, failures),
	}
	if run.FinishedAt != nil {
		v.Duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}
	if len(sink.Records) > 1 {
		v.Header, v.Rows = sink.Records[0], sink.Records[1:]
	}
	return v, nil
}

// RunPage renders one run as an HTML report.
func RunPage(run *core.Run) templ.Component {
	v, err := newRunView(run)
	if err != nil {
		return templ.ComponentFunc(func(context.Context, io.Writer) error { return err })
	}
	return runPage(v)
}

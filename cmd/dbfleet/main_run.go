package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dbfleet/internal/application"
	"github.com/JonMunkholm/dbfleet/internal/core"
)

type cmdRun struct {
	global *cmdGlobal

	flagDatabase string
	flagParams   string
}

func (c *cmdRun) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "run <template.sql>"
	cmd.Aliases = []string{"query"}
	cmd.Short = "Run a query template once per parameter row against a named database"
	cmd.Long = `Run a query template once per parameter row against a named database.

@name tokens in the template are bound from the parameter file, which is CSV
with a header row or a JSON array of objects. Without --params the template
runs once. A JSON log of every parameter row and its result is written next
to the CSV summary.`
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run
	cmd.Flags().StringVar(&c.flagDatabase, "db", "", "Named database from the registry")
	cmd.Flags().StringVarP(&c.flagParams, "params", "p", "", "Parameter file (CSV or JSON)")
	cmd.MarkFlagRequired("db")

	return cmd
}

func (c *cmdRun) Run(cmd *cobra.Command, args []string) error {
	template, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	rows := []map[string]any{{}}
	if c.flagParams != "" {
		data, err := os.ReadFile(c.flagParams)
		if err != nil {
			return err
		}
		cfg := c.global.cfg
		rows, err = core.ParseParams(data, cfg.Fleet.InputEncoding, application.Settings(cfg).Limits)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(c.flagParams), err)
		}
	}

	run, err := c.global.app.Service.Query(cmd.Context(), c.flagDatabase, string(template), rows)
	if run != nil && run.Query != nil {
		path, lerr := writeQueryLog(c.global.cfg.Fleet.ReportDir, run)
		if lerr != nil {
			return lerr
		}
		fmt.Fprintf(cmd.OutOrStdout(), "log: %s\n", path)
	}
	return c.global.finish(cmd, run, err)
}

// writeQueryLog writes run's parameter groups as JSON into dir.
func writeQueryLog(dir string, run *core.Run) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, core.ReportName(string(run.Kind), run.StartedAt, "json"))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := core.WriteQueryLog(f, *run.Query); err != nil {
		return "", err
	}
	return path, f.Close()
}

// Command dbfleet runs fleet operations against many databases from the
// command line and writes timestamped reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dbfleet/internal/application"
	"github.com/JonMunkholm/dbfleet/internal/config"
	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/logging"
)

type cmdGlobal struct {
	flagEnvFile   string
	flagReportDir string
	flagLogLevel  string

	cfg       *config.Config
	app       *application.App
	logCloser io.Closer
}

// PreRun loads the environment, configuration and service.
func (c *cmdGlobal) PreRun(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(c.flagEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.flagEnvFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.flagReportDir != "" {
		cfg.Fleet.ReportDir = c.flagReportDir
	}
	if c.flagLogLevel != "" {
		cfg.Logging.Level = c.flagLogLevel
	}
	c.cfg = cfg

	c.logCloser = logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	c.app, err = application.New(cmd.Context(), cfg)
	return err
}

// PostRun releases what PreRun opened.
func (c *cmdGlobal) PostRun(cmd *cobra.Command, args []string) error {
	if c.app != nil {
		c.app.Close()
	}
	if c.logCloser != nil {
		c.logCloser.Close()
	}
	return nil
}

// finish writes run's CSV report and prints a one-line summary.
func (c *cmdGlobal) finish(cmd *cobra.Command, run *core.Run, runErr error) error {
	if run == nil {
		return runErr
	}

	units, failures := run.Summary()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s run %s: %s, %d units, %d failed", run.Kind, run.ID, run.Status, units, failures)
	if len(run.Skipped) > 0 {
		fmt.Fprintf(out, ", %d rows skipped", len(run.Skipped))
	}
	fmt.Fprintln(out)
	for _, s := range run.Skipped {
		fmt.Fprintf(out, "  skipped: %s\n", s)
	}

	if runErr != nil {
		return errors.New(core.FormatUserError(runErr))
	}

	path, err := core.WriteRunReport(c.cfg.Fleet.ReportDir, run)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "report: %s\n", path)
	return nil
}

func newRootCommand() *cobra.Command {
	app := &cobra.Command{}
	app.Use = "dbfleet"
	app.Short = "Check, query and load data across a fleet of databases"
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	globalCmd := cmdGlobal{}
	app.PersistentPreRunE = globalCmd.PreRun
	app.PersistentPostRunE = globalCmd.PostRun
	app.PersistentFlags().StringVar(&globalCmd.flagEnvFile, "env-file", ".env", "Environment file to load if present")
	app.PersistentFlags().StringVar(&globalCmd.flagReportDir, "report-dir", "", "Directory for reports (overrides REPORT_DIR)")
	app.PersistentFlags().StringVar(&globalCmd.flagLogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	checkCmd := cmdCheck{global: &globalCmd}
	app.AddCommand(checkCmd.Command())

	runCmd := cmdRun{global: &globalCmd}
	app.AddCommand(runCmd.Command())

	bookCmd := cmdQueryBook{global: &globalCmd}
	app.AddCommand(bookCmd.Command())

	importCmd := cmdImport{global: &globalCmd}
	app.AddCommand(importCmd.Command())

	pingCmd := cmdPing{global: &globalCmd}
	app.AddCommand(pingCmd.Command())

	portCmd := cmdPortCheck{global: &globalCmd}
	app.AddCommand(portCmd.Command())

	dbCmd := cmdDatabases{global: &globalCmd}
	app.AddCommand(dbCmd.Command())

	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type cmdPing struct {
	global *cmdGlobal

	flagAll bool
}

func (c *cmdPing) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "ping [<name>...]"
	cmd.Short = "Test the connection to named databases"
	cmd.RunE = c.Run
	cmd.Flags().BoolVarP(&c.flagAll, "all", "a", false, "Ping every database in the registry")

	return cmd
}

func (c *cmdPing) Run(cmd *cobra.Command, args []string) error {
	names := args
	if c.flagAll {
		if c.global.app.Databases == nil {
			return fmt.Errorf("no database registry at %s", c.global.cfg.Fleet.DBInfoPath)
		}
		names = c.global.app.Databases.Names()
	}
	if len(names) == 0 {
		return cmd.Usage()
	}

	failed := 0
	out := cmd.OutOrStdout()
	for _, name := range names {
		res := c.global.app.Service.Ping(cmd.Context(), name)
		if res.Success {
			fmt.Fprintf(out, "%-20s ok      %s %s\n", name, res.Dialect, res.Elapsed.Round(time.Millisecond))
			continue
		}
		failed++
		fmt.Fprintf(out, "%-20s FAILED  %s %s\n", name, res.Code, res.Message)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d databases unreachable", failed, len(names))
	}
	return nil
}

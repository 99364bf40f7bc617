package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dbfleet/internal/core"
	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

type cmdCheck struct {
	global *cmdGlobal

	flagDialect string
}

func (c *cmdCheck) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "check <endpoints.csv>"
	cmd.Short = "Test connectivity and permissions of every endpoint in a file"
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run
	cmd.Flags().StringVarP(&c.flagDialect, "dialect", "d", core.AutoDialect, "Batch dialect; rows with a dialect column override it")

	return cmd
}

func (c *cmdCheck) Run(cmd *cobra.Command, args []string) error {
	if c.flagDialect != core.AutoDialect {
		if _, err := dialect.Normalize(c.flagDialect); err != nil {
			return err
		}
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	run, err := c.global.app.Service.Check(cmd.Context(), filepath.Base(args[0]), f, c.flagDialect)
	return c.global.finish(cmd, run, err)
}

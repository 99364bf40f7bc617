package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type cmdImport struct {
	global *cmdGlobal
}

func (c *cmdImport) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "import <mapping.csv>"
	cmd.Short = "Load CSV files into tables of named databases"
	cmd.Long = `Load CSV files into tables of named databases.

The mapping file has DB_NAME, TABLE_NAME and CSV_FILEPATH columns. Identity
and computed columns are left to the database. Rows are inserted one at a
time; a failing row is counted and the load continues.`
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdImport) Run(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	run, err := c.global.app.Service.Import(cmd.Context(), filepath.Base(args[0]), f)
	return c.global.finish(cmd, run, err)
}

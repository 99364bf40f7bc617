package main

import (
	"os"

	"github.com/spf13/cobra"
)

type cmdQueryBook struct {
	global *cmdGlobal

	flagDatabase string
}

func (c *cmdQueryBook) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "querybook <book.csv>"
	cmd.Short = "Run each SQL of a query book and save its rows as CSV"
	cmd.Long = `Run each SQL of a query book and save its rows as CSV.

The book has SQL and result_filepath columns. ${DATE:yyyyMMdd} in a result
path expands to the current time. A failing entry is reported and the book
continues.`
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run
	cmd.Flags().StringVar(&c.flagDatabase, "db", "", "Named database from the registry")
	cmd.MarkFlagRequired("db")

	return cmd
}

func (c *cmdQueryBook) Run(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	run, err := c.global.app.Service.QueryBook(cmd.Context(), c.flagDatabase, f)
	return c.global.finish(cmd, run, err)
}

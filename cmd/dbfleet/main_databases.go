package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type cmdDatabases struct {
	global *cmdGlobal
}

func (c *cmdDatabases) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "databases"
	cmd.Aliases = []string{"dbs"}
	cmd.Short = "List the named databases of the registry"
	cmd.Args = cobra.NoArgs
	cmd.RunE = c.Run

	return cmd
}

func (c *cmdDatabases) Run(cmd *cobra.Command, args []string) error {
	dbs := c.global.app.Databases
	if dbs == nil {
		return fmt.Errorf("no database registry at %s", c.global.cfg.Fleet.DBInfoPath)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tADDRESS\tDATABASE")
	for _, name := range dbs.Names() {
		db, _ := dbs.Get(name)
		addr := db.Address()
		if db.Port != "" {
			addr += ":" + string(db.Port)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, db.Type, addr, db.Database)
	}
	return w.Flush()
}

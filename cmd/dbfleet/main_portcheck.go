package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dbfleet/internal/core"
)

type cmdPortCheck struct {
	global *cmdGlobal

	flagTimeout time.Duration
}

func (c *cmdPortCheck) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "portcheck <hosts.csv>"
	cmd.Short = "Check TCP reachability of every hostname/port row"
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = c.Run
	cmd.Flags().DurationVarP(&c.flagTimeout, "timeout", "t", core.DefaultPortTimeout, "Dial timeout per target")

	return cmd
}

func (c *cmdPortCheck) Run(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	run, err := c.global.app.Service.PortCheck(cmd.Context(), filepath.Base(args[0]), f, c.flagTimeout)
	return c.global.finish(cmd, run, err)
}

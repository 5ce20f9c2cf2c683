package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignite/aicmo-cam/internal/container"
)

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every module and report whether the worker can start",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			conns, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer conns.Close()

			_, reg := container.CreateDefault(ctx, cfg, container.Deps{DB: conns.db, Redis: conns.redis})
			state := reg.Probe(ctx)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODULE\tENABLED\tHEALTH\tCAPABILITIES\tMESSAGE")
			for _, m := range state.Modules() {
				caps := ""
				for i, c := range m.Capabilities {
					if i > 0 {
						caps += ","
					}
					caps += c.Name
					if c.IsCritical {
						caps += "*"
					}
				}
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", m.Name, m.Enabled, m.Health, caps, m.StatusMessage)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if ok, reason := state.CanStartWorker(); !ok {
				exitf(cmd, "worker would start degraded: %s", reason)
				return errors.New("critical capability unhealthy")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "worker can start")
			return nil
		},
	}
}

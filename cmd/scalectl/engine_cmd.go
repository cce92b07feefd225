package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/escalaflow/scalegate/pkg/supervisor"
)

func (c *cli) engineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Manage the local scheduling engine",
	}
	cmd.AddCommand(c.engineStartCmd(), c.engineHealthCmd())
	return cmd
}

func (c *cli) supervisor() *supervisor.Supervisor {
	cfg := c.app.cfg
	return supervisor.New(supervisor.Config{
		Command: cfg.EngineCommand,
		Dir:     cfg.EngineDir,
	}, c.app.client, supervisor.WithLogger(c.app.logger.With("component", "supervisor")))
}

func (c *cli) engineStartCmd() *cobra.Command {
	var detach bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the engine and keep it running until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sup := c.supervisor()
			if err := sup.Start(ctx); err != nil {
				return err
			}
			version, err := supervisor.CheckVersion(ctx, c.app.client, c.app.cfg.VersionConstraint)
			if err != nil {
				_ = sup.Stop(context.Background())
				return err
			}
			c.print(fmt.Sprintf("Motor pronto em %s (versão %s)", c.app.client.BaseURL(), version))
			if detach || !sup.Running() {
				return nil
			}
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return sup.Stop(stopCtx)
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "return once the engine is healthy")
	return cmd
}

func (c *cli) engineHealthCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check engine health and API version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if wait {
				err = c.supervisor().WaitHealthy(ctx)
			} else {
				err = c.app.client.Health(ctx)
			}
			if err != nil {
				return err
			}
			version, err := supervisor.CheckVersion(ctx, c.app.client, c.app.cfg.VersionConstraint)
			if c.json() {
				out := map[string]any{"healthy": true, "version": version, "compatible": err == nil}
				if werr := c.writeJSON(out); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return err
			}
			c.print(fmt.Sprintf("Motor saudável (versão %s)", version))
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the engine answers")
	return cmd
}

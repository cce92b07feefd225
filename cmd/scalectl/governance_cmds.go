package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/engine"
	"github.com/escalaflow/scalegate/pkg/view"
)

func (c *cli) modeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [NORMAL|ESTRITO]",
		Short: "Show or change the engine governance mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				cfg contracts.RuntimeModeConfig
				err error
			)
			if len(args) == 0 {
				cfg, err = c.app.client.RuntimeMode(ctx)
			} else {
				mode, perr := contracts.ParseGovernanceMode(args[0])
				if perr != nil {
					return &exitError{code: exitUsage, err: perr}
				}
				cfg, err = c.app.client.UpdateRuntimeMode(ctx, mode, c.app.actor.Role)
			}
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(cfg)
			}
			c.print(fmt.Sprintf("Modo: %s (origem: %s)", cfg.Mode.Wire(), cfg.Source))
			if cfg.UpdatedAt != "" {
				c.print(fmt.Sprintf("Atualizado em %s por %s", cfg.UpdatedAt, cfg.UpdatedByRole))
			}
			return nil
		},
	}
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List acknowledged governance overrides recorded by the engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := c.app.client.GovernanceAudit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(events)
			}
			t := view.NewTable("Auditoria de governança", "ID", "Quando", "Operação", "Modo", "Ator", "Alertas", "Período")
			for _, e := range events {
				actor := e.ActorRole
				if e.ActorName != "" {
					actor += " (" + e.ActorName + ")"
				}
				t.AddRow(strconv.FormatInt(e.EventID, 10), e.CreatedAt, e.Operation, e.Mode.Wire(), actor,
					strconv.Itoa(len(e.Warnings)), view.FormatDateBR(e.PeriodStart)+" – "+view.FormatDateBR(e.PeriodEnd))
			}
			out := t.Render(c.app.styles)
			if out == "" {
				out = "Nenhum evento de auditoria."
			}
			c.print(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", engine.DefaultAuditLimit, "maximum number of events")
	return cmd
}

func (c *cli) governanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "governance",
		Short: "Show the legal and compliance configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := c.app.client.Governance(cmd.Context())
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(g)
			}
			st := c.app.styles
			c.print(fmt.Sprintf("Convenção coletiva: %s", g.CollectiveAgreementID))
			validated := st.Destructive.Render("não")
			if g.SundayHolidayLegalValidated {
				validated = st.Secondary.Render("sim")
			}
			c.print("Domingos/feriados validados juridicamente: " + validated)
			if g.LegalValidationNote != "" {
				c.print(st.Muted.Render(g.LegalValidationNote))
			}
			for _, p := range g.PendingItems {
				c.print(st.Warning.Render("  • " + p))
			}
			t := view.NewTable("Checklist de liberação", "Item", "Título", "Concluído")
			for _, item := range g.ReleaseChecklist {
				done := "não"
				if item.Done {
					done = "sim"
				}
				t.AddRow(item.ItemID, item.Title, done)
			}
			c.print(t.Render(st))
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the official schedule report and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := engine.ExportFormat(format)
			if f != engine.ExportHTML && f != engine.ExportMarkdown {
				return &exitError{code: exitUsage, err: fmt.Errorf("unknown format %q", format)}
			}
			ex, err := c.app.exporter(cmd.Context())
			if err != nil {
				return err
			}
			a, err := ex.Export(cmd.Context(), f)
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(a)
			}
			c.print(fmt.Sprintf("Relatório salvo em %s (%s, %d bytes)", a.Location, a.Hash, a.Size))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(engine.ExportHTML), "html or markdown")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/escalaflow/scalegate/pkg/store"
	"github.com/escalaflow/scalegate/pkg/view"
)

func (c *cli) receiptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "Inspect the local operation journal",
	}
	cmd.AddCommand(c.receiptsListCmd(), c.receiptsShowCmd())
	return cmd
}

func (c *cli) receiptsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent receipts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := c.app.journal.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(rs)
			}
			t := view.NewTable("Recibos", "ID", "Quando", "Operação", "Resultado", "Setor", "Período", "Ciência", "Alocações", "Violações")
			for _, r := range rs {
				acked := "não"
				if r.AckAttached {
					acked = "sim"
				}
				t.AddRow(r.ReceiptID, r.CreatedAt.Local().Format("02/01/2006 15:04"), string(r.Kind), r.Outcome, r.SectorID,
					view.FormatDateBR(r.PeriodStart)+" – "+view.FormatDateBR(r.PeriodEnd), acked,
					strconv.Itoa(r.AssignmentsCount), strconv.Itoa(r.ViolationsCount))
			}
			out := t.Render(c.app.styles)
			if len(rs) == 0 {
				out = "Nenhum recibo registrado."
			}
			c.print(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of receipts")
	return cmd
}

func (c *cli) receiptsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <receipt-id>",
		Short: "Show one receipt and verify its content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := c.app.journal.Get(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return &exitError{code: exitUsage, err: err}
			}
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(map[string]any{"receipt": r, "verified": r.Verify()})
			}
			st := c.app.styles
			c.print(st.Title.Render("Recibo " + r.ReceiptID))
			c.print(fmt.Sprintf("Operação: %s  Resultado: %s  Modo: %s", r.Kind, r.Outcome, r.Mode))
			c.print(fmt.Sprintf("Setor: %s  Período: %s – %s", r.SectorID, view.FormatDateBR(r.PeriodStart), view.FormatDateBR(r.PeriodEnd)))
			if len(r.WarningCodes) > 0 {
				c.print(fmt.Sprintf("Alertas: %v", r.WarningCodes))
			}
			if r.Message != "" {
				c.print(st.Muted.Render(r.Message))
			}
			if r.Verify() {
				c.print(st.Secondary.Render("Integridade verificada (" + r.ContentHash + ")"))
			} else {
				c.print(st.Destructive.Render("Hash de conteúdo não confere"))
			}
			return nil
		},
	}
}

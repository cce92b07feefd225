package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/escalaflow/scalegate/pkg/ack"
	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/gateway"
	"github.com/escalaflow/scalegate/pkg/notify"
	"github.com/escalaflow/scalegate/pkg/reconcile"
	"github.com/escalaflow/scalegate/pkg/runner"
	"github.com/escalaflow/scalegate/pkg/view"
)

// maxAckRounds bounds how often one invocation asks for a justification.
const maxAckRounds = 3

func (c *cli) preflightCmd() *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Validate a period and show whether it can run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := pf.request(c.app.cfg.Sector)
			if err != nil {
				return err
			}
			v, err := c.app.gateway.RunPreflight(cmd.Context(), req)
			if err != nil {
				return err
			}
			state := c.app.gateway.State(req)
			if c.json() {
				return c.writeJSON(map[string]any{"state": state, "verdict": v})
			}
			c.renderVerdict(state, v)
			return nil
		},
	}
	pf.bind(cmd)
	return cmd
}

func (c *cli) renderVerdict(state gateway.ExecutionState, v contracts.PreflightVerdict) {
	st := c.app.styles
	c.print(view.RenderSignal(view.SignalFor(state), st))
	c.print(fmt.Sprintf("Modo de governança: %s", v.Mode.Wire()))
	c.print(view.RenderIssues("Bloqueios", v.Blockers, st))
	c.print(view.RenderIssues("Alertas críticos", v.CriticalWarnings, st))
}

func (c *cli) operationCmd(kind contracts.OperationKind) *cobra.Command {
	var (
		pf       periodFlags
		reason   string
		noPrompt bool
	)
	use, short := "generate", "Generate the official schedule for a period"
	if kind == contracts.OperationSimulate {
		use, short = "simulate", "Simulate a period without touching the official schedule"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := pf.request(c.app.cfg.Sector)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			r := c.app.runner

			res, err := r.Execute(ctx, kind, req, nil)
			for round := 0; err == nil && res.Outcome == runner.OutcomeAwaitingAck && round < maxAckRounds; round++ {
				if res.Verdict != nil && !c.json() {
					c.print(view.RenderIssues("Alertas críticos", res.Verdict.CriticalWarnings, c.app.styles))
				}
				text := reason
				if text == "" {
					if noPrompt {
						break
					}
					text, err = c.prompt(notify.MsgAckRequired + "\nMotivo: ")
					if err != nil || strings.TrimSpace(text) == "" {
						r.CancelAck()
						return &exitError{code: exitAck, err: errors.New("acknowledgment cancelled")}
					}
				}
				res, err = r.SubmitAck(ctx, text)
				if errors.Is(err, ack.ErrReasonRejected) && reason == "" {
					err = nil
					res.Outcome = runner.OutcomeAwaitingAck
				}
			}
			if err == nil && res.Outcome == runner.OutcomeAwaitingAck {
				r.CancelAck()
			}

			if c.json() {
				if jerr := c.writeJSON(res); jerr != nil {
					return jerr
				}
			} else if res.Outcome == runner.OutcomeCompleted {
				mode, proj := c.app.rec.Active()
				c.print(view.CountsBadge(mode, proj))
				if mode == reconcile.ViewSimulated {
					c.print(view.CalendarTable(view.BuildCalendar(proj.Assignments), c.app.styles))
				}
			} else if res.Outcome == runner.OutcomeBlocked && res.Message != "" {
				c.print(res.Message)
			}
			return exitFor(res, err)
		},
	}
	pf.bind(cmd)
	cmd.Flags().StringVar(&reason, "reason", "", "justification to send when a risk acknowledgment is required")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never prompt for a justification")
	return cmd
}

// prompt writes label and reads one line from stdin.
func (c *cli) prompt(label string) (string, error) {
	_, _ = io.WriteString(c.stdout, label)
	line, err := c.stdin.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) weeklyCmd() *cobra.Command {
	var (
		pf     periodFlags
		window string
		mode   string
	)
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Show the weekly hours analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := pf.request(c.app.cfg.Sector)
			if err != nil {
				return err
			}
			m := contracts.AnalysisMode(strings.ToUpper(mode))
			if m != contracts.AnalysisOfficial && m != contracts.AnalysisSimulation {
				return &exitError{code: exitUsage, err: fmt.Errorf("unknown mode %q", mode)}
			}
			w := contracts.WeekWindow(strings.ToUpper(window))
			if w != contracts.WindowMonSun && w != contracts.WindowSunSat {
				return &exitError{code: exitUsage, err: fmt.Errorf("unknown window %q", window)}
			}
			a, err := c.app.client.WeeklyAnalysis(cmd.Context(), req, m)
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(a)
			}
			c.print(view.WeeklyTable(a, w, c.app.styles))
			return nil
		},
	}
	pf.bind(cmd)
	cmd.Flags().StringVar(&window, "window", string(contracts.WindowMonSun), "MON_SUN or SUN_SAT")
	cmd.Flags().StringVar(&mode, "mode", string(contracts.AnalysisOfficial), "OFFICIAL or SIMULATION")
	return cmd
}

func (c *cli) assignmentsCmd() *cobra.Command {
	var (
		page     int
		calendar bool
	)
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List the official assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := c.app.client.Assignments(cmd.Context())
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(rows)
			}
			if calendar {
				c.print(view.CalendarTable(view.BuildCalendar(rows), c.app.styles))
				return nil
			}
			p := view.NewPager()
			p.Page = max(page-1, 0)
			c.print(view.AssignmentsTable(rows, p, c.app.styles))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to show (1-based)")
	cmd.Flags().BoolVar(&calendar, "calendar", false, "render as a date × employee calendar")
	return cmd
}

func (c *cli) violationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "violations",
		Short: "List compliance violations of the official schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := c.app.client.Violations(cmd.Context())
			if err != nil {
				return err
			}
			if c.json() {
				return c.writeJSON(rows)
			}
			c.print(view.ViolationsTable(rows, c.app.styles))
			return nil
		},
	}
}

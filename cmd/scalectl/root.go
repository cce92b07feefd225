package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/escalaflow/scalegate/pkg/ack"
	"github.com/escalaflow/scalegate/pkg/config"
	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/runner"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitBlocked = 3
	exitAck     = 4
)

// cli carries the streams and the lazily built app.
type cli struct {
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	envFiles []string
	output   string

	app *app
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Run is the testable entrypoint.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.close(); cerr != nil {
			_, _ = fmt.Fprintln(stderr, "shutdown:", cerr)
		}
	}
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintln(stderr, "Error:", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if strings.Contains(err.Error(), "unknown command") || strings.Contains(err.Error(), "flag") {
		return exitUsage
	}
	return exitFailure
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scalectl",
		Short: "Preflight-gated schedule generation and simulation",
		Long: `scalectl talks to the scheduling engine. Every generate or simulate
re-runs the preflight first: blocked operations never reach the engine and
risky ones require a written justification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.envFiles...)
			if err != nil {
				return &exitError{code: exitUsage, err: err}
			}
			switch c.output {
			case "text", "json":
			default:
				return &exitError{code: exitUsage, err: fmt.Errorf("unknown output %q", c.output)}
			}
			c.app, err = newApp(cmd.Context(), cfg, c.stdout, c.stderr)
			return err
		},
	}
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		c.preflightCmd(),
		c.operationCmd(contracts.OperationGenerate),
		c.operationCmd(contracts.OperationSimulate),
		c.weeklyCmd(),
		c.assignmentsCmd(),
		c.violationsCmd(),
		c.modeCmd(),
		c.auditCmd(),
		c.governanceCmd(),
		c.exportCmd(),
		c.engineCmd(),
		c.receiptsCmd(),
	)
	return root
}

// periodFlags binds --start/--end/--sector.
type periodFlags struct {
	start, end, sector string
}

func (p *periodFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.start, "start", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.end, "end", "", "period end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.sector, "sector", "", "sector id (default from config)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
}

func (p *periodFlags) request(defaultSector string) (contracts.ScaleRequest, error) {
	period, err := contracts.NewPeriod(p.start, p.end)
	if err != nil {
		return contracts.ScaleRequest{}, &exitError{code: exitUsage, err: err}
	}
	sector := p.sector
	if sector == "" {
		sector = defaultSector
	}
	return contracts.ScaleRequest{Period: period, SectorID: sector}, nil
}

func (c *cli) json() bool { return c.output == "json" }

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) print(s string) {
	if s != "" {
		_, _ = io.WriteString(c.stdout, s)
		if !strings.HasSuffix(s, "\n") {
			_, _ = io.WriteString(c.stdout, "\n")
		}
	}
}

// exitFor maps an execution result to an exit error.
func exitFor(res runner.Result, err error) error {
	switch {
	case err == nil && res.Outcome == runner.OutcomeAwaitingAck:
		return &exitError{code: exitAck, err: errors.New("risk acknowledgment required")}
	case err == nil:
		return nil
	case errors.Is(err, runner.ErrBlocked):
		return &exitError{code: exitBlocked, err: err}
	case errors.Is(err, ack.ErrReasonRejected):
		return &exitError{code: exitAck, err: err}
	default:
		return err
	}
}

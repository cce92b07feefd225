package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// scaleBody is the request body shared by the /scale endpoints.
type scaleBody struct {
	PeriodStart string                        `json:"period_start"`
	PeriodEnd   string                        `json:"period_end"`
	SectorID    string                        `json:"sector_id,omitempty"`
	RiskAck     *contracts.RiskAcknowledgment `json:"risk_ack,omitempty"`
	Mode        contracts.AnalysisMode        `json:"mode,omitempty"`
}

func newScaleBody(req contracts.ScaleRequest) scaleBody {
	return scaleBody{
		PeriodStart: req.Period.StartString(),
		PeriodEnd:   req.Period.EndString(),
		SectorID:    req.Sector(),
	}
}

// Preflight calls POST /scale/preflight. The body is checked against the
// verdict schema before it is decoded.
func (c *Client) Preflight(ctx context.Context, req contracts.ScaleRequest) (contracts.PreflightVerdict, error) {
	data, err := c.raw(ctx, http.MethodPost, "/scale/preflight", newScaleBody(req))
	if err != nil {
		return contracts.PreflightVerdict{}, err
	}
	if err := validatePreflight(c.schema, data); err != nil {
		return contracts.PreflightVerdict{}, err
	}
	var v contracts.PreflightVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		return contracts.PreflightVerdict{}, fmt.Errorf("decode preflight: %w", err)
	}
	return v, nil
}

// Generate calls POST /scale/generate.
func (c *Client) Generate(ctx context.Context, req contracts.ScaleRequest, ack *contracts.RiskAcknowledgment) (contracts.OperationResult, error) {
	body := newScaleBody(req)
	body.RiskAck = ack
	var out contracts.OperationResult
	err := c.do(ctx, http.MethodPost, "/scale/generate", body, &out)
	return out, err
}

// Simulate calls POST /scale/simulate.
func (c *Client) Simulate(ctx context.Context, req contracts.ScaleRequest, ack *contracts.RiskAcknowledgment) (contracts.OperationResult, error) {
	body := newScaleBody(req)
	body.RiskAck = ack
	var out contracts.OperationResult
	err := c.do(ctx, http.MethodPost, "/scale/simulate", body, &out)
	return out, err
}

// Run dispatches to Generate or Simulate by kind.
func (c *Client) Run(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, ack *contracts.RiskAcknowledgment) (contracts.OperationResult, error) {
	switch kind {
	case contracts.OperationGenerate:
		return c.Generate(ctx, req, ack)
	case contracts.OperationSimulate:
		return c.Simulate(ctx, req, ack)
	default:
		return contracts.OperationResult{}, fmt.Errorf("unknown operation kind %q", kind)
	}
}

// WeeklyAnalysis calls POST /scale/weekly-analysis. An empty mode means OFFICIAL.
func (c *Client) WeeklyAnalysis(ctx context.Context, req contracts.ScaleRequest, mode contracts.AnalysisMode) (contracts.WeeklyAnalysis, error) {
	body := newScaleBody(req)
	body.Mode = mode
	if body.Mode == "" {
		body.Mode = contracts.AnalysisOfficial
	}
	var out contracts.WeeklyAnalysis
	err := c.do(ctx, http.MethodPost, "/scale/weekly-analysis", body, &out)
	return out, err
}

// Assignments calls GET /scale/assignments.
func (c *Client) Assignments(ctx context.Context) ([]contracts.Assignment, error) {
	var out []contracts.Assignment
	err := c.do(ctx, http.MethodGet, "/scale/assignments", nil, &out)
	return out, err
}

// Violations calls GET /scale/violations.
func (c *Client) Violations(ctx context.Context) ([]contracts.Violation, error) {
	var out []contracts.Violation
	err := c.do(ctx, http.MethodGet, "/scale/violations", nil, &out)
	return out, err
}

package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// DefaultAuditLimit is the number of audit events fetched when none is given.
const DefaultAuditLimit = 50

// RuntimeMode calls GET /config/runtime-mode.
func (c *Client) RuntimeMode(ctx context.Context) (contracts.RuntimeModeConfig, error) {
	var out contracts.RuntimeModeConfig
	err := c.do(ctx, http.MethodGet, "/config/runtime-mode", nil, &out)
	return out, err
}

// UpdateRuntimeMode calls PATCH /config/runtime-mode.
func (c *Client) UpdateRuntimeMode(ctx context.Context, mode contracts.GovernanceMode, role contracts.ActorRole) (contracts.RuntimeModeConfig, error) {
	body := struct {
		Mode      contracts.GovernanceMode `json:"mode"`
		ActorRole contracts.ActorRole      `json:"actor_role"`
	}{Mode: mode, ActorRole: role}
	var out contracts.RuntimeModeConfig
	err := c.do(ctx, http.MethodPatch, "/config/runtime-mode", body, &out)
	return out, err
}

// Governance calls GET /config/governance.
func (c *Client) Governance(ctx context.Context) (contracts.GovernanceConfig, error) {
	var out contracts.GovernanceConfig
	err := c.do(ctx, http.MethodGet, "/config/governance", nil, &out)
	return out, err
}

// GovernanceAudit calls GET /config/governance/audit.
func (c *Client) GovernanceAudit(ctx context.Context, limit int) ([]contracts.GovernanceAuditEvent, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	var out []contracts.GovernanceAuditEvent
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/config/governance/audit?limit=%d", limit), nil, &out)
	return out, err
}

// ExportFormat selects a report rendering.
type ExportFormat string

const (
	ExportHTML     ExportFormat = "html"
	ExportMarkdown ExportFormat = "markdown"
)

// Export downloads the rendered report of the current official schedule.
func (c *Client) Export(ctx context.Context, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportHTML, ExportMarkdown:
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return c.raw(ctx, http.MethodGet, "/scale/export/"+string(format)+"/download", nil)
}

package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/engine/enginetest"
)

func testRequest(t *testing.T) contracts.ScaleRequest {
	t.Helper()
	p, err := contracts.NewPeriod("2026-02-01", "2026-02-28")
	require.NoError(t, err)
	return contracts.ScaleRequest{Period: p, SectorID: "CAIXA"}
}

func newTestClient(t *testing.T, f *enginetest.Fake, opts ...Option) *Client {
	t.Helper()
	c, err := New(f.URL(), opts...)
	require.NoError(t, err)
	return c
}

func TestPreflightDecodesVerdict(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/preflight", enginetest.JSON(map[string]any{
		"mode":              "ESTRITO",
		"blockers":          []any{},
		"critical_warnings": []any{map[string]any{"code": "DOMINGO", "message": "m", "recommended_action": "a"}},
		"can_proceed":       true,
		"ack_required":      true,
	}))

	c := newTestClient(t, f, WithToken("tok"))
	v, err := c.Preflight(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, contracts.ModeStrict, v.Mode)
	assert.True(t, v.AckRequired)
	assert.Equal(t, []string{"DOMINGO"}, v.WarningCodes())

	body := f.LastBody("POST /scale/preflight")
	assert.Equal(t, "2026-02-01", body["period_start"])
	assert.Equal(t, "2026-02-28", body["period_end"])
	assert.Equal(t, "CAIXA", body["sector_id"])
	assert.NotContains(t, body, "risk_ack")
}

func TestPreflightRejectsMalformedVerdict(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/preflight", enginetest.JSON(map[string]any{"mode": "NORMAL", "can_proceed": "yes"}))

	_, err := newTestClient(t, f).Preflight(context.Background(), testRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight body rejected")
}

func TestValidatePreflight(t *testing.T) {
	schema, err := compilePreflightSchema()
	require.NoError(t, err)

	valid := `{"mode":"ESTRITO","blockers":[],"critical_warnings":[{"code":"W1","message":"m","recommended_action":"r"}],"can_proceed":true,"ack_required":true,"score":1.5}`
	require.NoError(t, validatePreflight(schema, []byte(valid)))

	err = validatePreflight(schema, []byte(`{"mode":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight body is not JSON")

	err = validatePreflight(schema, []byte(`{"mode":"NORMAL","blockers":[{"code":1,"message":"m"}],"critical_warnings":[],"can_proceed":false,"ack_required":false}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight body rejected")
}

func TestGenerateSendsRiskAck(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/generate", enginetest.JSON(map[string]any{"status": "SUCCESS", "assignments_count": 30, "violations_count": 2}))

	ack := &contracts.RiskAcknowledgment{ActorRole: contracts.RoleOperator, Reason: "Aprovado pela gerência"}
	res, err := newTestClient(t, f).Run(context.Background(), contracts.OperationGenerate, testRequest(t), ack)
	require.NoError(t, err)
	assert.Equal(t, 30, res.AssignmentsCount)

	body := f.LastBody("POST /scale/generate")
	riskAck, ok := body["risk_ack"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "OPERADOR", riskAck["actor_role"])
	assert.Equal(t, "Aprovado pela gerência", riskAck["reason"])
	assert.NotContains(t, riskAck, "actor_name")
}

func TestConflictDetailIsParsed(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/generate", enginetest.Detail(http.StatusConflict, map[string]any{
		"message":           "Confirmação de risco obrigatória",
		"critical_warnings": []any{map[string]any{"code": "W2", "message": "new"}},
	}))

	_, err := newTestClient(t, f).Generate(context.Background(), testRequest(t), nil)
	require.Error(t, err)

	d, ok := IsConflict(err)
	require.True(t, ok)
	assert.Equal(t, "Confirmação de risco obrigatória", d.Message)
	require.Len(t, d.CriticalWarnings, 1)
	assert.Equal(t, "W2", d.CriticalWarnings[0].Code)

	assert.NoError(t, d.DecodeErr)

	_, blocked := IsBlocked(err)
	assert.False(t, blocked)
}

func TestConflictDetailKeepsDecodeError(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/generate", enginetest.Detail(http.StatusConflict, map[string]any{
		"message":           "Confirmação de risco obrigatória",
		"critical_warnings": "W2",
	}))

	_, err := newTestClient(t, f).Generate(context.Background(), testRequest(t), nil)
	d, ok := IsConflict(err)
	require.True(t, ok)
	require.Error(t, d.DecodeErr)
	assert.Empty(t, d.CriticalWarnings)
	assert.Equal(t, "Confirmação de risco obrigatória", d.Message)
}

func TestBlockedDetailIsParsed(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/simulate", enginetest.Detail(http.StatusUnprocessableEntity, map[string]any{
		"message":  "Bloqueio operacional",
		"blockers": []any{map[string]any{"code": "SEM_COLABORADORES", "message": "Nenhum colaborador ativo"}},
	}))

	_, err := newTestClient(t, f).Simulate(context.Background(), testRequest(t), nil)
	d, ok := IsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, "Bloqueio operacional", d.Message)
	assert.Equal(t, "SEM_COLABORADORES", d.Blockers[0].Code)
}

func TestErrorMessageExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Período inválido"}`, "Período inválido"},
		{"object detail", `{"detail":{"message":"Falhou"}}`, "Falhou"},
		{"object without message", `{"detail":{"code":"X"}}`, "Internal Server Error"},
		{"list detail", `{"detail":[{"loc":["body"],"msg":"field required"}]}`, "Internal Server Error"},
		{"not json", `oops`, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError(http.StatusInternalServerError, []byte(tt.body))
			assert.Equal(t, tt.want, err.Message)
		})
	}
}

func TestWeeklyAnalysisDefaultsToOfficial(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("POST /scale/weekly-analysis", enginetest.JSON(map[string]any{
		"sector_id":                  "CAIXA",
		"policy_week_definition":     "MON_SUN",
		"tolerance_minutes":          30,
		"summaries_mon_sun":          []any{},
		"summaries_sun_sat":          []any{},
		"external_dependencies_open": []any{"CCT"},
	}))

	c := newTestClient(t, f)
	w, err := c.WeeklyAnalysis(context.Background(), testRequest(t), "")
	require.NoError(t, err)
	assert.Equal(t, 30, w.ToleranceMinutes)
	assert.Equal(t, "OFFICIAL", f.LastBody("POST /scale/weekly-analysis")["mode"])

	_, err = c.WeeklyAnalysis(context.Background(), testRequest(t), contracts.AnalysisSimulation)
	require.NoError(t, err)
	assert.Equal(t, "SIMULATION", f.LastBody("POST /scale/weekly-analysis")["mode"])
}

func TestGovernanceEndpoints(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("GET /config/runtime-mode", enginetest.JSON(map[string]any{"mode": "ESTRITO", "source": "db"}))
	f.On("PATCH /config/runtime-mode", enginetest.JSON(map[string]any{"mode": "NORMAL", "source": "db", "updated_by_role": "ADMIN"}))
	f.On("GET /config/governance/audit", enginetest.JSON([]any{map[string]any{"event_id": 7, "operation": "GENERATE", "mode": "ESTRITO", "warnings": []any{"W1"}}}))
	f.On("GET /config/governance", enginetest.JSON(map[string]any{"collective_agreement_id": "CCT-2026", "pending_items": []any{"x"}}))

	c := newTestClient(t, f)
	ctx := context.Background()

	rm, err := c.RuntimeMode(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.ModeStrict, rm.Mode)

	rm, err = c.UpdateRuntimeMode(ctx, contracts.ModeNormal, contracts.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, contracts.ModeNormal, rm.Mode)
	assert.Equal(t, "NORMAL", f.LastBody("PATCH /config/runtime-mode")["mode"])
	assert.Equal(t, "ADMIN", f.LastBody("PATCH /config/runtime-mode")["actor_role"])

	events, err := c.GovernanceAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].EventID)

	g, err := c.Governance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CCT-2026", g.CollectiveAgreementID)
}

func TestExportAndHealth(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("GET /scale/export/markdown/download", enginetest.Response{Status: http.StatusOK, Body: []byte("# Escala")})
	f.On("GET /health", enginetest.JSON(map[string]any{"status": "ok"}))
	f.On("GET /openapi.json", enginetest.JSON(map[string]any{"info": map[string]any{"version": "1.4.0"}}))

	c := newTestClient(t, f)
	ctx := context.Background()

	data, err := c.Export(ctx, ExportMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Escala", string(data))

	_, err = c.Export(ctx, "pdf")
	assert.Error(t, err)

	assert.NoError(t, c.Health(ctx))

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", v)
}

func TestRateLimitHonoursContext(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("GET /health", enginetest.JSON(map[string]any{}))

	c := newTestClient(t, f, WithRateLimit(0.001, 1))
	require.NoError(t, c.Health(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Health(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, f.Calls("GET /health"))
}

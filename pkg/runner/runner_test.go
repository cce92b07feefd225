package runner

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalaflow/scalegate/pkg/ack"
	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/engine"
	"github.com/escalaflow/scalegate/pkg/engine/enginetest"
	"github.com/escalaflow/scalegate/pkg/gateway"
	"github.com/escalaflow/scalegate/pkg/inflight"
	"github.com/escalaflow/scalegate/pkg/notify"
	"github.com/escalaflow/scalegate/pkg/reconcile"
	"github.com/escalaflow/scalegate/pkg/store"
)

const (
	routePreflight   = "POST /scale/preflight"
	routeGenerate    = "POST /scale/generate"
	routeSimulate    = "POST /scale/simulate"
	routeWeekly      = "POST /scale/weekly-analysis"
	routeAssignments = "GET /scale/assignments"
	routeViolations  = "GET /scale/violations"
)

type harness struct {
	fake    *enginetest.Fake
	runner  *Runner
	gateway *gateway.Gateway
	ack     *ack.Controller
	rec     *reconcile.Reconciler
	notices *notify.Recorder
	journal *store.MemoryJournal
	request contracts.ScaleRequest
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	f := enginetest.New()
	t.Cleanup(f.Close)

	client, err := engine.New(f.URL())
	require.NoError(t, err)
	gw, err := gateway.New(client, 0)
	require.NoError(t, err)

	p, err := contracts.NewPeriod("2026-02-01", "2026-02-28")
	require.NoError(t, err)

	h := &harness{
		fake:    f,
		gateway: gw,
		ack:     ack.NewController(contracts.Actor{Role: contracts.RoleOperator, Name: "Ana"}, nil),
		rec:     reconcile.New(),
		notices: &notify.Recorder{},
		journal: store.NewMemoryJournal(),
		request: contracts.ScaleRequest{Period: p, SectorID: "CAIXA"},
	}
	all := append([]Option{WithNotifier(h.notices), WithJournal(h.journal)}, opts...)
	h.runner = New(client, gw, h.ack, h.rec, all...)

	f.On(routeAssignments, enginetest.JSON([]map[string]any{
		{"work_date": "2026-02-01", "employee_id": "E1", "status": "WORK", "minutes": 480},
	}))
	f.On(routeViolations, enginetest.JSON([]map[string]any{}))
	f.On(routeWeekly, enginetest.JSON(map[string]any{
		"period_start": "2026-02-01", "period_end": "2026-02-28", "sector_id": "CAIXA",
		"policy_week_definition": "MON_SUN", "tolerance_minutes": 30,
		"summaries_mon_sun": []any{}, "summaries_sun_sat": []any{}, "external_dependencies_open": []any{},
	}))
	return h
}

func verdict(blockers, warnings []map[string]any, canProceed, ackRequired bool) enginetest.Response {
	if blockers == nil {
		blockers = []map[string]any{}
	}
	if warnings == nil {
		warnings = []map[string]any{}
	}
	return enginetest.JSON(map[string]any{
		"mode":              "NORMAL",
		"blockers":          blockers,
		"critical_warnings": warnings,
		"can_proceed":       canProceed,
		"ack_required":      ackRequired,
	})
}

func issue(code, message string) map[string]any {
	return map[string]any{"code": code, "message": message, "recommended_action": "Revisar"}
}

func opResult(assignments int) enginetest.Response {
	return enginetest.JSON(map[string]any{
		"status": "ok", "assignments_count": assignments, "violations_count": 1,
		"preferences_processed": 0, "exceptions_applied": 0,
	})
}

func TestExecuteReadyRunsOnce(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeGenerate, opResult(28))

	res, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, h.fake.Calls(routeGenerate))
	assert.NotContains(t, h.fake.LastBody(routeGenerate), "risk_ack")
	assert.Equal(t, ack.StateClosed, h.ack.State())

	last, ok := h.notices.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Notice{Level: notify.LevelSuccess, Message: notify.MsgGenerateSucceeded}, last)

	official := h.rec.Official()
	assert.Len(t, official.Assignments, 1)
	require.NotNil(t, official.Counts)
	assert.Equal(t, 28, official.Counts.Assignments)

	require.NotEmpty(t, res.ReceiptID)
	rc, err := h.journal.Get(context.Background(), res.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", rc.Outcome)
	assert.False(t, rc.AckAttached)
	assert.False(t, h.runner.State(contracts.OperationGenerate).Loading)
}

func TestExecuteBlockedNeverCallsEngine(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict([]map[string]any{issue("SEM_COLAB", "Sem colaboradores ativos no setor.")}, nil, false, false))

	res, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.Equal(t, "Sem colaboradores ativos no setor.", res.Message)
	assert.Equal(t, 0, h.fake.Calls(routeGenerate))

	last, _ := h.notices.Last()
	assert.Equal(t, notify.MsgBlockedAtRun, last.Message)
	assert.Equal(t, gateway.StateBlocked, h.gateway.State(h.request))
	assert.Equal(t, OutcomeBlocked, h.runner.State(contracts.OperationGenerate).LastOutcome)
}

func TestExecuteBlockedWithoutMessageUsesFallback(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict([]map[string]any{issue("X", "")}, nil, false, false))

	res, err := h.runner.Execute(context.Background(), contracts.OperationSimulate, h.request, nil)
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, notify.MsgBlockedFallback, res.Message)
}

func TestAckFlow(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict(nil, []map[string]any{issue("LEGAL_SOFT_1", "Domingo sem folga")}, true, true))
	h.fake.On(routeGenerate, opResult(10))
	ctx := context.Background()

	res, err := h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingAck, res.Outcome)
	assert.Equal(t, ack.StateOpen, h.ack.State())
	assert.Equal(t, 0, h.fake.Calls(routeGenerate))
	assert.Equal(t, gateway.StateAckRequired, h.gateway.State(h.request))

	_, err = h.runner.SubmitAck(ctx, "curto")
	require.ErrorIs(t, err, ack.ErrReasonRejected)
	assert.Equal(t, 0, h.fake.Calls(routeGenerate))
	assert.Equal(t, ack.StateOpen, h.ack.State())
	last, _ := h.notices.Last()
	assert.Equal(t, notify.MsgReasonInvalid, last.Message)

	res, err = h.runner.SubmitAck(ctx, "  Fechamento emergencial do período.  ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, h.fake.Calls(routeGenerate))

	riskAck, ok := h.fake.LastBody(routeGenerate)["risk_ack"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Fechamento emergencial do período.", riskAck["reason"])
	assert.Equal(t, "OPERADOR", riskAck["actor_role"])
	assert.Equal(t, ack.StateClosed, h.ack.State())

	rc, err := h.journal.Get(ctx, res.ReceiptID)
	require.NoError(t, err)
	assert.True(t, rc.AckAttached)
	assert.Equal(t, []string{"LEGAL_SOFT_1"}, rc.WarningCodes)
}

func TestConflictReopensAckForSameOperation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeSimulate,
		enginetest.Detail(http.StatusConflict, map[string]any{
			"message":           "Confirmação de risco obrigatória.",
			"critical_warnings": []map[string]any{issue("LEGAL_SOFT_2", "Interjornada curta")},
		}),
		opResult(5),
	)

	res, err := h.runner.Execute(ctx, contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingAck, res.Outcome)
	assert.Equal(t, ack.StateOpen, h.ack.State())
	pending, ok := h.ack.Pending()
	require.True(t, ok)
	assert.Equal(t, contracts.OperationSimulate, pending.Kind)
	assert.Equal(t, h.request.Key(), pending.Request.Key())

	v, ok := h.gateway.Verdict(h.request)
	require.True(t, ok)
	assert.True(t, v.AckRequired)
	assert.Equal(t, []string{"LEGAL_SOFT_2"}, v.WarningCodes())
	assert.Empty(t, h.notices.Notices())

	res, err = h.runner.SubmitAck(ctx, "Cobertura mínima garantida pela gerência.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, h.fake.Calls(routeSimulate))
	assert.Contains(t, h.fake.LastBody(routeSimulate), "risk_ack")
}

func TestConflictWhileSubmittingReopens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.On(routePreflight, verdict(nil, []map[string]any{issue("A", "a")}, true, true))
	h.fake.On(routeGenerate, enginetest.Detail(http.StatusConflict, map[string]any{
		"message":           "Novos alertas.",
		"critical_warnings": []map[string]any{issue("B", "b")},
	}))

	_, err := h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	res, err := h.runner.SubmitAck(ctx, "Motivo suficientemente longo")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingAck, res.Outcome)
	assert.Equal(t, ack.StateOpen, h.ack.State())
	assert.Equal(t, 1, h.ack.Snapshot().Conflicts)
}

func TestExecutionTimeBlockers(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeGenerate, enginetest.Detail(http.StatusUnprocessableEntity, map[string]any{
		"message":  "Bloqueado",
		"blockers": []map[string]any{issue("CFG", "Contrato sem carga horária.")},
	}))

	res, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.Equal(t, "Contrato sem carga horária.", res.Message)
}

func TestPreflightFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, enginetest.Detail(http.StatusInternalServerError, "boom"))

	res, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.ErrorIs(t, err, gateway.ErrPreflightFailed)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, h.fake.Calls(routeGenerate))
	last, _ := h.notices.Last()
	assert.Equal(t, notify.MsgPreflightFailed, last.Message)
	assert.NotEmpty(t, h.runner.State(contracts.OperationGenerate).LastError)
}

func TestEngineFailureLeavesProjectionsUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeSimulate, opResult(3))
	h.fake.On(routeGenerate, enginetest.Detail(http.StatusInternalServerError, "falha interna"))

	_, err := h.runner.Execute(ctx, contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)
	require.True(t, h.rec.HasSimulation())
	before := h.rec.Official()

	res, err := h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, before, h.rec.Official())
	assert.True(t, h.rec.HasSimulation())
	last, _ := h.notices.Last()
	assert.Equal(t, notify.MsgGenerateFailed, last.Message)
}

func TestGenerateClearsSimulation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeSimulate, opResult(3))
	h.fake.On(routeGenerate, opResult(4))

	_, err := h.runner.Execute(ctx, contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)
	require.NoError(t, h.rec.SetViewMode(reconcile.ViewSimulated))
	assert.Equal(t, 0, h.fake.Calls(routeAssignments))

	_, err = h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, reconcile.ViewOfficial, h.rec.ViewMode())
	assert.False(t, h.rec.HasSimulation())
	assert.Equal(t, "OFFICIAL", h.fake.LastBody(routeWeekly)["mode"])
}

func TestSimulateLeavesOfficialData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.runner.Refresh(ctx, h.request))
	before := h.rec.Official()

	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeSimulate, opResult(9))
	_, err := h.runner.Execute(ctx, contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)

	assert.Equal(t, before, h.rec.Official())
	sim, ok := h.rec.Simulated()
	require.True(t, ok)
	assert.Equal(t, 9, sim.Counts.Assignments)
	assert.Equal(t, "SIMULATION", h.fake.LastBody(routeWeekly)["mode"])
}

func TestSecondCallOfSameKindIsRejected(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict(nil, nil, true, false))
	h.fake.On(routeGenerate, opResult(1))
	h.fake.On(routeSimulate, opResult(1))
	gate := h.fake.Gate(routeGenerate)

	done := make(chan error, 1)
	go func() {
		_, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return h.fake.Calls(routeGenerate) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.runner.State(contracts.OperationGenerate).Loading)

	_, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.ErrorIs(t, err, ErrInFlight)

	// the other kind has its own slot
	res, err := h.runner.Execute(context.Background(), contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.fake.Calls(routeGenerate))
	assert.False(t, h.runner.State(contracts.OperationGenerate).Loading)
}

func TestSharedGuardRejectsHeldSlot(t *testing.T) {
	guard := inflight.NewLocalGuard()
	h := newHarness(t, WithGuard(guard))
	release, err := guard.TryAcquire(context.Background(), "CAIXA:GENERATE")
	require.NoError(t, err)
	defer release()

	_, err = h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, 0, h.fake.Calls(routePreflight))
}

func TestSubmitAckSettlesWhenSlotIsHeld(t *testing.T) {
	guard := inflight.NewLocalGuard()
	h := newHarness(t, WithGuard(guard))
	ctx := context.Background()
	h.fake.On(routePreflight, verdict(nil, []map[string]any{issue("A", "a")}, true, true))
	h.fake.On(routeGenerate, opResult(3))

	res, err := h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingAck, res.Outcome)

	release, err := guard.TryAcquire(ctx, "CAIXA:GENERATE")
	require.NoError(t, err)
	res, err = h.runner.SubmitAck(ctx, "Fechamento emergencial do período.")
	require.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ack.StateClosed, h.ack.State())
	release()

	// the flow starts over instead of being stuck mid-submission
	res, err = h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingAck, res.Outcome)
	assert.Equal(t, ack.StateOpen, h.ack.State())

	res, err = h.runner.SubmitAck(ctx, "Fechamento emergencial do período.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, h.fake.Calls(routeGenerate))
}

func TestConflictOfOtherKindDoesNotHijackSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	risky := verdict(nil, []map[string]any{issue("A", "a")}, true, true)
	// simulate: initial call and submission; generate: a clean verdict
	h.fake.On(routePreflight, risky, risky, verdict(nil, nil, true, false))
	h.fake.On(routeSimulate, opResult(4))
	h.fake.On(routeGenerate,
		enginetest.Detail(http.StatusConflict, map[string]any{
			"message":           "Confirmação de risco obrigatória.",
			"critical_warnings": []map[string]any{issue("B", "b")},
		}),
		opResult(6),
	)
	gate := h.fake.Gate(routeSimulate)

	res, err := h.runner.Execute(ctx, contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingAck, res.Outcome)

	type outcome struct {
		res Result
		err error
	}
	simDone := make(chan outcome, 1)
	go func() {
		res, err := h.runner.SubmitAck(ctx, "Cenário aprovado pela gerência.")
		simDone <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return h.fake.Calls(routeSimulate) == 1 }, 2*time.Second, 5*time.Millisecond)

	res, err = h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingAck, res.Outcome)
	pending, ok := h.ack.Pending()
	require.True(t, ok)
	assert.Equal(t, contracts.OperationGenerate, pending.Kind)
	assert.Equal(t, ack.StateOpen, h.ack.State())

	close(gate)
	sim := <-simDone
	require.NoError(t, sim.err)
	assert.Equal(t, OutcomeCompleted, sim.res.Outcome)

	// the finished simulation leaves the generate dialog alone
	assert.Equal(t, ack.StateOpen, h.ack.State())
	pending, ok = h.ack.Pending()
	require.True(t, ok)
	assert.Equal(t, contracts.OperationGenerate, pending.Kind)

	res, err = h.runner.SubmitAck(ctx, "Fechamento emergencial do período.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, contracts.OperationGenerate, res.Kind)
	assert.Contains(t, h.fake.LastBody(routeGenerate), "risk_ack")
	assert.Equal(t, 1, h.fake.Calls(routeSimulate))
	assert.Equal(t, ack.StateClosed, h.ack.State())
}

func TestAckRequestWhileOtherKindSubmits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.On(routePreflight, verdict(nil, []map[string]any{issue("A", "a")}, true, true))
	h.fake.On(routeSimulate, opResult(4))
	gate := h.fake.Gate(routeSimulate)

	_, err := h.runner.Execute(ctx, contracts.OperationSimulate, h.request, nil)
	require.NoError(t, err)

	simDone := make(chan error, 1)
	go func() {
		_, err := h.runner.SubmitAck(ctx, "Cenário aprovado pela gerência.")
		simDone <- err
	}()
	require.Eventually(t, func() bool { return h.fake.Calls(routeSimulate) == 1 }, 2*time.Second, 5*time.Millisecond)

	res, err := h.runner.Execute(ctx, contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingAck, res.Outcome)

	close(gate)
	require.NoError(t, <-simDone)
	pending, ok := h.ack.Pending()
	require.True(t, ok)
	assert.Equal(t, contracts.OperationGenerate, pending.Kind)
	assert.Equal(t, ack.StateOpen, h.ack.State())
}

func TestSubmitAckWithoutPending(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.SubmitAck(context.Background(), "Motivo suficientemente longo")
	require.ErrorIs(t, err, ack.ErrNoPendingOperation)
}

func TestCancelAck(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routePreflight, verdict(nil, []map[string]any{issue("A", "a")}, true, true))
	_, err := h.runner.Execute(context.Background(), contracts.OperationGenerate, h.request, nil)
	require.NoError(t, err)

	h.runner.CancelAck()
	assert.Equal(t, ack.StateClosed, h.ack.State())
	_, ok := h.ack.Pending()
	assert.False(t, ok)
}

func TestRefreshToleratesWeeklyFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.On(routeWeekly, enginetest.Detail(http.StatusInternalServerError, "x"))

	require.NoError(t, h.runner.Refresh(context.Background(), h.request))
	official := h.rec.Official()
	assert.Len(t, official.Assignments, 1)
	assert.Nil(t, official.Weekly)
}

func TestReduce(t *testing.T) {
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	s := reduce(KindState{LastError: "old"}, kindEvent{typ: evStart, at: at})
	assert.True(t, s.Loading)
	assert.Empty(t, s.LastError)
	assert.Equal(t, at, s.StartedAt)

	s = reduce(s, kindEvent{typ: evFinish, at: at.Add(time.Second), outcome: OutcomeFailed, err: assert.AnError})
	assert.False(t, s.Loading)
	assert.Equal(t, OutcomeFailed, s.LastOutcome)
	assert.Equal(t, assert.AnError.Error(), s.LastError)
}

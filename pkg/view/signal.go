package view

import "github.com/escalaflow/scalegate/pkg/gateway"

// Tone is the visual weight of a badge.
type Tone string

const (
	ToneOutline     Tone = "outline"
	ToneDestructive Tone = "destructive"
	ToneSecondary   Tone = "secondary"
)

// Signal is the preflight badge.
type Signal struct {
	Label       string
	Tone        Tone
	Description string
}

var signals = map[gateway.ExecutionState]Signal{
	gateway.StateValidating:  {"VALIDANDO", ToneOutline, "Validando regras e governança para o período selecionado..."},
	gateway.StateNotRun:      {"AGUARDANDO", ToneOutline, "A validação ainda não foi executada para este período."},
	gateway.StateBlocked:     {"BLOQUEADO", ToneDestructive, "Há bloqueio operacional ativo. Ajuste a configuração antes de executar."},
	gateway.StateAckRequired: {"RISCO LEGAL", ToneDestructive, "Execução possível com justificativa obrigatória (risco legal/compliance)."},
	gateway.StateReady:       {"LIBERADO", ToneSecondary, "Sem bloqueios. Execução liberada."},
}

// SignalFor maps an execution state to its badge. Unknown states read as not run.
func SignalFor(state gateway.ExecutionState) Signal {
	if s, ok := signals[state]; ok {
		return s
	}
	return signals[gateway.StateNotRun]
}

// Prominent reports whether the signal should be shown as a status strip.
// Ready and not-run states stay quiet.
func (s Signal) Prominent() bool {
	return s.Label != "LIBERADO" && s.Label != "AGUARDANDO"
}

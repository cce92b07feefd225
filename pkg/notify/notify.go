// Package notify delivers operator-facing success and failure notices.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Operator-facing copy.
const (
	MsgGenerateSucceeded = "Escala oficial gerada com sucesso."
	MsgSimulateSucceeded = "Simulação executada com sucesso."
	MsgGenerateFailed    = "Não foi possível gerar a escala."
	MsgSimulateFailed    = "Não foi possível simular o período."
	MsgPreflightFailed   = "Não foi possível validar as condições de execução."
	MsgBlockedFallback   = "Bloqueio operacional identificado na validação."
	MsgBlockedAtRun      = "A operação foi bloqueada por inconsistência de configuração."
	MsgReasonInvalid     = "Informe um motivo válido para continuar com risco."
	MsgAckRequired       = "Execução possível com justificativa obrigatória (risco legal/compliance)."
)

// Level distinguishes notices.
type Level string

const (
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
)

// Notice is one delivered notification.
type Notice struct {
	Level   Level
	Message string
}

// Notifier receives notices. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Success delivers a success notice through n, ignoring a nil notifier.
func Success(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notice{Level: LevelSuccess, Message: msg})
	}
}

// Failure delivers a failure notice through n, ignoring a nil notifier.
func Failure(ctx context.Context, n Notifier, msg string) {
	if n != nil {
		n.Notify(ctx, Notice{Level: LevelFailure, Message: msg})
	}
}

// Log writes notices to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default().With("component", "notify")
	}
	if n.Level == LevelFailure {
		logger.WarnContext(ctx, n.Message, "level", n.Level)
		return
	}
	logger.InfoContext(ctx, n.Message, "level", n.Level)
}

// Recorder keeps every notice in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Console prints notices as styled terminal lines.
type Console struct {
	mu sync.Mutex
	W  io.Writer
}

func (c *Console) Notify(_ context.Context, n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mark := successStyle.Render("✓")
	if n.Level == LevelFailure {
		mark = failureStyle.Render("✗")
	}
	_, _ = fmt.Fprintf(c.W, "%s %s\n", mark, n.Message)
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

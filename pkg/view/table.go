package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/reconcile"
)

// Styles holds the terminal styles used by the renderers.
type Styles struct {
	Title       lipgloss.Style
	Header      lipgloss.Style
	Body        lipgloss.Style
	Muted       lipgloss.Style
	Destructive lipgloss.Style
	Secondary   lipgloss.Style
	Warning     lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header:      lipgloss.NewStyle().Bold(true),
		Body:        lipgloss.NewStyle(),
		Muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Destructive: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		Secondary:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Warning:     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// Table is a static text table.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) { t.Rows = append(t.Rows, cells) }

// Render draws the table. An empty table renders as "".
func (t *Table) Render(st Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	// lipgloss widths include padding
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(st.Title.Render(t.Title))
		sb.WriteString("\n")
	}
	sep := st.Muted.Render("|")
	head := st.Header.Padding(0, 1)
	body := st.Body.Padding(0, 1)

	writeRow := func(cells []string, style lipgloss.Style) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
			if i < len(widths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}

	writeRow(t.Headers, head)
	total := len(widths) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(st.Muted.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(row, body)
	}
	return sb.String()
}

// RenderSignal draws the preflight badge and its description.
func RenderSignal(s Signal, st Styles) string {
	style := st.Muted
	switch s.Tone {
	case ToneDestructive:
		style = st.Destructive
	case ToneSecondary:
		style = st.Secondary
	}
	return style.Render("["+s.Label+"]") + " " + s.Description
}

// RenderIssues lists blockers or warnings with their recommended actions.
func RenderIssues(title string, issues []contracts.Issue, st Styles) string {
	if len(issues) == 0 {
		return ""
	}
	t := NewTable(title, "Código", "Mensagem", "Ação recomendada")
	for _, is := range issues {
		t.AddRow(is.Code, is.Message, is.RecommendedAction)
	}
	return t.Render(st)
}

// CountsBadge summarises the active projection, e.g. "Simulação: 120 alocações, 3 violações".
func CountsBadge(mode reconcile.ViewMode, p reconcile.Projection) string {
	prefix := "Oficial"
	if mode == reconcile.ViewSimulated {
		prefix = "Simulação"
	}
	a, v := len(p.Assignments), len(p.Violations)
	if p.Counts != nil {
		a, v = p.Counts.Assignments, p.Counts.Violations
	}
	return fmt.Sprintf("%s: %s, %s", prefix, Pluralize(a, "alocação", "alocações"), Pluralize(v, "violação", "violações"))
}

// AssignmentsTable renders one page of assignments.
func AssignmentsTable(rows []contracts.Assignment, p *Pager, st Styles) string {
	if len(rows) == 0 {
		return st.Muted.Render(`Nenhuma alocação. Execute "Gerar escala" para gerar.`) + "\n"
	}
	page := Paginate(p, rows)
	t := NewTable("Alocações", "Data", "Colaborador", "Status", "Turno", "Minutos")
	for _, a := range page {
		name := a.EmployeeName
		if name == "" {
			name = a.EmployeeID
		}
		t.AddRow(FormatDateBR(a.WorkDate), name, FormatStatus(a.Status), FormatShift(a.ShiftCode), FormatMinutes(a.Minutes))
	}
	out := t.Render(st)
	if len(rows) > p.size() {
		out += st.Muted.Render(fmt.Sprintf("Página %d de %d — %d registros", p.Page+1, p.TotalPages(len(rows)), len(rows))) + "\n"
	}
	return out
}

// ViolationsTable renders all violations.
func ViolationsTable(rows []contracts.Violation, st Styles) string {
	if len(rows) == 0 {
		return st.Muted.Render("Nenhuma violação.") + "\n"
	}
	t := NewTable("Violações", "Colaborador", "Regra", "Severidade", "Detalhe")
	for _, v := range rows {
		name := v.EmployeeName
		if name == "" {
			name = v.EmployeeID
		}
		rule := v.RuleLabel
		if rule == "" {
			rule = FormatRule(v.RuleCode)
		}
		t.AddRow(name, rule, FormatSeverity(v.Severity), v.Detail)
	}
	return t.Render(st)
}

// CalendarTable renders the calendar matrix.
func CalendarTable(c Calendar, st Styles) string {
	if c.Empty() {
		return st.Muted.Render(`Execute "Gerar escala" ou "Simular período" para ver o calendário.`) + "\n"
	}
	headers := []string{"Data"}
	for _, e := range c.Employees {
		headers = append(headers, c.Name(e))
	}
	t := NewTable("Calendário", headers...)
	for _, d := range c.Dates {
		row := []string{FormatDateBR(d)}
		for _, e := range c.Employees {
			if cell, ok := c.Cell(d, e); ok {
				row = append(row, cell.Label())
			} else {
				row = append(row, Placeholder)
			}
		}
		t.AddRow(row...)
	}
	return t.Render(st)
}

// WeeklyTable renders one window of the weekly analysis, preceded by any open
// external dependencies.
func WeeklyTable(a contracts.WeeklyAnalysis, window contracts.WeekWindow, st Styles) string {
	var sb strings.Builder
	if a.HasOpenDependencies() {
		sb.WriteString(st.Warning.Render("Governança e Compliance Legal"))
		sb.WriteString("\n")
		for _, d := range a.ExternalDependenciesOpen {
			sb.WriteString(st.Warning.Render("  • " + d))
			sb.WriteString("\n")
		}
	}
	t := NewTable("Análise semanal ("+WindowLabel(window)+")", "Semana", "Colaborador", "Contrato", "Real", "Meta", "Delta", "Status")
	for _, r := range WeeklyRows(a, window) {
		delta := r.Delta
		switch r.DeltaTone {
		case DeltaOver:
			delta = st.Warning.Render(delta)
		case DeltaUnder:
			delta = st.Destructive.Render(delta)
		}
		t.AddRow(r.Week, r.Employee, r.Contract, r.Actual, r.Target, delta, r.Badge)
	}
	sb.WriteString(t.Render(st))
	return sb.String()
}

// Package view projects gateway, runner and reconciler state into what an
// operator sees: signal badges, calendars, paginated tables and labels.
package view

import (
	"fmt"
	"strings"
)

// Placeholder is shown for missing values.
const Placeholder = "—"

var shiftLabels = map[string]string{
	"CAI1":         "Manhã (9h30)",
	"CAI2":         "Manhã (6h)",
	"CAI3":         "Tarde (8h30)",
	"CAI4":         "Manhã (5h)",
	"CAI5":         "Tarde (5h30)",
	"CAI6":         "Manhã (5h30)",
	"DOM_08_12_30": "Domingo (4h30)",
	"H_DOM":        "Domingo",
}

var statusLabels = map[string]string{
	"WORK":    "Trabalho",
	"FOLGA":   "Folga",
	"ABSENCE": "Ausência",
}

var ruleLabels = map[string]string{
	"R1_MAX_CONSECUTIVE":     "Dias consecutivos (máx. 6)",
	"R2_MIN_INTERSHIFT_REST": "Intervalo entre jornadas (mín. 11h)",
	"R2_INTERSHIFT_REST":     "Intervalo entre jornadas",
	"R3_SUNDAY_ROTATION":     "Rodízio de domingos",
	"R3_WEEKLY_HOURS":        "Meta semanal de horas",
	"R4_WEEKLY_TARGET":       "Meta semanal de horas",
	"R4_DEMAND_COVERAGE":     "Cobertura insuficiente",
	"R5_DEMAND_COVERAGE":     "Cobertura insuficiente",
	"R6_MAX_DAILY_MINUTES":   "Limite diário de jornada",
}

var severityLabels = map[string]string{
	"CRITICAL": "Crítico",
	"HIGH":     "Alto",
	"MEDIUM":   "Médio",
	"LOW":      "Baixo",
}

var contractLabels = map[string]string{
	"H44_CAIXA": "44h semanais",
	"H36_CAIXA": "36h semanais",
	"H30_CAIXA": "30h semanais",
	"CLT_44H":   "44h semanais",
}

func lookup(m map[string]string, code string) string {
	if code == "" {
		return Placeholder
	}
	if l, ok := m[code]; ok {
		return l
	}
	return code
}

func FormatShift(code string) string    { return lookup(shiftLabels, code) }
func FormatStatus(code string) string   { return lookup(statusLabels, code) }
func FormatRule(code string) string     { return lookup(ruleLabels, code) }
func FormatSeverity(code string) string { return lookup(severityLabels, code) }
func FormatContract(code string) string { return lookup(contractLabels, code) }

// FormatDateBR turns YYYY-MM-DD into DD/MM/YYYY. Anything else is returned as is.
func FormatDateBR(date string) string {
	if date == "" {
		return Placeholder
	}
	parts := strings.Split(date, "-")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return date
	}
	return pad2(parts[2]) + "/" + pad2(parts[1]) + "/" + parts[0]
}

func pad2(s string) string {
	if len(s) < 2 {
		return strings.Repeat("0", 2-len(s)) + s
	}
	return s
}

// FormatMinutes renders minutes as "8h" or "8h 30min". Zero is a placeholder.
// Negative values keep a single leading sign.
func FormatMinutes(minutes int) string {
	if minutes == 0 {
		return Placeholder
	}
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%s%dh", sign, h)
	}
	return fmt.Sprintf("%s%dh %dmin", sign, h, m)
}

// FormatDelta is FormatMinutes with an explicit "+" for positive values.
func FormatDelta(minutes int) string {
	if minutes > 0 {
		return "+" + FormatMinutes(minutes)
	}
	return FormatMinutes(minutes)
}

// Pluralize renders "1 registro" or "5 registros". An empty plural appends "s".
func Pluralize(count int, singular, plural string) string {
	if plural == "" {
		plural = singular + "s"
	}
	if count == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", count, plural)
}

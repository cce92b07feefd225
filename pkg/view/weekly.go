package view

import "github.com/escalaflow/scalegate/pkg/contracts"

// DeltaTone colours the weekly delta column.
type DeltaTone string

const (
	DeltaNeutral DeltaTone = "neutral"
	DeltaOver    DeltaTone = "over"
	DeltaUnder   DeltaTone = "under"
)

// WeeklyRow is a formatted weekly summary line.
type WeeklyRow struct {
	Week      string
	Employee  string
	Contract  string
	Actual    string
	Target    string
	Delta     string
	DeltaTone DeltaTone
	Within    bool
	Badge     string
}

// WindowLabel names a weekly window.
func WindowLabel(w contracts.WeekWindow) string {
	if w == contracts.WindowSunSat {
		return "Domingo a Sábado"
	}
	return "Segunda a Domingo"
}

// WeeklyRows formats the rows of one window.
func WeeklyRows(a contracts.WeeklyAnalysis, window contracts.WeekWindow) []WeeklyRow {
	src := a.Rows(window)
	out := make([]WeeklyRow, 0, len(src))
	for _, r := range src {
		row := WeeklyRow{
			Week:      FormatDateBR(r.WeekStart) + " – " + FormatDateBR(r.WeekEnd),
			Employee:  r.EmployeeID,
			Contract:  r.ContractCode,
			Actual:    FormatMinutes(r.ActualMinutes),
			Target:    FormatMinutes(r.TargetMinutes),
			Delta:     FormatDelta(r.DeltaMinutes),
			DeltaTone: DeltaNeutral,
			Within:    r.Status == contracts.WeeklyOK,
			Badge:     "Fora",
		}
		if r.EmployeeName != "" {
			row.Employee = r.EmployeeName
		}
		switch {
		case r.DeltaMinutes > 0:
			row.DeltaTone = DeltaOver
		case r.DeltaMinutes < 0:
			row.DeltaTone = DeltaUnder
		}
		if row.Within {
			row.Badge = "Dentro"
		}
		out = append(out, row)
	}
	return out
}

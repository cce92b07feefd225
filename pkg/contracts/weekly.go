package contracts

// WeekWindow is a weekly windowing policy.
type WeekWindow string

const (
	WindowMonSun WeekWindow = "MON_SUN"
	WindowSunSat WeekWindow = "SUN_SAT"
)

// WeeklyStatus tells whether a week is within tolerance.
type WeeklyStatus string

const (
	WeeklyOK  WeeklyStatus = "OK"
	WeeklyOut WeeklyStatus = "OUT"
)

// AnalysisMode selects which assignments the engine analyses.
type AnalysisMode string

const (
	AnalysisOfficial   AnalysisMode = "OFFICIAL"
	AnalysisSimulation AnalysisMode = "SIMULATION"
)

// WeeklySummaryRow is one employee-week of the analysis.
type WeeklySummaryRow struct {
	Window        WeekWindow   `json:"window"`
	WeekStart     string       `json:"week_start"`
	WeekEnd       string       `json:"week_end"`
	EmployeeID    string       `json:"employee_id"`
	EmployeeName  string       `json:"employee_name,omitempty"`
	ContractCode  string       `json:"contract_code"`
	ActualMinutes int          `json:"actual_minutes"`
	TargetMinutes int          `json:"target_minutes"`
	DeltaMinutes  int          `json:"delta_minutes"`
	Status        WeeklyStatus `json:"status"`
}

// WeeklyAnalysis holds both windowings plus open governance pendencies.
type WeeklyAnalysis struct {
	PeriodStart              string             `json:"period_start"`
	PeriodEnd                string             `json:"period_end"`
	SectorID                 string             `json:"sector_id"`
	PolicyWeekDefinition     WeekWindow         `json:"policy_week_definition"`
	ToleranceMinutes         int                `json:"tolerance_minutes"`
	SummariesMonSun          []WeeklySummaryRow `json:"summaries_mon_sun"`
	SummariesSunSat          []WeeklySummaryRow `json:"summaries_sun_sat"`
	ExternalDependenciesOpen []string           `json:"external_dependencies_open"`
}

// Rows returns the rows of the requested window.
func (w WeeklyAnalysis) Rows(window WeekWindow) []WeeklySummaryRow {
	if window == WindowSunSat {
		return w.SummariesSunSat
	}
	return w.SummariesMonSun
}

// HasOpenDependencies reports pendencies that must be surfaced in every window.
func (w WeeklyAnalysis) HasOpenDependencies() bool {
	return len(w.ExternalDependenciesOpen) > 0
}

package contracts

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OperationKind identifies the gated remote operation.
type OperationKind string

const (
	OperationGenerate OperationKind = "GENERATE"
	OperationSimulate OperationKind = "SIMULATE"
)

func (k OperationKind) Valid() bool {
	return k == OperationGenerate || k == OperationSimulate
}

// ParseOperationKind parses a case-insensitive kind name.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
	return k, nil
}

// ActorRole is the identity class performing an override.
type ActorRole string

const (
	RoleOperator ActorRole = "OPERADOR"
	RoleAdmin    ActorRole = "ADMIN"
)

// Actor is who is operating the client.
type Actor struct {
	Role ActorRole `json:"role" yaml:"role"`
	Name string    `json:"name,omitempty" yaml:"name,omitempty"`
}

// RiskAcknowledgment is the human justification attached to a risky operation.
// It only exists inside the acknowledgment flow and is never persisted locally.
type RiskAcknowledgment struct {
	ActorRole ActorRole `json:"actor_role"`
	ActorName string    `json:"actor_name,omitempty"`
	Reason    string    `json:"reason"`
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// DefaultSector is used when a request carries no sector.
const DefaultSector = "CAIXA"

// Period is an inclusive range of calendar dates.
type Period struct {
	Start time.Time
	End   time.Time
}

// ErrInvertedPeriod is returned when a period ends before it starts.
var ErrInvertedPeriod = errors.New("period end is before start")

// NewPeriod parses two YYYY-MM-DD dates. A single-day period is valid.
func NewPeriod(start, end string) (Period, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return Period{}, fmt.Errorf("period start: %w", err)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return Period{}, fmt.Errorf("period end: %w", err)
	}
	if e.Before(s) {
		return Period{}, fmt.Errorf("%w: %s > %s", ErrInvertedPeriod, start, end)
	}
	return Period{Start: s, End: e}, nil
}

func (p Period) StartString() string { return p.Start.Format(DateLayout) }
func (p Period) EndString() string   { return p.End.Format(DateLayout) }

func (p Period) String() string {
	return p.StartString() + ".." + p.EndString()
}

// ScaleRequest addresses one sector over one period.
type ScaleRequest struct {
	Period   Period
	SectorID string
}

// Sector returns the sector, defaulting to DefaultSector.
func (r ScaleRequest) Sector() string {
	if s := strings.TrimSpace(r.SectorID); s != "" {
		return s
	}
	return DefaultSector
}

// Key identifies the request for verdict scoping and locking.
func (r ScaleRequest) Key() string {
	return r.Sector() + "|" + r.Period.String()
}

// Assignment is one employee/day cell of a schedule.
type Assignment struct {
	WorkDate     string `json:"work_date"`
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	Status       string `json:"status"`
	ShiftCode    string `json:"shift_code,omitempty"`
	Minutes      int    `json:"minutes"`
	SourceRule   string `json:"source_rule,omitempty"`
}

// Violation is a rule violation reported by the engine.
type Violation struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	RuleCode     string `json:"rule_code"`
	RuleLabel    string `json:"rule_label,omitempty"`
	Severity     string `json:"severity"`
	DateStart    string `json:"date_start,omitempty"`
	DateEnd      string `json:"date_end,omitempty"`
	Detail       string `json:"detail"`
}

// OperationResult is returned by generate and simulate. Only simulate carries
// the full assignment and violation payloads.
type OperationResult struct {
	Status               string       `json:"status"`
	AssignmentsCount     int          `json:"assignments_count"`
	ViolationsCount      int          `json:"violations_count"`
	PreferencesProcessed int          `json:"preferences_processed"`
	ExceptionsApplied    int          `json:"exceptions_applied"`
	Assignments          []Assignment `json:"assignments,omitempty"`
	Violations           []Violation  `json:"violations,omitempty"`
}

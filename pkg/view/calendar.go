package view

import (
	"sort"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// CellTone colours a calendar cell.
type CellTone string

const (
	CellWork    CellTone = "work"
	CellSunday  CellTone = "sunday"
	CellFolga   CellTone = "folga"
	CellAbsence CellTone = "absence"
	CellNeutral CellTone = "neutral"
)

// Cell is one employee-day.
type Cell struct {
	Status    string
	ShiftCode string
}

// Tone returns the cell colour.
func (c Cell) Tone() CellTone {
	switch c.Status {
	case "WORK":
		if c.ShiftCode == "DOM_08_12_30" || c.ShiftCode == "H_DOM" {
			return CellSunday
		}
		return CellWork
	case "FOLGA":
		return CellFolga
	case "ABSENCE":
		return CellAbsence
	default:
		return CellNeutral
	}
}

// Label is the shift for worked days and the status otherwise.
func (c Cell) Label() string {
	if c.Status == "WORK" && c.ShiftCode != "" {
		return FormatShift(c.ShiftCode)
	}
	return FormatStatus(c.Status)
}

// Calendar is a date × employee matrix.
type Calendar struct {
	Dates     []string
	Employees []string
	names     map[string]string
	cells     map[string]map[string]Cell
}

// BuildCalendar lays assignments out by sorted date and sorted employee ID.
// A later assignment for the same employee-day wins.
func BuildCalendar(assignments []contracts.Assignment) Calendar {
	c := Calendar{
		names: make(map[string]string),
		cells: make(map[string]map[string]Cell),
	}
	emps := make(map[string]struct{})
	for _, a := range assignments {
		row, ok := c.cells[a.WorkDate]
		if !ok {
			row = make(map[string]Cell)
			c.cells[a.WorkDate] = row
			c.Dates = append(c.Dates, a.WorkDate)
		}
		row[a.EmployeeID] = Cell{Status: a.Status, ShiftCode: a.ShiftCode}
		if _, seen := emps[a.EmployeeID]; !seen {
			emps[a.EmployeeID] = struct{}{}
			c.Employees = append(c.Employees, a.EmployeeID)
		}
		if a.EmployeeName != "" {
			c.names[a.EmployeeID] = a.EmployeeName
		}
	}
	sort.Strings(c.Dates)
	sort.Strings(c.Employees)
	return c
}

// Empty reports whether there is nothing to show.
func (c Calendar) Empty() bool { return len(c.Dates) == 0 }

// Name resolves an employee ID to a display name.
func (c Calendar) Name(employeeID string) string {
	if n, ok := c.names[employeeID]; ok {
		return n
	}
	return employeeID
}

// Cell returns the cell for date and employee.
func (c Calendar) Cell(date, employeeID string) (Cell, bool) {
	cell, ok := c.cells[date][employeeID]
	return cell, ok
}
